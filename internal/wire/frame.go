// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package wire

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"sync"

	"github.com/samber/oops"
)

// MaxFrameSize bounds one frame, newline excluded.
const MaxFrameSize = 64 * 1024

// ErrFrameTooLarge is returned by Reader.Next for a frame over MaxFrameSize.
// The stream cannot be resynchronised after it.
var ErrFrameTooLarge = errors.New("frame too large")

// Frame is one message on the wire.
type Frame struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Reader splits a stream into frames.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a Reader on r.
func NewReader(r io.Reader) *Reader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), MaxFrameSize)
	return &Reader{scanner: s}
}

// Next returns the next frame. Blank lines are skipped. A line that is not
// a frame yields a FRAME_MALFORMED error and the reader stays usable. io.EOF
// marks a clean end of stream.
func (r *Reader) Next() (Frame, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(line, &f); err != nil {
			return Frame{}, oops.Code("FRAME_MALFORMED").Wrap(err)
		}
		if f.Kind == "" {
			return Frame{}, oops.Code("FRAME_MALFORMED").Errorf("frame has no kind")
		}
		return f, nil
	}
	if err := r.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return Frame{}, oops.Code("FRAME_TOO_LARGE").With("limit", MaxFrameSize).Wrap(ErrFrameTooLarge)
		}
		return Frame{}, oops.Code("FRAME_READ_FAILED").Wrap(err)
	}
	return Frame{}, io.EOF
}

// Writer encodes frames, one per line. It is safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a Writer on w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write sends payload as a frame of kind.
func (w *Writer) Write(kind Kind, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return oops.Code("FRAME_ENCODE_FAILED").With("kind", kind).Wrap(err)
	}
	line, err := json.Marshal(Frame{Kind: kind, Payload: body})
	if err != nil {
		return oops.Code("FRAME_ENCODE_FAILED").With("kind", kind).Wrap(err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.w.Write(line); err != nil {
		return oops.Code("FRAME_WRITE_FAILED").With("kind", kind).Wrap(err)
	}
	return nil
}
