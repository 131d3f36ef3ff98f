// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package wire

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// SchemaBaseURL prefixes the $id of every generated schema.
const SchemaBaseURL = "https://beachbev.com/schemas/"

// GenerateSchema returns the JSON Schema of a request kind's payload.
func GenerateSchema(kind Kind) ([]byte, error) {
	newPayload, ok := requests[kind]
	if !ok {
		return nil, oops.Code("KIND_UNKNOWN").With("kind", kind).Errorf("unknown request kind %q", kind)
	}
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(newPayload())
	schema.ID = jsonschema.ID(SchemaBaseURL + string(kind) + ".schema.json")
	schema.Title = string(kind)

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_ENCODE_FAILED").With("kind", kind).Wrap(err)
	}
	return data, nil
}

var (
	compileOnce sync.Once
	compiled    map[Kind]*jschema.Schema
	compileErr  error
)

func compileAll() (map[Kind]*jschema.Schema, error) {
	compileOnce.Do(func() {
		c := jschema.NewCompiler()
		out := make(map[Kind]*jschema.Schema, len(requests))
		for kind := range requests {
			raw, err := GenerateSchema(kind)
			if err != nil {
				compileErr = err
				return
			}
			doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
			if err != nil {
				compileErr = oops.Code("SCHEMA_COMPILE_FAILED").With("kind", kind).Wrap(err)
				return
			}
			url := string(kind) + ".json"
			if err := c.AddResource(url, doc); err != nil {
				compileErr = oops.Code("SCHEMA_COMPILE_FAILED").With("kind", kind).Wrap(err)
				return
			}
			sch, err := c.Compile(url)
			if err != nil {
				compileErr = oops.Code("SCHEMA_COMPILE_FAILED").With("kind", kind).Wrap(err)
				return
			}
			out[kind] = sch
		}
		compiled = out
	})
	return compiled, compileErr
}

// Decode validates a request frame's payload against its kind's schema and
// unmarshals it. A missing payload counts as {}.
func Decode(f Frame) (any, error) {
	schemas, err := compileAll()
	if err != nil {
		return nil, err
	}
	sch, ok := schemas[f.Kind]
	if !ok {
		return nil, oops.Code("KIND_UNKNOWN").With("kind", f.Kind).Errorf("unknown request kind %q", f.Kind)
	}

	payload := []byte(f.Payload)
	if len(bytes.TrimSpace(payload)) == 0 || bytes.Equal(bytes.TrimSpace(payload), []byte("null")) {
		payload = []byte("{}")
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return nil, oops.Code("PAYLOAD_INVALID").With("kind", f.Kind).Errorf("payload is not JSON")
	}
	if err := sch.Validate(doc); err != nil {
		return nil, oops.Code("PAYLOAD_INVALID").With("kind", f.Kind).Errorf("%s", FormatSchemaError(err))
	}

	v := requests[f.Kind]()
	if err := json.Unmarshal(payload, v); err != nil {
		return nil, oops.Code("PAYLOAD_INVALID").With("kind", f.Kind).Wrap(err)
	}
	return v, nil
}

// FormatSchemaError condenses a validation error into one line for the
// error frame.
func FormatSchemaError(err error) string {
	var causes []string
	for _, line := range strings.Split(err.Error(), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "jsonschema validation failed") {
			continue
		}
		causes = append(causes, strings.TrimPrefix(line, "- "))
	}
	if len(causes) == 0 {
		return err.Error()
	}
	return strings.Join(causes, "; ")
}
