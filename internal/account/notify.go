// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account

import "github.com/oklog/ulid/v2"

// Issued is the reply of every flow that hands a device token to a client.
// A failed flow leaves Token empty and explains itself in Message.
type Issued struct {
	AccountID int64
	DeviceID  int32
	Token     string
	Message   string
}

// OK reports whether the reply carries a token.
func (i Issued) OK() bool { return i.Token != "" }

func issuedFailure(message string) Issued {
	return Issued{Message: message}
}

// Ack is a success flag with a message.
type Ack struct {
	Success bool
	Message string
}

// AckKind says which reply an asynchronous Ack answers.
type AckKind int

// Ack kinds.
const (
	AckReset AckKind = iota + 1
	AckEmail
)

func (k AckKind) String() string {
	switch k {
	case AckReset:
		return "reset_ack"
	case AckEmail:
		return "email_ack"
	default:
		return "unknown"
	}
}

// Notifier delivers replies produced after the originating request returned.
// Each method reports whether the connection was still there; false means the
// reply was dropped.
type Notifier interface {
	// WhileConnected runs fn only if the connection is open, and the
	// connection cannot finish closing until fn returns.
	WhileConnected(connID ulid.ULID, fn func()) bool
	NotifyIssued(connID ulid.ULID, reply Issued) bool
	NotifyAck(connID ulid.ULID, kind AckKind, reply Ack) bool
}

// Metrics receives the counters the services emit.
type Metrics interface {
	SwallowedWrite(operation string)
	RegistrationState(state RegistrationState)
	AsyncOutcome(operation string, ok bool)
	DroppedReply(kind string)
	LoginThrottled()
}

type nopMetrics struct{}

func (nopMetrics) SwallowedWrite(string)               {}
func (nopMetrics) RegistrationState(RegistrationState) {}
func (nopMetrics) AsyncOutcome(string, bool)           {}
func (nopMetrics) DroppedReply(string)                 {}
func (nopMetrics) LoginThrottled()                     {}
