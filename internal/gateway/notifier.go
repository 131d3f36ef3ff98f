// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package gateway

import (
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/beachbev/accountd/internal/account"
	"github.com/beachbev/accountd/internal/core"
	"github.com/beachbev/accountd/internal/observability"
	"github.com/beachbev/accountd/internal/resume"
	"github.com/beachbev/accountd/internal/wire"
)

// Reply is what connections registered by the gateway accept in Send.
type Reply struct {
	Kind    wire.Kind
	Payload any
}

// Notifier delivers asynchronous replies to connections by id. It serves
// both the account and resume services.
type Notifier struct {
	registry *core.Registry
	logger   *slog.Logger
}

var (
	_ account.Notifier = (*Notifier)(nil)
	_ resume.Notifier  = (*Notifier)(nil)
)

// NewNotifier creates a Notifier over registry.
func NewNotifier(registry *core.Registry, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{registry: registry, logger: logger}
}

// WhileConnected runs fn if the connection is still open. The connection
// handler removes itself from the registry before it clears its login, so a
// login made by fn is always seen by that cleanup.
func (n *Notifier) WhileConnected(connID ulid.ULID, fn func()) bool {
	return n.registry.WhileRegistered(connID, fn)
}

// NotifyIssued sends an account_created reply.
func (n *Notifier) NotifyIssued(connID ulid.ULID, reply account.Issued) bool {
	return n.send(connID, wire.KindAccountCreated, issuedPayload(reply))
}

// NotifyAck sends a reset_ack or email_ack reply.
func (n *Notifier) NotifyAck(connID ulid.ULID, kind account.AckKind, reply account.Ack) bool {
	k := wire.KindResetAck
	if kind == account.AckEmail {
		k = wire.KindEmailAck
	}
	return n.send(connID, k, ackPayload(reply))
}

// NotifyAccess sends a resume_access reply.
func (n *Notifier) NotifyAccess(connID ulid.ULID, reply resume.Access) bool {
	return n.send(connID, wire.KindResumeAccess, accessPayload(reply))
}

// NotifyHasResume sends a has_resume reply.
func (n *Notifier) NotifyHasResume(connID ulid.ULID, has bool) bool {
	return n.send(connID, wire.KindHasResume, wire.HasResume{HasResume: has})
}

func (n *Notifier) send(connID ulid.ULID, kind wire.Kind, payload any) bool {
	c, ok := n.registry.Lookup(connID)
	if !ok {
		return false
	}
	if err := c.Send(Reply{Kind: kind, Payload: payload}); err != nil {
		observability.RecordReplyWriteFailure(string(kind))
		n.logger.Debug("async reply not written", "conn_id", connID.String(), "kind", string(kind), "error", err)
		return false
	}
	return true
}

func issuedPayload(i account.Issued) wire.AccountCreated {
	return wire.AccountCreated{
		Token:     i.Token,
		DeviceID:  i.DeviceID,
		AccountID: i.AccountID,
		Message:   i.Message,
	}
}

func ackPayload(a account.Ack) wire.Ack {
	return wire.Ack{Success: a.Success, Message: a.Message}
}

func accessPayload(a resume.Access) wire.ResumeAccess {
	out := wire.ResumeAccess{
		Folder:          a.Folder,
		AccessKeyID:     a.AccessKeyID,
		SecretAccessKey: a.SecretAccessKey,
		SessionToken:    a.SessionToken,
		Message:         a.Message,
	}
	if !a.ExpiresAt.IsZero() {
		expires := a.ExpiresAt
		out.ExpiresAt = &expires
	}
	return out
}
