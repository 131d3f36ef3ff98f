// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package gateway

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/beachbev/accountd/internal/account"
	"github.com/beachbev/accountd/internal/core"
	"github.com/beachbev/accountd/internal/logging"
	"github.com/beachbev/accountd/internal/observability"
	"github.com/beachbev/accountd/internal/wire"
	"github.com/beachbev/accountd/pkg/errutil"
)

var tracer = otel.Tracer("accountd/gateway")

const (
	writeTimeout = 10 * time.Second
	drainTimeout = 100 * time.Millisecond

	msgMalformedFrame = "malformed frame"
	msgInternal       = "internal error"
)

// conn is a client connection as seen by the registry.
type conn struct {
	id      ulid.ULID
	netConn net.Conn
	writer  *wire.Writer
}

func (c *conn) ID() ulid.ULID { return c.id }

// Send writes a Reply. Anything else is rejected.
func (c *conn) Send(msg any) error {
	r, ok := msg.(Reply)
	if !ok {
		return oops.Code("REPLY_INVALID").Errorf("unsupported message type %T", msg)
	}
	if err := c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return oops.Code("FRAME_WRITE_FAILED").With("kind", r.Kind).Wrap(err)
	}
	return c.writer.Write(r.Kind, r.Payload)
}

// handler serves one connection. Frames are handled one at a time, in order.
type handler struct {
	srv    *Server
	conn   *conn
	reader *wire.Reader
}

func newHandler(s *Server, nc net.Conn) *handler {
	return &handler{
		srv:    s,
		conn:   &conn{id: core.NewConnID(), netConn: nc, writer: wire.NewWriter(nc)},
		reader: wire.NewReader(nc),
	}
}

func (h *handler) serve(ctx context.Context) {
	ctx = logging.WithConnID(ctx, h.conn.id)
	logger := h.srv.logger

	h.srv.registry.Add(h.conn)
	h.srv.metrics.ConnectionOpened()
	stop := context.AfterFunc(ctx, func() {
		_ = h.conn.netConn.Close()
	})

	defer func() {
		stop()
		h.srv.registry.Remove(h.conn.id)
		if accountID, ok := h.srv.sessions.Disconnect(h.conn.id); ok {
			logger.DebugContext(ctx, "account disconnected", "account_id", accountID)
		}
		if err := h.conn.netConn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.DebugContext(ctx, "error closing connection", "error", err)
		}
		h.srv.metrics.ConnectionClosed()
	}()

	logger.DebugContext(ctx, "connection opened", "remote", h.conn.netConn.RemoteAddr().String())

	for {
		f, err := h.reader.Next()
		if err == nil {
			h.handle(ctx, f)
			continue
		}
		switch {
		case errors.Is(err, io.EOF):
			logger.DebugContext(ctx, "connection closed by client")
			return
		case errors.Is(err, wire.ErrFrameTooLarge):
			h.srv.metrics.Request("oversized", "invalid")
			h.reply(ctx, wire.KindError, wire.Error{Message: err.Error()})
			h.drain()
			return
		case errutil.Code(err) == "FRAME_MALFORMED":
			h.srv.metrics.Request("malformed", "invalid")
			h.reply(ctx, wire.KindError, wire.Error{Message: msgMalformedFrame})
		default:
			if ctx.Err() == nil {
				logger.DebugContext(ctx, "connection read error", "error", err)
			}
			return
		}
	}
}

// drain discards what the client already sent so closing the socket does
// not reset it before the last reply is read.
func (h *handler) drain() {
	if err := h.conn.netConn.SetReadDeadline(time.Now().Add(drainTimeout)); err != nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(h.conn.netConn, wire.MaxFrameSize))
}

func (h *handler) handle(ctx context.Context, f wire.Frame) {
	label := string(f.Kind)
	if !f.Kind.IsRequest() {
		label = "unknown"
	}

	ctx = logging.WithCorrelationID(ctx, core.NewCorrelationID())
	ctx, span := tracer.Start(ctx, "gateway.request",
		trace.WithAttributes(
			attribute.String("frame.kind", label),
			attribute.String("conn.id", h.conn.id.String()),
		),
	)

	status := "ok"
	defer func() {
		if r := recover(); r != nil {
			status = "panic"
			err := oops.Code("HANDLER_PANIC").With("kind", label).Errorf("panic: %v", r)
			span.RecordError(err)
			span.SetStatus(codes.Error, "panic")
			errutil.LogErrorContext(ctx, h.srv.logger, "request handler panicked", err)
			h.reply(ctx, wire.KindError, wire.Error{Message: msgInternal})
		}
		span.SetAttributes(attribute.String("request.status", status))
		span.End()
		h.srv.metrics.Request(label, status)
	}()

	req, err := wire.Decode(f)
	if err != nil {
		status = "invalid"
		span.RecordError(err)
		h.reply(ctx, wire.KindError, wire.Error{Message: err.Error()})
		return
	}

	if err := h.dispatch(ctx, f.Kind, req); err != nil {
		kind := account.KindOf(err)
		status = kind.String()
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		h.logOutcome(ctx, label, kind, err)
	}
}

// logOutcome logs a failed request at a level matching who is at fault.
func (h *handler) logOutcome(ctx context.Context, kind string, k account.Kind, err error) {
	logger := h.srv.logger.With("kind", kind)
	switch k {
	case account.KindValidation, account.KindAuthentication:
		logger.DebugContext(ctx, "request refused", "code", errutil.Code(err), "reason", err.Error())
	case account.KindExternal:
		errutil.WarnContext(ctx, logger, "collaborator call failed", err)
	default:
		errutil.LogErrorContext(ctx, logger, "request failed", err)
	}
}

// payload asserts the decoded request type for a kind.
func payload[T any](req any) (*T, error) {
	v, ok := req.(*T)
	if !ok {
		return nil, oops.Code("PAYLOAD_INVALID").Errorf("unexpected payload %T", req)
	}
	return v, nil
}

// dispatch calls the service for kind and writes its reply. Services that
// answer later return no reply here; the Notifier delivers it.
func (h *handler) dispatch(ctx context.Context, kind wire.Kind, req any) error {
	svc := h.srv.services
	id := h.conn.id

	switch kind {
	case wire.KindRegister:
		r, err := payload[wire.RegisterRequest](req)
		if err != nil {
			return err
		}
		reply, err := svc.Registration.Register(ctx, id, r.Name, r.Email, r.Password)
		if reply != nil {
			h.reply(ctx, wire.KindAccountCreated, issuedPayload(*reply))
		}
		return err

	case wire.KindRenewSession:
		r, err := payload[wire.RenewSessionRequest](req)
		if err != nil {
			return err
		}
		reply, err := svc.Sessions.Renew(ctx, id, r.AccountID, r.DeviceID, r.Token)
		h.reply(ctx, wire.KindAccountCreated, issuedPayload(reply))
		return err

	case wire.KindPasswordLogin:
		r, err := payload[wire.PasswordLoginRequest](req)
		if err != nil {
			return err
		}
		reply, err := svc.Sessions.PasswordLogin(ctx, id, r.Handle, r.Password, r.DeviceID)
		h.reply(ctx, wire.KindAccountCreated, issuedPayload(reply))
		return err

	case wire.KindRequestPasswordReset:
		r, err := payload[wire.PasswordResetRequest](req)
		if err != nil {
			return err
		}
		reply, err := svc.Resets.RequestReset(ctx, id, r.Email)
		if reply != nil {
			h.reply(ctx, wire.KindResetAck, ackPayload(*reply))
		}
		return err

	case wire.KindCheckResetToken:
		r, err := payload[wire.TokenRequest](req)
		if err != nil {
			return err
		}
		reply, err := svc.Resets.CheckReset(ctx, r.Token)
		h.reply(ctx, wire.KindResetCheck, ackPayload(reply))
		return err

	case wire.KindConsumeResetToken:
		r, err := payload[wire.ConsumeResetRequest](req)
		if err != nil {
			return err
		}
		reply, err := svc.Resets.ConsumeReset(ctx, id, r.Token, r.Password)
		h.reply(ctx, wire.KindAccountCreated, issuedPayload(reply))
		return err

	case wire.KindLookupNamePrivileged:
		r, err := payload[wire.LookupNameRequest](req)
		if err != nil {
			return err
		}
		name, err := svc.Lookups.LookupNameByIDPrivileged(ctx, id, r.AccountID)
		h.reply(ctx, wire.KindNameResult, wire.NameResult{Name: name})
		return err

	case wire.KindLookupOwnName:
		name, err := svc.Lookups.LookupOwnName(ctx, id)
		h.reply(ctx, wire.KindNameResult, wire.NameResult{Name: name})
		return err

	case wire.KindVerifyEmail:
		r, err := payload[wire.TokenRequest](req)
		if err != nil {
			return err
		}
		reply, err := svc.Emails.VerifyEmail(ctx, r.Token)
		h.reply(ctx, wire.KindEmailAck, ackPayload(reply))
		return err

	case wire.KindResendVerification:
		reply, err := svc.Emails.ResendVerification(ctx, id)
		if reply != nil {
			h.reply(ctx, wire.KindEmailAck, ackPayload(*reply))
		}
		return err

	case wire.KindGetEmailSettings:
		binding, err := svc.Emails.EmailSettings(ctx, id)
		if err != nil {
			msg := account.MsgEmailSettingsFailed
			if account.KindOf(err) == account.KindAuthentication {
				msg = err.Error()
			}
			h.reply(ctx, wire.KindError, wire.Error{Message: msg})
			return err
		}
		h.reply(ctx, wire.KindEmailSettings, wire.EmailSettings{
			Verified:   binding.Verified,
			Unverified: binding.Unverified,
		})
		return nil

	case wire.KindRequestResumeAccess, wire.KindRequestMasterAccess:
		request := svc.Resume.RequestAccess
		if kind == wire.KindRequestMasterAccess {
			request = svc.Resume.RequestMasterAccess
		}
		reply, err := request(ctx, id)
		if reply != nil {
			h.reply(ctx, wire.KindResumeAccess, accessPayload(*reply))
		}
		return err

	case wire.KindHasResume:
		has, err := svc.Resume.HasResume(ctx, id)
		if has != nil {
			h.reply(ctx, wire.KindHasResume, wire.HasResume{HasResume: *has})
		}
		return err

	default:
		return oops.Code("KIND_UNKNOWN").With("kind", kind).Errorf("unknown request kind %q", kind)
	}
}

func (h *handler) reply(ctx context.Context, kind wire.Kind, payload any) {
	if err := h.conn.Send(Reply{Kind: kind, Payload: payload}); err != nil {
		observability.RecordReplyWriteFailure(string(kind))
		h.srv.logger.DebugContext(ctx, "reply not written", "kind", string(kind), "error", err)
	}
}
