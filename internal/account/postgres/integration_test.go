// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/beachbev/accountd/internal/account"
	"github.com/beachbev/accountd/internal/account/postgres"
	"github.com/beachbev/accountd/internal/core"
	"github.com/beachbev/accountd/internal/token"
)

// instantMailer completes every send on the calling goroutine.
type instantMailer struct {
	mu    sync.Mutex
	sent  map[string]string
	fails bool
}

func (m *instantMailer) SendVerification(_ context.Context, to, encoded string, done func(error)) {
	m.deliver(to, encoded, done)
}

func (m *instantMailer) SendPasswordReset(_ context.Context, to, encoded string, done func(error)) {
	m.deliver(to, encoded, done)
}

func (m *instantMailer) deliver(to, encoded string, done func(error)) {
	m.mu.Lock()
	if m.sent == nil {
		m.sent = make(map[string]string)
	}
	m.sent[to] = encoded
	fails := m.fails
	m.mu.Unlock()
	if fails {
		done(errSend)
		return
	}
	done(nil)
}

var errSend = errors.New("mailbox unavailable")

// replies records what the services deliver.
type replies struct {
	mu     sync.Mutex
	issued map[ulid.ULID]account.Issued
	acks   map[ulid.ULID]account.Ack
}

func (r *replies) WhileConnected(_ ulid.ULID, fn func()) bool {
	fn()
	return true
}

func (r *replies) NotifyIssued(conn ulid.ULID, i account.Issued) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.issued == nil {
		r.issued = make(map[ulid.ULID]account.Issued)
	}
	r.issued[conn] = i
	return true
}

func (r *replies) NotifyAck(conn ulid.ULID, _ account.AckKind, a account.Ack) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.acks == nil {
		r.acks = make(map[ulid.ULID]account.Ack)
	}
	r.acks[conn] = a
	return true
}

var fastHasher = token.Argon2id{Time: 1, Memory: 8 * 1024, Threads: 1}

var _ = Describe("account flows on PostgreSQL", func() {
	var (
		ctx      context.Context
		st       account.Store
		mailer   *instantMailer
		out      *replies
		sessions *core.SessionManager
		reg      *account.RegistrationService
		session  *account.SessionService
		resets   *account.ResetService
		emails   *account.EmailService
	)

	BeforeEach(func() {
		ctx = context.Background()
		truncate(ctx)
		st = postgres.NewStore(pool)
		mailer = &instantMailer{}
		out = &replies{}
		sessions = core.NewSessionManager()

		var err error
		reg, err = account.NewRegistrationService(st, mailer, sessions, out, account.WithHasher(fastHasher))
		Expect(err).NotTo(HaveOccurred())
		session, err = account.NewSessionService(st, sessions, account.WithHasher(fastHasher))
		Expect(err).NotTo(HaveOccurred())
		resets, err = account.NewResetService(st, mailer, sessions, out, account.WithHasher(fastHasher))
		Expect(err).NotTo(HaveOccurred())
		emails, err = account.NewEmailService(st, mailer, sessions, out)
		Expect(err).NotTo(HaveOccurred())
	})

	register := func(name, email string) account.Issued {
		conn := core.NewConnID()
		reply, err := reg.Register(ctx, conn, name, email, "hunter2")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(BeNil())
		issued := out.issued[conn]
		Expect(issued.OK()).To(BeTrue(), issued.Message)
		return issued
	}

	It("registers, renews once and rejects the rotated token", func() {
		first := register("alice", "alice@example.com")
		Expect(first.DeviceID).To(Equal(account.FirstDevice))

		renewed, err := session.Renew(ctx, core.NewConnID(), first.AccountID, first.DeviceID, first.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(renewed.Token).NotTo(Equal(first.Token))

		stale, err := session.Renew(ctx, core.NewConnID(), first.AccountID, first.DeviceID, first.Token)
		Expect(account.KindOf(err)).To(Equal(account.KindAuthentication))
		Expect(stale.Message).To(Equal(account.MsgTokenMismatch))
	})

	It("hands out increasing device ids on password login", func() {
		first := register("bob", "bob@example.com")

		a, err := session.PasswordLogin(ctx, core.NewConnID(), "bob", "hunter2", account.NewDevice)
		Expect(err).NotTo(HaveOccurred())
		b, err := session.PasswordLogin(ctx, core.NewConnID(), "bob@example.com", "hunter2", account.NewDevice)
		Expect(err).NotTo(HaveOccurred())

		Expect(a.AccountID).To(Equal(first.AccountID))
		Expect([]int32{a.DeviceID, b.DeviceID}).To(Equal([]int32{2, 3}))
	})

	It("rolls back when the verification email fails and never reuses the id", func() {
		mailer.fails = true
		conn := core.NewConnID()
		_, err := reg.Register(ctx, conn, "carol", "carol@example.com", "hunter2")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.issued[conn].OK()).To(BeFalse())

		_, err = st.Accounts.IDByName(ctx, "carol")
		Expect(err).To(MatchError(account.ErrNotFound))

		mailer.fails = false
		again := register("carol", "carol@example.com")
		Expect(again.AccountID).To(BeNumerically(">", int64(1)))
	})

	It("reports a name collision", func() {
		register("dave", "dave@example.com")
		reply, err := reg.Register(ctx, core.NewConnID(), "dave", "other@example.com", "pw")
		Expect(account.KindOf(err)).To(Equal(account.KindValidation))
		Expect(reply.Message).To(Equal(account.MsgNameTaken))
	})

	It("verifies an email and resets the password with it", func() {
		first := register("erin", "erin@example.com")

		ack, err := emails.VerifyEmail(ctx, mailer.sent["erin@example.com"])
		Expect(err).NotTo(HaveOccurred())
		Expect(ack.Success).To(BeTrue())

		conn := core.NewConnID()
		pending, err := resets.RequestReset(ctx, conn, "erin@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeNil())
		Expect(out.acks[conn].Success).To(BeTrue())
		resetToken := mailer.sent["erin@example.com"]

		check, err := resets.CheckReset(ctx, resetToken)
		Expect(err).NotTo(HaveOccurred())
		Expect(check.Success).To(BeTrue())

		consumed, err := resets.ConsumeReset(ctx, core.NewConnID(), resetToken, "new-password")
		Expect(err).NotTo(HaveOccurred())
		Expect(consumed.AccountID).To(Equal(first.AccountID))

		_, err = resets.ConsumeReset(ctx, core.NewConnID(), resetToken, "again")
		Expect(account.KindOf(err)).To(Equal(account.KindAuthentication))

		stale, _ := session.Renew(ctx, core.NewConnID(), first.AccountID, first.DeviceID, first.Token)
		Expect(stale.OK()).To(BeFalse(), "password change clears device tokens")
	})

	It("lets only one of several concurrent consumers use a reset token", func() {
		register("ivan", "ivan@example.com")
		_, err := emails.VerifyEmail(ctx, mailer.sent["ivan@example.com"])
		Expect(err).NotTo(HaveOccurred())
		_, err = resets.RequestReset(ctx, core.NewConnID(), "ivan@example.com")
		Expect(err).NotTo(HaveOccurred())
		resetToken := mailer.sent["ivan@example.com"]

		var wg sync.WaitGroup
		results := make(chan error, 6)
		for range 6 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := resets.ConsumeReset(ctx, core.NewConnID(), resetToken, "raced")
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		succeeded := 0
		for err := range results {
			if err == nil {
				succeeded++
				continue
			}
			Expect(err).To(MatchError(ContainSubstring(account.MsgInvalidToken)))
		}
		Expect(succeeded).To(Equal(1))
	})

	It("sweeps reset tokens past retention", func() {
		first := register("frank", "frank@example.com")
		Expect(st.Resets.Put(ctx, &account.ResetToken{
			AccountID: first.AccountID,
			Digest:    make([]byte, token.DigestSize),
			IssuedAt:  time.Now().Add(-30 * 24 * time.Hour),
		})).To(Succeed())

		sweeper, err := account.NewResetSweeper(account.DefaultSweeperConfig(), st.Resets, nil)
		Expect(err).NotTo(HaveOccurred())
		n, err := sweeper.RunOnce(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))
	})

	It("grants and revokes the master privilege", func() {
		first := register("gina", "gina@example.com")
		Expect(st.Masters.Grant(ctx, first.AccountID)).To(Succeed())
		Expect(st.Masters.Grant(ctx, first.AccountID)).To(Succeed())
		ok, err := st.Masters.IsMaster(ctx, first.AccountID)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		Expect(st.Masters.Revoke(ctx, first.AccountID)).To(Succeed())
		Expect(st.Masters.Grant(ctx, 9999)).To(MatchError(account.ErrNotFound))
	})
})
