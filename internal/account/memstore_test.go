// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account_test

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/beachbev/accountd/internal/account"
)

// memStore is an in-memory account.Store with the same semantics as the
// PostgreSQL one, for flow tests that cross several repositories.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	accounts map[int64]*memAccount
	devices  map[devKey]account.DeviceToken
	resets   map[int64]account.ResetToken
	bindings map[int64]*memBinding
	masters  map[int64]bool
}

type memAccount struct {
	name  string
	creds account.Credentials
}

type devKey struct {
	account int64
	device  int32
}

type memBinding struct {
	verified   string
	unverified string
	digest     []byte
	issuedAt   time.Time
}

func newMemStore() *memStore {
	return &memStore{
		accounts: make(map[int64]*memAccount),
		devices:  make(map[devKey]account.DeviceToken),
		resets:   make(map[int64]account.ResetToken),
		bindings: make(map[int64]*memBinding),
		masters:  make(map[int64]bool),
	}
}

func (m *memStore) store() account.Store {
	return account.Store{
		Accounts: memAccounts{m},
		Devices:  memDevices{m},
		Resets:   memResets{m},
		Emails:   memEmails{m},
		Masters:  memMasters{m},
	}
}

// bind seeds a binding directly, bypassing verification.
func (m *memStore) bind(id int64, verified, unverified string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[id] = &memBinding{verified: verified, unverified: unverified}
}

func (m *memStore) accountCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

type memAccounts struct{ m *memStore }

func (r memAccounts) Create(_ context.Context, name string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, a := range r.m.accounts {
		if a.name == name {
			return 0, account.ErrDuplicate
		}
	}
	r.m.nextID++
	r.m.accounts[r.m.nextID] = &memAccount{name: name}
	return r.m.nextID, nil
}

func (r memAccounts) Delete(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.accounts[id]; !ok {
		return account.ErrNotFound
	}
	delete(r.m.accounts, id)
	for k := range r.m.devices {
		if k.account == id {
			delete(r.m.devices, k)
		}
	}
	delete(r.m.resets, id)
	delete(r.m.bindings, id)
	delete(r.m.masters, id)
	return nil
}

func (r memAccounts) IDByName(_ context.Context, name string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, a := range r.m.accounts {
		if a.name == name {
			return id, nil
		}
	}
	return 0, account.ErrNotFound
}

func (r memAccounts) NameByID(_ context.Context, id int64) (string, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return "", account.ErrNotFound
	}
	return a.name, nil
}

func (r memAccounts) Credentials(_ context.Context, id int64) (account.Credentials, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return account.Credentials{}, account.ErrNotFound
	}
	return a.creds, nil
}

func (r memAccounts) SetPassword(_ context.Context, id int64, hash, salt []byte) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	a, ok := r.m.accounts[id]
	if !ok {
		return account.ErrNotFound
	}
	a.creds = account.Credentials{Hash: bytes.Clone(hash), Salt: bytes.Clone(salt)}
	for k := range r.m.devices {
		if k.account == id {
			delete(r.m.devices, k)
		}
	}
	return nil
}

type memDevices struct{ m *memStore }

func (r memDevices) Get(_ context.Context, accountID int64, deviceID int32) (*account.DeviceToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	tok, ok := r.m.devices[devKey{accountID, deviceID}]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &tok, nil
}

func (r memDevices) Put(_ context.Context, tok *account.DeviceToken) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if _, ok := r.m.accounts[tok.AccountID]; !ok {
		return account.ErrNotFound
	}
	r.m.devices[devKey{tok.AccountID, tok.DeviceID}] = *tok
	return nil
}

func (r memDevices) NextDeviceID(_ context.Context, accountID int64) (int32, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var highest int32
	for k := range r.m.devices {
		if k.account == accountID && k.device > highest {
			highest = k.device
		}
	}
	return highest + 1, nil
}

type memResets struct{ m *memStore }

func (r memResets) Put(_ context.Context, tok *account.ResetToken) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.resets[tok.AccountID] = *tok
	return nil
}

func (r memResets) GetByDigest(_ context.Context, digest []byte) (*account.ResetToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for _, tok := range r.m.resets {
		if bytes.Equal(tok.Digest, digest) {
			return &tok, nil
		}
	}
	return nil, account.ErrNotFound
}

func (r memResets) Consume(
	_ context.Context,
	digest []byte,
	check func(*account.ResetToken) error,
	hash, salt []byte,
) (*account.ResetToken, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, tok := range r.m.resets {
		if !bytes.Equal(tok.Digest, digest) {
			continue
		}
		if check != nil {
			if err := check(&tok); err != nil {
				return nil, err
			}
		}
		a, ok := r.m.accounts[id]
		if !ok {
			return nil, account.ErrNotFound
		}
		delete(r.m.resets, id)
		a.creds = account.Credentials{Hash: bytes.Clone(hash), Salt: bytes.Clone(salt)}
		for k := range r.m.devices {
			if k.account == id {
				delete(r.m.devices, k)
			}
		}
		return &tok, nil
	}
	return nil, account.ErrNotFound
}

func (r memResets) DeleteIssuedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	var n int64
	for id, tok := range r.m.resets {
		if tok.IssuedAt.Before(cutoff) {
			delete(r.m.resets, id)
			n++
		}
	}
	return n, nil
}

type memEmails struct{ m *memStore }

func (r memEmails) AccountByVerified(_ context.Context, email string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, b := range r.m.bindings {
		if b.verified == email {
			return id, nil
		}
	}
	return 0, account.ErrNotFound
}

func (r memEmails) AccountByUnverified(_ context.Context, email string) (int64, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, b := range r.m.bindings {
		if b.unverified == email {
			return id, nil
		}
	}
	return 0, account.ErrNotFound
}

func (r memEmails) Binding(_ context.Context, accountID int64) (*account.EmailBinding, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bindings[accountID]
	if !ok {
		return nil, account.ErrNotFound
	}
	return &account.EmailBinding{AccountID: accountID, Verified: b.verified, Unverified: b.unverified}, nil
}

func (r memEmails) BindUnverified(_ context.Context, v *account.Verification) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bindings[v.AccountID]
	if !ok {
		b = &memBinding{}
		r.m.bindings[v.AccountID] = b
	}
	b.unverified = v.Email
	b.digest = bytes.Clone(v.Digest)
	b.issuedAt = v.IssuedAt
	return nil
}

func (r memEmails) VerificationByDigest(_ context.Context, digest []byte) (*account.Verification, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for id, b := range r.m.bindings {
		if b.digest != nil && bytes.Equal(b.digest, digest) {
			return &account.Verification{AccountID: id, Email: b.unverified, Digest: b.digest, IssuedAt: b.issuedAt}, nil
		}
	}
	return nil, account.ErrNotFound
}

func (r memEmails) PromoteVerified(_ context.Context, accountID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	b, ok := r.m.bindings[accountID]
	if !ok || b.unverified == "" {
		return account.ErrNotFound
	}
	for id, other := range r.m.bindings {
		if id != accountID && other.verified == b.unverified {
			return account.ErrDuplicate
		}
	}
	b.verified, b.unverified, b.digest = b.unverified, "", nil
	return nil
}

type memMasters struct{ m *memStore }

func (r memMasters) IsMaster(_ context.Context, accountID int64) (bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.masters[accountID], nil
}

func (r memMasters) Grant(_ context.Context, accountID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.masters[accountID] = true
	return nil
}

func (r memMasters) Revoke(_ context.Context, accountID int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	delete(r.m.masters, accountID)
	return nil
}

// queuedMailer holds sends until the test completes them.
type queuedMailer struct {
	mu    sync.Mutex
	sends []queuedSend
}

type queuedSend struct {
	kind  string
	to    string
	token string
	done  func(error)
}

func (q *queuedMailer) SendVerification(_ context.Context, to, encodedToken string, done func(error)) {
	q.push(queuedSend{kind: "verification", to: to, token: encodedToken, done: done})
}

func (q *queuedMailer) SendPasswordReset(_ context.Context, to, encodedToken string, done func(error)) {
	q.push(queuedSend{kind: "reset", to: to, token: encodedToken, done: done})
}

func (q *queuedMailer) push(s queuedSend) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sends = append(q.sends, s)
}

// pop removes and returns the oldest queued send.
func (q *queuedMailer) pop() queuedSend {
	q.mu.Lock()
	defer q.mu.Unlock()
	s := q.sends[0]
	q.sends = q.sends[1:]
	return s
}

// inbox records replies per connection. Connections are "connected" unless
// listed in gone.
type inbox struct {
	mu     sync.Mutex
	gone   map[ulid.ULID]bool
	issued map[ulid.ULID][]account.Issued
	acks   map[ulid.ULID][]account.Ack
}

func newInbox() *inbox {
	return &inbox{
		gone:   make(map[ulid.ULID]bool),
		issued: make(map[ulid.ULID][]account.Issued),
		acks:   make(map[ulid.ULID][]account.Ack),
	}
}

func (n *inbox) disconnect(id ulid.ULID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gone[id] = true
}

func (n *inbox) WhileConnected(id ulid.ULID, fn func()) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.gone[id] {
		return false
	}
	fn()
	return true
}

func (n *inbox) NotifyIssued(id ulid.ULID, reply account.Issued) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.gone[id] {
		return false
	}
	n.issued[id] = append(n.issued[id], reply)
	return true
}

func (n *inbox) NotifyAck(id ulid.ULID, _ account.AckKind, reply account.Ack) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.gone[id] {
		return false
	}
	n.acks[id] = append(n.acks[id], reply)
	return true
}

func (n *inbox) lastIssued(id ulid.ULID) (account.Issued, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	replies := n.issued[id]
	if len(replies) == 0 {
		return account.Issued{}, false
	}
	return replies[len(replies)-1], true
}

func (n *inbox) lastAck(id ulid.ULID) (account.Ack, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	replies := n.acks[id]
	if len(replies) == 0 {
		return account.Ack{}, false
	}
	return replies[len(replies)-1], true
}

// recordingMetrics counts what the services report.
type recordingMetrics struct {
	mu        sync.Mutex
	swallowed []string
	states    []account.RegistrationState
	dropped   []string
	throttled int
}

func (r *recordingMetrics) SwallowedWrite(op string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.swallowed = append(r.swallowed, op)
}

func (r *recordingMetrics) RegistrationState(s account.RegistrationState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recordingMetrics) AsyncOutcome(string, bool) {}

func (r *recordingMetrics) DroppedReply(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped = append(r.dropped, kind)
}

func (r *recordingMetrics) LoginThrottled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.throttled++
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
