// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package resume

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/aws/smithy-go"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beachbev/accountd/internal/account"
	"github.com/beachbev/accountd/internal/account/mocks"
	"github.com/beachbev/accountd/internal/core"
	"github.com/beachbev/accountd/internal/worker"
	"github.com/beachbev/accountd/pkg/errutil"
)

type fakeSTS struct {
	in  *sts.GetFederationTokenInput
	err error
}

func (f *fakeSTS) GetFederationToken(_ context.Context, in *sts.GetFederationTokenInput, _ ...func(*sts.Options)) (*sts.GetFederationTokenOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetFederationTokenOutput{Credentials: &ststypes.Credentials{
		AccessKeyId:     aws.String("ASIA"),
		SecretAccessKey: aws.String("secret"),
		SessionToken:    aws.String("session"),
		Expiration:      aws.Time(time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)),
	}}, nil
}

type fakeS3 struct {
	in   *s3.ListObjectsV2Input
	keys int32
	err  error
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &s3.ListObjectsV2Output{KeyCount: aws.Int32(f.keys)}, nil
}

// inline runs tasks on the caller's goroutine.
type inline struct{}

func (inline) Submit(ctx context.Context, _ string, task worker.Task) error {
	_ = task(ctx) //nolint:errcheck // outcome goes through the notifier
	return nil
}

type notes struct {
	access map[ulid.ULID]Access
	has    map[ulid.ULID]bool
	gone   bool
}

func (n *notes) NotifyAccess(conn ulid.ULID, a Access) bool {
	if n.access == nil {
		n.access = map[ulid.ULID]Access{}
	}
	n.access[conn] = a
	return !n.gone
}

func (n *notes) NotifyHasResume(conn ulid.ULID, has bool) bool {
	if n.has == nil {
		n.has = map[ulid.ULID]bool{}
	}
	n.has[conn] = has
	return !n.gone
}

type fixture struct {
	svc      *Service
	sts      *fakeSTS
	s3       *fakeS3
	emails   *mocks.MockEmailDirectory
	masters  *mocks.MockMasterDirectory
	sessions *core.SessionManager
	notes    *notes
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sts:      &fakeSTS{},
		s3:       &fakeS3{},
		emails:   mocks.NewMockEmailDirectory(t),
		masters:  mocks.NewMockMasterDirectory(t),
		sessions: core.NewSessionManager(),
		notes:    &notes{},
	}
	svc, err := NewService(DefaultConfig(), Deps{
		STS: f.sts, S3: f.s3,
		Emails: f.emails, Masters: f.masters,
		Sessions: f.sessions, Pool: inline{}, Notifier: f.notes,
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) login(accountID int64) ulid.ULID {
	conn := core.NewConnID()
	f.sessions.Login(accountID, conn)
	return conn
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Config{}, Deps{})
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")

	cfg := DefaultConfig()
	cfg.Duration = time.Minute
	_, err = NewService(cfg, Deps{})
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")

	_, err = NewService(DefaultConfig(), Deps{})
	assert.ErrorContains(t, err, "sts and s3 clients are required")
}

func TestService_RequestAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("not logged in", func(t *testing.T) {
		f := newFixture(t)
		reply, err := f.svc.RequestAccess(ctx, core.NewConnID())
		errutil.AssertErrorCode(t, err, account.CodeNotLoggedIn)
		assert.Equal(t, account.MsgNotLoggedIn, reply.Message)
	})

	t.Run("email not verified", func(t *testing.T) {
		f := newFixture(t)
		conn := f.login(42)
		f.emails.On("Binding", ctx, int64(42)).Return(&account.EmailBinding{AccountID: 42, Unverified: "a@x.com"}, nil)

		reply, err := f.svc.RequestAccess(ctx, conn)
		errutil.AssertErrorCode(t, err, account.CodeEmailNotVerified)
		assert.Equal(t, MsgEmailNotVerified, reply.Message)
		assert.Nil(t, f.sts.in)
	})

	t.Run("issues folder credentials", func(t *testing.T) {
		f := newFixture(t)
		conn := f.login(42)
		f.emails.On("Binding", ctx, int64(42)).Return(&account.EmailBinding{AccountID: 42, Verified: "a@x.com"}, nil)

		reply, err := f.svc.RequestAccess(ctx, conn)
		require.NoError(t, err)
		assert.Nil(t, reply)

		assert.Equal(t, "pdf_usr", aws.ToString(f.sts.in.Name))
		assert.Equal(t, int32(3600), aws.ToInt32(f.sts.in.DurationSeconds))
		assert.Contains(t, aws.ToString(f.sts.in.Policy), "beachbev-resumes/42/*")

		got := f.notes.access[conn]
		assert.True(t, got.OK())
		assert.Equal(t, "42", got.Folder)
		assert.Equal(t, "session", got.SessionToken)
	})

	t.Run("federation failure", func(t *testing.T) {
		f := newFixture(t)
		conn := f.login(42)
		f.emails.On("Binding", ctx, int64(42)).Return(&account.EmailBinding{AccountID: 42, Verified: "a@x.com"}, nil)
		f.sts.err = &smithy.GenericAPIError{Code: "AccessDenied", Message: "no"}

		_, err := f.svc.RequestAccess(ctx, conn)
		require.NoError(t, err)
		assert.Equal(t, Access{Message: MsgFederationFailed + "AccessDenied: no"}, f.notes.access[conn])
	})
}

func TestService_RequestMasterAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("not a master", func(t *testing.T) {
		f := newFixture(t)
		conn := f.login(7)
		f.masters.On("IsMaster", ctx, int64(7)).Return(false, nil)

		reply, err := f.svc.RequestMasterAccess(ctx, conn)
		errutil.AssertErrorCode(t, err, account.CodeNotPrivileged)
		assert.Equal(t, MsgNotMaster, reply.Message)
	})

	t.Run("bucket-wide policy", func(t *testing.T) {
		f := newFixture(t)
		conn := f.login(7)
		f.masters.On("IsMaster", ctx, int64(7)).Return(true, nil)

		_, err := f.svc.RequestMasterAccess(ctx, conn)
		require.NoError(t, err)
		assert.Contains(t, aws.ToString(f.sts.in.Policy), `"arn:aws:s3:::beachbev-resumes/*"`)
		assert.True(t, f.notes.access[conn].OK())
	})
}

func TestService_HasResume(t *testing.T) {
	ctx := context.Background()

	t.Run("lists the folder", func(t *testing.T) {
		f := newFixture(t)
		f.s3.keys = 1
		conn := f.login(42)

		reply, err := f.svc.HasResume(ctx, conn)
		require.NoError(t, err)
		assert.Nil(t, reply)
		assert.Equal(t, "42/", aws.ToString(f.s3.in.Prefix))
		assert.Equal(t, int32(1), aws.ToInt32(f.s3.in.MaxKeys))
		assert.True(t, f.notes.has[conn])
	})

	t.Run("listing error answers false", func(t *testing.T) {
		f := newFixture(t)
		f.s3.err = errors.New("timeout")
		conn := f.login(42)

		_, err := f.svc.HasResume(ctx, conn)
		require.NoError(t, err)
		has, replied := f.notes.has[conn]
		assert.True(t, replied)
		assert.False(t, has)
	})

	t.Run("not logged in", func(t *testing.T) {
		f := newFixture(t)
		reply, err := f.svc.HasResume(ctx, core.NewConnID())
		errutil.AssertErrorCode(t, err, account.CodeNotLoggedIn)
		require.NotNil(t, reply)
		assert.False(t, *reply)
	})
}
