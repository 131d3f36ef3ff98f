// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package resume hands logged-in accounts temporary credentials for their
// resume folder in S3 and reports whether a resume was uploaded.
package resume

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/account"
	"github.com/beachbev/accountd/internal/cloud"
	"github.com/beachbev/accountd/internal/worker"
)

// Reply texts.
const (
	MsgEmailNotVerified = "Email is not verified"
	MsgNotMaster        = "Not a master"
	MsgFederationFailed = "Failed to request access id: "
)

// Config selects the bucket and the federated user.
type Config struct {
	Bucket         string        `koanf:"bucket"`
	FederationName string        `koanf:"federation_name"`
	Duration       time.Duration `koanf:"duration"`
}

// DefaultConfig returns the production bucket and federated user.
func DefaultConfig() Config {
	return Config{
		Bucket:         "beachbev-resumes",
		FederationName: "pdf_usr",
		Duration:       time.Hour,
	}
}

// Access is the reply to an access request. Without an AccessKeyID it is a
// failure explained by Message.
type Access struct {
	Folder          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ExpiresAt       time.Time
	Message         string
}

// OK reports whether credentials were issued.
func (a Access) OK() bool { return a.AccessKeyID != "" }

// Notifier delivers asynchronous replies by connection id. Methods report
// false when the connection is gone.
type Notifier interface {
	NotifyAccess(connID ulid.ULID, access Access) bool
	NotifyHasResume(connID ulid.ULID, has bool) bool
}

// Submitter schedules a task off the caller's goroutine.
type Submitter interface {
	Submit(ctx context.Context, name string, task worker.Task) error
}

// Metrics records async outcomes and dropped replies.
type Metrics interface {
	AsyncOutcome(operation string, ok bool)
	DroppedReply(kind string)
}

type nopMetrics struct{}

func (nopMetrics) AsyncOutcome(string, bool) {}
func (nopMetrics) DroppedReply(string)       {}

type stsAPI interface {
	GetFederationToken(ctx context.Context, in *sts.GetFederationTokenInput, optFns ...func(*sts.Options)) (*sts.GetFederationTokenOutput, error)
}

type s3API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	STS      stsAPI
	S3       s3API
	Emails   account.EmailDirectory
	Masters  account.MasterDirectory
	Sessions account.SessionTracker
	Pool     Submitter
	Notifier Notifier
	Metrics  Metrics
	Logger   *slog.Logger
}

// Service implements the resume requests.
type Service struct {
	cfg Config
	Deps
}

// NewService creates a Service.
func NewService(cfg Config, deps Deps) (*Service, error) {
	switch {
	case cfg.Bucket == "" || cfg.FederationName == "":
		return nil, oops.Code("CONFIG_INVALID").Errorf("resume bucket and federation name are required")
	case cfg.Duration < 15*time.Minute || cfg.Duration > 36*time.Hour:
		return nil, oops.Code("CONFIG_INVALID").
			With("duration", cfg.Duration).
			Errorf("federation duration must be between 15m and 36h")
	case deps.STS == nil || deps.S3 == nil:
		return nil, oops.Errorf("sts and s3 clients are required")
	case deps.Emails == nil || deps.Masters == nil:
		return nil, oops.Errorf("email and master directories are required")
	case deps.Sessions == nil:
		return nil, oops.Errorf("session tracker is required")
	case deps.Pool == nil:
		return nil, oops.Errorf("worker pool is required")
	case deps.Notifier == nil:
		return nil, oops.Errorf("notifier is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{cfg: cfg, Deps: deps}, nil
}

type pendingGrant struct {
	connID ulid.ULID
	folder string
}

// RequestAccess issues credentials for the caller's own folder. The caller
// needs a verified email. A nil reply means the answer comes later through
// NotifyAccess.
func (s *Service) RequestAccess(ctx context.Context, connID ulid.ULID) (*Access, error) {
	accountID, ok := s.Sessions.AccountOf(connID)
	if !ok {
		return &Access{Message: account.MsgNotLoggedIn}, oops.Code(account.CodeNotLoggedIn).Errorf("%s", account.MsgNotLoggedIn)
	}
	binding, err := s.Emails.Binding(ctx, accountID)
	if err != nil && !errors.Is(err, account.ErrNotFound) {
		return &Access{Message: MsgEmailNotVerified}, oops.Code("BINDING_GET_FAILED").With("account_id", accountID).Wrap(err)
	}
	if binding == nil || binding.Verified == "" {
		return &Access{Message: MsgEmailNotVerified}, oops.Code(account.CodeEmailNotVerified).
			With("account_id", accountID).
			Errorf("%s", MsgEmailNotVerified)
	}
	return s.grant(ctx, pendingGrant{connID: connID, folder: Folder(accountID)}, UserPolicy(s.cfg.Bucket, accountID))
}

// RequestMasterAccess issues credentials for the whole bucket to masters.
func (s *Service) RequestMasterAccess(ctx context.Context, connID ulid.ULID) (*Access, error) {
	accountID, ok := s.Sessions.AccountOf(connID)
	if !ok {
		return &Access{Message: account.MsgNotLoggedIn}, oops.Code(account.CodeNotLoggedIn).Errorf("%s", account.MsgNotLoggedIn)
	}
	master, err := s.Masters.IsMaster(ctx, accountID)
	if err != nil {
		return &Access{Message: MsgNotMaster}, oops.Code("MASTER_CHECK_FAILED").With("account_id", accountID).Wrap(err)
	}
	if !master {
		return &Access{Message: MsgNotMaster}, oops.Code(account.CodeNotPrivileged).
			With("account_id", accountID).
			Errorf("%s", MsgNotMaster)
	}
	return s.grant(ctx, pendingGrant{connID: connID, folder: Folder(accountID)}, MasterPolicy(s.cfg.Bucket))
}

func (s *Service) grant(ctx context.Context, p pendingGrant, policy Policy) (*Access, error) {
	doc, err := policy.JSON()
	if err != nil {
		return &Access{Message: MsgFederationFailed + err.Error()}, err
	}
	err = s.Pool.Submit(ctx, "federation_token", func(ctx context.Context) error {
		out, err := s.STS.GetFederationToken(ctx, &sts.GetFederationTokenInput{
			Name:            aws.String(s.cfg.FederationName),
			Policy:          aws.String(doc),
			DurationSeconds: aws.Int32(int32(s.cfg.Duration / time.Second)),
		})
		s.completeGrant(ctx, p, out, err)
		return err
	})
	if err != nil {
		return &Access{Message: MsgFederationFailed + err.Error()}, oops.Code(account.CodeFederationFailed).Wrap(err)
	}
	return nil, nil
}

func (s *Service) completeGrant(ctx context.Context, p pendingGrant, out *sts.GetFederationTokenOutput, err error) {
	var reply Access
	switch {
	case err != nil:
		reply.Message = MsgFederationFailed + cloud.ErrorText(err)
		s.Logger.WarnContext(ctx, "federation token request failed", "conn_id", p.connID.String(), "error", err)
	case out.Credentials == nil:
		reply.Message = MsgFederationFailed + "no credentials returned"
	default:
		reply = Access{
			Folder:          p.folder,
			AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
			SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
			SessionToken:    aws.ToString(out.Credentials.SessionToken),
			ExpiresAt:       aws.ToTime(out.Credentials.Expiration),
		}
	}
	s.Metrics.AsyncOutcome("federation_token", reply.OK())
	if !s.Notifier.NotifyAccess(p.connID, reply) {
		s.Metrics.DroppedReply("resume_access")
	}
}

// HasResume reports whether the caller's folder holds any object. A nil
// reply means the answer comes later through NotifyHasResume.
func (s *Service) HasResume(ctx context.Context, connID ulid.ULID) (*bool, error) {
	accountID, ok := s.Sessions.AccountOf(connID)
	if !ok {
		no := false
		return &no, oops.Code(account.CodeNotLoggedIn).Errorf("%s", account.MsgNotLoggedIn)
	}
	prefix := Folder(accountID) + "/"
	err := s.Pool.Submit(ctx, "resume_listing", func(ctx context.Context) error {
		out, err := s.S3.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(s.cfg.Bucket),
			Prefix:  aws.String(prefix),
			MaxKeys: aws.Int32(1),
		})
		has := false
		if err != nil {
			s.Logger.WarnContext(ctx, "resume listing failed", "prefix", prefix, "error", err)
		} else {
			has = aws.ToInt32(out.KeyCount) > 0 || len(out.Contents) > 0
		}
		s.Metrics.AsyncOutcome("resume_listing", err == nil)
		if !s.Notifier.NotifyHasResume(connID, has) {
			s.Metrics.DroppedReply("has_resume")
		}
		return err
	})
	if err != nil {
		no := false
		return &no, oops.Code(account.CodeListingFailed).Wrap(err)
	}
	return nil, nil
}
