// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package mail

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/cloud"
)

const charset = "UTF-8"

// sesAPI is the part of *sesv2.Client the sender calls.
type sesAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

var newSESClient = func(cfg aws.Config, optFns ...func(*sesv2.Options)) sesAPI {
	return sesv2.NewFromConfig(cfg, optFns...)
}

// SESSender sends through Amazon SES.
type SESSender struct {
	client sesAPI
	from   string
}

// NewSESSender creates a sender with from as the envelope and header sender.
func NewSESSender(ctx context.Context, cfg cloud.Config, from string) (*SESSender, error) {
	if from == "" {
		return nil, oops.Code("CONFIG_INVALID").Errorf("mail from address is required")
	}
	awsCfg, err := cloud.Load(ctx, cfg)
	if err != nil {
		return nil, err
	}
	client := newSESClient(awsCfg, func(o *sesv2.Options) {
		o.BaseEndpoint = cfg.BaseEndpoint()
	})
	return &SESSender{client: client, from: from}, nil
}

// Send implements Sender.
func (s *SESSender) Send(ctx context.Context, msg Message) error {
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charset)},
				},
			},
		},
	})
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("subject", msg.Subject).Wrap(err)
	}
	slog.DebugContext(ctx, "email accepted", "subject", msg.Subject, "message_id", aws.ToString(out.MessageId))
	return nil
}
