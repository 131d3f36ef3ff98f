// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

// Package cloud loads the AWS configuration shared by the mail and resume
// collaborators.
package cloud

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go"
	"github.com/samber/oops"
)

// Config selects the region and, optionally, an endpoint and static
// credentials. Without static credentials the default chain applies.
type Config struct {
	Region          string `koanf:"region"`
	Endpoint        string `koanf:"endpoint"`
	AccessKeyID     string `koanf:"access_key_id"`
	SecretAccessKey string `koanf:"secret_access_key"`
}

// DefaultConfig returns the region the service has always run in.
func DefaultConfig() Config {
	return Config{Region: "us-west-1"}
}

// Validate checks that static credentials come in pairs.
func (c Config) Validate() error {
	if c.Region == "" {
		return oops.Code("CONFIG_INVALID").Errorf("aws region is required")
	}
	if (c.AccessKeyID == "") != (c.SecretAccessKey == "") {
		return oops.Code("CONFIG_INVALID").Errorf("aws access key id and secret access key must be set together")
	}
	return nil
}

var loadDefaultConfig = config.LoadDefaultConfig

// Load resolves an aws.Config for c.
func Load(ctx context.Context, c Config) (aws.Config, error) {
	if err := c.Validate(); err != nil {
		return aws.Config{}, err
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, "")))
	}
	cfg, err := loadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, oops.Code("AWS_CONFIG_FAILED").With("region", c.Region).Wrap(err)
	}
	return cfg, nil
}

// BaseEndpoint returns the endpoint override for service clients, nil when
// the default endpoint should be used.
func (c Config) BaseEndpoint() *string {
	if c.Endpoint == "" {
		return nil
	}
	return aws.String(c.Endpoint)
}

// ErrorText renders a provider error the way replies show it: the API code
// and message when there is one, the plain error otherwise.
func ErrorText(err error) string {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err.Error()
	}
	if apiErr.ErrorMessage() == "" {
		return apiErr.ErrorCode()
	}
	return apiErr.ErrorCode() + ": " + apiErr.ErrorMessage()
}

// IsThrottle reports whether err is the provider asking the caller to slow
// down.
func IsThrottle(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "TooManyRequestsException", "Throttling", "ThrottlingException", "SlowDown":
		return true
	}
	return false
}
