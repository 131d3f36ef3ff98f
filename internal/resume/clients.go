// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package resume

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/beachbev/accountd/internal/cloud"
)

var (
	newSTSClient = func(cfg aws.Config, optFns ...func(*sts.Options)) stsAPI {
		return sts.NewFromConfig(cfg, optFns...)
	}
	newS3Client = func(cfg aws.Config, optFns ...func(*s3.Options)) s3API {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// Clients builds the STS and S3 clients for cfg into deps.
func Clients(ctx context.Context, cfg cloud.Config, deps *Deps) error {
	awsCfg, err := cloud.Load(ctx, cfg)
	if err != nil {
		return err
	}
	deps.STS = newSTSClient(awsCfg, func(o *sts.Options) {
		o.BaseEndpoint = cfg.BaseEndpoint()
	})
	deps.S3 = newS3Client(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = cfg.BaseEndpoint()
		// Local S3 emulators only serve path-style requests.
		o.UsePathStyle = cfg.Endpoint != ""
	})
	return nil
}
