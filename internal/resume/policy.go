// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package resume

import (
	"encoding/json"
	"strconv"

	"github.com/samber/oops"
)

const policyVersion = "2012-10-17"

// Policy is an IAM policy document.
type Policy struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is one statement of a Policy.
type Statement struct {
	Sid       string                         `json:"Sid,omitempty"`
	Effect    string                         `json:"Effect"`
	Action    []string                       `json:"Action"`
	Resource  []string                       `json:"Resource"`
	Condition map[string]map[string][]string `json:"Condition,omitempty"`
}

func bucketARN(bucket string) string { return "arn:aws:s3:::" + bucket }

// Folder is the key prefix holding an account's resume, without the
// trailing slash.
func Folder(accountID int64) string { return strconv.FormatInt(accountID, 10) }

// UserPolicy lets an account list its own folder and read and write the
// objects in it.
func UserPolicy(bucket string, accountID int64) Policy {
	folder := Folder(accountID)
	return Policy{
		Version: policyVersion,
		Statement: []Statement{
			{
				Sid:       "AllowListingOfUserFolder",
				Effect:    "Allow",
				Action:    []string{"s3:ListBucket"},
				Resource:  []string{bucketARN(bucket)},
				Condition: map[string]map[string][]string{"StringLike": {"s3:prefix": {folder + "/*"}}},
			},
			{
				Sid:      "AllowUserFolderObjects",
				Effect:   "Allow",
				Action:   []string{"s3:GetObject", "s3:PutObject"},
				Resource: []string{bucketARN(bucket) + "/" + folder + "/*"},
			},
		},
	}
}

// MasterPolicy opens the whole bucket.
func MasterPolicy(bucket string) Policy {
	return Policy{
		Version: policyVersion,
		Statement: []Statement{
			{
				Effect:   "Allow",
				Action:   []string{"s3:ListBucket"},
				Resource: []string{bucketARN(bucket)},
			},
			{
				Sid:      "AllowAllObjects",
				Effect:   "Allow",
				Action:   []string{"s3:GetObject", "s3:PutObject"},
				Resource: []string{bucketARN(bucket) + "/*"},
			},
		},
	}
}

// JSON renders the document for the STS Policy parameter.
func (p Policy) JSON() (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", oops.Code("POLICY_ENCODE_FAILED").Wrap(err)
	}
	return string(b), nil
}
