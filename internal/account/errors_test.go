// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package account_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/beachbev/accountd/internal/account"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want account.Kind
	}{
		{"nil", nil, account.KindNone},
		{"validation", oops.Code(account.CodeNameTaken).Errorf("x"), account.KindValidation},
		{"authentication", oops.Code(account.CodeTokenExpired).Errorf("x"), account.KindAuthentication},
		{"external", oops.Code(account.CodeMailSendFailed).Errorf("x"), account.KindExternal},
		{"swallowed write", oops.Code(account.CodeSwallowedWrite).Errorf("x"), account.KindInternal},
		{"repository failure", oops.Code("DEVICE_TOKEN_PUT_FAILED").Wrap(errors.New("conn reset")), account.KindStorage},
		{"bare not found", account.ErrNotFound, account.KindStorage},
		{"uncoded", errors.New("boom"), account.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, account.KindOf(tt.err))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "validation", account.KindValidation.String())
	assert.Equal(t, "internal", account.KindInternal.String())
	assert.Equal(t, "unknown", account.Kind(99).String())
}
