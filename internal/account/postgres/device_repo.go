// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package postgres

import (
	"context"
	"errors"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/beachbev/accountd/internal/account"
)

// DeviceTokenRepository implements account.DeviceTokenRepository using PostgreSQL.
type DeviceTokenRepository struct {
	db DB
}

var _ account.DeviceTokenRepository = (*DeviceTokenRepository)(nil)

// NewDeviceTokenRepository creates a new DeviceTokenRepository.
func NewDeviceTokenRepository(db DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// Get returns the token of one device.
func (r *DeviceTokenRepository) Get(ctx context.Context, accountID int64, deviceID int32) (*account.DeviceToken, error) {
	tok := &account.DeviceToken{AccountID: accountID, DeviceID: deviceID}
	err := r.db.QueryRow(ctx, `
		SELECT token_hash, issued_at
		FROM device_tokens
		WHERE account_id = $1 AND device_id = $2
	`, accountID, deviceID).Scan(&tok.Digest, &tok.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, account.ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("DEVICE_TOKEN_GET_FAILED").
			With("account_id", accountID).
			With("device_id", deviceID).
			Wrap(err)
	}
	return tok, nil
}

// Put writes the token of a device, replacing whatever was there.
func (r *DeviceTokenRepository) Put(ctx context.Context, tok *account.DeviceToken) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO device_tokens (account_id, device_id, token_hash, issued_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (account_id, device_id)
		DO UPDATE SET token_hash = EXCLUDED.token_hash, issued_at = EXCLUDED.issued_at
	`, tok.AccountID, tok.DeviceID, tok.Digest, tok.IssuedAt)
	if err != nil {
		return oops.Code("DEVICE_TOKEN_PUT_FAILED").
			With("operation", "upsert device token").
			With("account_id", tok.AccountID).
			With("device_id", tok.DeviceID).
			Wrap(err)
	}
	return nil
}

// NextDeviceID returns one past the highest device id of the account. The
// sum is taken as bigint so the highest INTEGER id does not overflow.
func (r *DeviceTokenRepository) NextDeviceID(ctx context.Context, accountID int64) (int32, error) {
	var next int64
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(MAX(device_id), 0)::bigint + 1 FROM device_tokens WHERE account_id = $1
	`, accountID).Scan(&next)
	if err != nil {
		return 0, oops.Code("DEVICE_ID_ALLOCATE_FAILED").
			With("account_id", accountID).
			Wrap(err)
	}
	if next > math.MaxInt32 {
		return 0, oops.Code("DEVICE_IDS_EXHAUSTED").
			With("account_id", accountID).
			Wrap(account.ErrDevicesExhausted)
	}
	return int32(next), nil
}
