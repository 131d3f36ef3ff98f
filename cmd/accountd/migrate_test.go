// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 BeachBev Contributors

package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beachbev/accountd/pkg/errutil"
)

func TestParseForceVersion(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantVersion int
		wantErr     bool
	}{
		{name: "valid integer", input: "3", wantVersion: 3},
		{name: "zero is valid", input: "0", wantVersion: 0},
		{name: "leading whitespace is handled", input: "  42", wantVersion: 42},
		{name: "trailing chars are ignored (Sscanf stops at non-digit)", input: "3abc", wantVersion: 3},
		{name: "non-numeric returns error", input: "abc", wantErr: true},
		{name: "empty string returns error", input: "", wantErr: true},
		{name: "whitespace only returns error", input: "   ", wantErr: true},
		{name: "negative returns error", input: "-1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := parseForceVersion(tt.input)
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "INVALID_VERSION")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
		})
	}
}

func TestGetDatabaseURL(t *testing.T) {
	url, err := getDatabaseURL(isolated(map[string]string{"DATABASE_URL": "postgres://localhost:5432/testdb"}))
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost:5432/testdb", url)

	url, err = getDatabaseURL(isolated(nil))
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	assert.Empty(t, url)
}

type fakeMigrator struct {
	calls   []string
	steps   int
	forced  int
	version uint
	dirty   bool
	applied []uint
	pending []uint
	err     error
	closed  bool
}

func (f *fakeMigrator) Up() error   { f.calls = append(f.calls, "up"); return f.err }
func (f *fakeMigrator) Down() error { f.calls = append(f.calls, "down"); return f.err }
func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return f.err
}
func (f *fakeMigrator) Version() (uint, bool, error) { return f.version, f.dirty, f.err }
func (f *fakeMigrator) Force(v int) error {
	f.calls = append(f.calls, "force")
	f.forced = v
	return f.err
}
func (f *fakeMigrator) Status() ([]uint, []uint, error) { return f.applied, f.pending, f.err }
func (f *fakeMigrator) Close() error                    { f.closed = true; return nil }

// useMigrator points the migrate commands at fake.
func useMigrator(t *testing.T, fake *fakeMigrator) {
	t.Helper()
	original := newMigrator
	newMigrator = func(string) (migrator, error) { return fake, nil }
	t.Cleanup(func() { newMigrator = original })
	t.Setenv("DATABASE_URL", "postgres://localhost/test")
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func runMigrate(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewMigrateCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestMigrateCommands(t *testing.T) {
	t.Run("up", func(t *testing.T) {
		fake := &fakeMigrator{}
		useMigrator(t, fake)

		out, err := runMigrate(t, "up")
		require.NoError(t, err)
		assert.Equal(t, []string{"up"}, fake.calls)
		assert.True(t, fake.closed)
		assert.Contains(t, out, "Migrations completed successfully")
	})

	t.Run("down rolls back one step by default", func(t *testing.T) {
		fake := &fakeMigrator{}
		useMigrator(t, fake)

		_, err := runMigrate(t, "down")
		require.NoError(t, err)
		assert.Equal(t, -1, fake.steps)
	})

	t.Run("down --all", func(t *testing.T) {
		fake := &fakeMigrator{}
		useMigrator(t, fake)

		_, err := runMigrate(t, "down", "--all")
		require.NoError(t, err)
		assert.Equal(t, []string{"down"}, fake.calls)
	})

	t.Run("down rejects zero steps", func(t *testing.T) {
		fake := &fakeMigrator{}
		useMigrator(t, fake)

		_, err := runMigrate(t, "down", "--steps", "0")
		errutil.AssertErrorCode(t, err, "INVALID_STEPS")
		assert.Empty(t, fake.calls)
	})

	t.Run("status names migrations", func(t *testing.T) {
		fake := &fakeMigrator{applied: []uint{1}, pending: []uint{2}}
		useMigrator(t, fake)

		out, err := runMigrate(t, "status")
		require.NoError(t, err)
		assert.Contains(t, out, "applied  000001_")
		assert.Contains(t, out, "pending  000002_")
	})

	t.Run("version reports dirty state", func(t *testing.T) {
		fake := &fakeMigrator{version: 2, dirty: true}
		useMigrator(t, fake)

		out, err := runMigrate(t, "version")
		require.NoError(t, err)
		assert.Contains(t, out, "2 (dirty)")
	})

	t.Run("force", func(t *testing.T) {
		fake := &fakeMigrator{}
		useMigrator(t, fake)

		_, err := runMigrate(t, "force", "1")
		require.NoError(t, err)
		assert.Equal(t, 1, fake.forced)
	})

	t.Run("failure is wrapped and the migrator closed", func(t *testing.T) {
		fake := &fakeMigrator{err: assert.AnError}
		useMigrator(t, fake)

		out, err := runMigrate(t, "up")
		errutil.AssertErrorCode(t, err, "MIGRATION_FAILED")
		assert.True(t, fake.closed)
		assert.Contains(t, out, "Migration failed")
	})
}
