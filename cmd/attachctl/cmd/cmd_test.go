package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/taskfiles/internal/service"
)

const testSecret = "attachctl-test-secret"

func setupEnv(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("APP_ENV", "development")
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_CONNECTION", filepath.Join(dir, "cli.db")+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	t.Setenv("STORAGE_BACKEND", "local")
	t.Setenv("STORAGE_LOCAL_ROOT", filepath.Join(dir, "blobs"))
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return strings.TrimSpace(out.String()), err
}

func TestTokenCmd(t *testing.T) {
	setupEnv(t)

	out, err := run(t, TokenCmd(), "--user", "u1", "--tenant", "t1", "--expiry", "5m")
	require.NoError(t, err)

	identity, err := service.NewAuthService(testSecret, time.Hour).VerifyJWT(out)
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.UserID)
	assert.Equal(t, "t1", identity.TenantID)

	_, err = run(t, TokenCmd(), "--user", "u1")
	assert.Error(t, err, "tenant flag is required")
}

func TestMigrateAndTenantCmds(t *testing.T) {
	setupEnv(t)

	out, err := run(t, MigrateCmd(), "up")
	require.NoError(t, err)
	assert.Equal(t, "schema version 3", out)

	out, err = run(t, TenantCmd(), "create", "Acme", "Corp")
	require.NoError(t, err)
	assert.Len(t, out, 36, "tenant id is a uuid")

	out, err = run(t, PurgeCmd(), "--limit", "10")
	require.NoError(t, err)
	assert.JSONEq(t, `{"candidates":0,"purged":0,"failed":0}`, out)

	out, err = run(t, MigrateCmd(), "version")
	require.NoError(t, err)
	assert.Equal(t, "schema version 3", out)
}
