package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"panellogin/internal/config"
	"panellogin/internal/login"
)

func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("ACCOUNTS_JSON", "")
}

// TestRootMalformedAccountsIsFatal verifies that a broken credential file
// stops the run before any account is reported.
func TestRootMalformedAccountsIsFatal(t *testing.T) {
	isolateConfig(t)
	path := filepath.Join(t.TempDir(), "accounts.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"username": "a"`), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"--accounts", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, login.ErrCredentialSource)
	assert.Empty(t, out.String())
}

func TestRootMalformedEnvOverrideIsFatal(t *testing.T) {
	isolateConfig(t)
	t.Setenv("ACCOUNTS_JSON", `[{"username": "a", "password": "p", "panelnum": "six"}]`)

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"--accounts", filepath.Join(t.TempDir(), "missing.json")})

	err := cmd.Execute()
	assert.ErrorIs(t, err, login.ErrCredentialSource)
	assert.Contains(t, err.Error(), "$ACCOUNTS_JSON")
	assert.Empty(t, out.String())
}

func TestRootMissingAccountsFileIsFatal(t *testing.T) {
	isolateConfig(t)

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs([]string{"--accounts", filepath.Join(t.TempDir(), "missing.json")})

	err := cmd.Execute()
	assert.ErrorIs(t, err, login.ErrCredentialSource)
	assert.Empty(t, out.String())
}

func TestRootRejectsInvalidConfig(t *testing.T) {
	isolateConfig(t)

	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"--schedule", "every tuesday", "--log-level", "chatty"})

	err := cmd.Execute()
	var verrs config.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	fields := make([]string, 0, len(verrs))
	for _, v := range verrs {
		fields = append(fields, v.Field)
	}
	assert.ElementsMatch(t, []string{"schedule", "log.level"}, fields)
}

func TestRootReadsConfigFile(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "panellogin.yaml")
	accounts := filepath.Join(dir, "creds.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("accounts:\n  file: "+accounts+"\n"), 0o600))
	require.NoError(t, os.WriteFile(accounts, []byte("- username: a\n  password: ''\n  panelnum: 6\n"), 0o600))

	cmd := newRootCmd(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", cfgPath})

	err := cmd.Execute()
	assert.ErrorIs(t, err, login.ErrCredentialSource)
	assert.Contains(t, err.Error(), "creds.yaml")
	assert.Contains(t, err.Error(), "password is required")
}
