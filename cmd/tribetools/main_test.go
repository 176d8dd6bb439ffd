package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"github.com/tmoody1973/tribe-ai/config"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append([]string{"--env-file", ""}, args...))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "TRIBE tools 1.0.0\n", out)
}

func TestList(t *testing.T) {
	t.Setenv(config.EnvSiteURL, "")

	out, err := run(t, "", "list")
	require.NoError(t, err)
	for _, name := range []string{"get_agent_info", "get_user_context", "search_housing_resources", "search_live_data", "search_visa_options"} {
		assert.Contains(t, out, name)
	}

	out, err = run(t, "", "list", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"Name": "search_visa_options"`)
}

func TestCall(t *testing.T) {
	t.Setenv(config.EnvSiteURL, "")

	out, err := run(t, "", "call", "search_housing_resources", `{"country":"Germany"}`)
	require.NoError(t, err)
	assert.EqualValues(t, 2, gjson.Get(out, "totalFound").Int())

	out, err = run(t, `{"country":"canada","resource_type":"online"}`, "call", "search_housing_resources", "-")
	require.NoError(t, err)
	assert.Equal(t, "Padmapper", gjson.Get(out, "results.0.organization").String())

	out, err = run(t, "", "call", "get_user_context")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "InvalidInput: No corridor ID provided")
	assert.Equal(t, "InvalidInput", gjson.Get(out, "kind").String())

	_, err = run(t, "", "call", "get_user_context", "--corridor", "c-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NotConfigured")

	_, err = run(t, "", "call", "book_flight")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Tool `book_flight` not found")
}

func TestFlags(t *testing.T) {
	_, err := run(t, "", "--log-level", "loud", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log level: loud")

	_, err = run(t, "", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "list")
	require.Error(t, err)
}

func TestEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TRIBE_TEST_ENV_FILE=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("TRIBE_TEST_ENV_FILE") })

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--env-file", envFile, "version"})
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "loaded", os.Getenv("TRIBE_TEST_ENV_FILE"))

	// a missing file is ignored
	_, err := run(t, "", "--env-file", filepath.Join(dir, "none.env"), "version")
	require.NoError(t, err)
}
