package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolbridge/toolbridge/internal/toolclient"
)

func TestProfileApplyOverridesOnlySetFields(t *testing.T) {
	base := toolclient.Config{
		BaseURL:    "http://agent.internal:8080",
		Timeout:    5 * time.Second,
		MaxRetries: 2,
	}

	retries := 4
	profile := Profile{
		Endpoint: "https://staging.agent.internal",
		Timeout:  "250ms",
		Retries:  &retries,
	}

	got := profile.apply(base)
	assert.Equal(t, "https://staging.agent.internal", got.BaseURL)
	assert.Equal(t, 250*time.Millisecond, got.Timeout)
	assert.Equal(t, 4, got.MaxRetries)

	got = Profile{}.apply(base)
	assert.Equal(t, base, got, "empty profile leaves the config untouched")
}

func TestProfileApplyIgnoresInvalidTimeout(t *testing.T) {
	base := toolclient.Config{Timeout: 5 * time.Second}

	got := Profile{Timeout: "not-a-duration"}.apply(base)
	assert.Equal(t, 5*time.Second, got.Timeout)

	got = Profile{Timeout: "-1s"}.apply(base)
	assert.Equal(t, 5*time.Second, got.Timeout)
}

func TestLoadProfilesMissingFileYieldsEmptySet(t *testing.T) {
	profiles, err := LoadProfiles(filepath.Join(t.TempDir(), "profiles.yaml"))
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestLoadProfilesParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	contents := `
staging:
  endpoint: https://staging.agent.internal
  timeout: 2s
  retries: 1
local:
  endpoint: http://127.0.0.1:8080
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	profiles, err := LoadProfiles(path)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	staging := profiles["staging"]
	assert.Equal(t, "https://staging.agent.internal", staging.Endpoint)
	assert.Equal(t, "2s", staging.Timeout)
	require.NotNil(t, staging.Retries)
	assert.Equal(t, 1, *staging.Retries)

	local := profiles["local"]
	assert.Equal(t, "http://127.0.0.1:8080", local.Endpoint)
	assert.Nil(t, local.Retries)
}

func TestLoadProfilesRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [unclosed"), 0o600))

	_, err := LoadProfiles(path)
	assert.ErrorContains(t, err, "parse profiles")
}
