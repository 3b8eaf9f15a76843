package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

// TestConfigReplacement_Integration tests that KV replacement works end-to-end
// against the real Config struct, the same way app startup applies it after
// loading key/value pairs from the store.
func TestConfigReplacement_Integration(t *testing.T) {
	logger := arbor.NewLogger()
	kvMap := map[string]string{
		"claude-api-key": "sk-ant-test-12345",
		"gemini-api-key": "sk-gemini-67890",
		"github-token":   "ghp_test_abcde",
		"imap-password":  "mail-secret",
		"db-path":        "/data/jobhound",
		"seed-file":      "/data/companies.yaml",
	}

	config := NewDefaultConfig()
	config.Claude.APIKey = "{claude-api-key}"
	config.Gemini.APIKey = "{gemini-api-key}"
	config.Discovery.GitHub.Token = "{github-token}"
	config.Discovery.IMAP.Password = "{imap-password}"
	config.Badger.Path = "{db-path}"
	config.Discovery.SeedFile = "{seed-file}"

	err := ReplaceInStruct(config, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "sk-ant-test-12345", config.Claude.APIKey)
	assert.Equal(t, "sk-gemini-67890", config.Gemini.APIKey)
	assert.Equal(t, "ghp_test_abcde", config.Discovery.GitHub.Token)
	assert.Equal(t, "mail-secret", config.Discovery.IMAP.Password)
	assert.Equal(t, "/data/jobhound", config.Badger.Path)
	assert.Equal(t, "/data/companies.yaml", config.Discovery.SeedFile)

	// Fields without references stay untouched
	assert.Equal(t, "claude-sonnet-4-5", config.Claude.Model)
	assert.Equal(t, 8085, config.Server.Port)
}

// TestConfigReplacement_SlicesAndMaps tests that replacement reaches the
// Config's slice and map fields (discovery sources, websocket throttles).
func TestConfigReplacement_SlicesAndMaps(t *testing.T) {
	logger := arbor.NewLogger()
	kvMap := map[string]string{
		"extra-source":      "github_orgs",
		"progress-throttle": "500ms",
	}

	config := NewDefaultConfig()
	config.Discovery.Sources = []string{"seed_file", "{extra-source}"}
	config.WebSocket.ThrottleIntervals = map[string]string{
		"progress": "{progress-throttle}",
		"log":      "100ms",
	}

	err := ReplaceInStruct(config, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, []string{"seed_file", "github_orgs"}, config.Discovery.Sources)
	assert.Equal(t, "500ms", config.WebSocket.ThrottleIntervals["progress"])
	assert.Equal(t, "100ms", config.WebSocket.ThrottleIntervals["log"])
}

// TestConfigReplacement_MissingKeys tests that unresolved references are left
// in place so a misconfigured key surfaces in logs instead of silently
// becoming an empty credential.
func TestConfigReplacement_MissingKeys(t *testing.T) {
	logger := arbor.NewLogger()
	kvMap := map[string]string{
		"gemini-api-key": "sk-gemini-67890",
	}

	config := NewDefaultConfig()
	config.Claude.APIKey = "{claude-api-key}"
	config.Gemini.APIKey = "{gemini-api-key}"

	err := ReplaceInStruct(config, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "{claude-api-key}", config.Claude.APIKey)
	assert.Equal(t, "sk-gemini-67890", config.Gemini.APIKey)
}

// TestReplaceInStruct_MapStringString tests map[string]string field support
func TestReplaceInStruct_MapStringString(t *testing.T) {
	logger := arbor.NewLogger()
	kvMap := map[string]string{
		"value1": "replaced1",
		"value2": "replaced2",
	}

	type Settings struct {
		Name    string
		Options map[string]string
	}

	settings := &Settings{
		Name: "test",
		Options: map[string]string{
			"key1": "{value1}",
			"key2": "{value2}",
			"key3": "static",
		},
	}

	err := ReplaceInStruct(settings, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, "replaced1", settings.Options["key1"])
	assert.Equal(t, "replaced2", settings.Options["key2"])
	assert.Equal(t, "static", settings.Options["key3"])
}

// TestReplaceInStruct_SliceOfStrings tests []string field support
func TestReplaceInStruct_SliceOfStrings(t *testing.T) {
	logger := arbor.NewLogger()
	kvMap := map[string]string{
		"source1":  "yc_companies",
		"source2":  "ats_directories",
		"country1": "US",
	}

	type DiscoverySettings struct {
		Sources         []string
		TargetCountries []string
	}

	settings := &DiscoverySettings{
		Sources:         []string{"{source1}", "seed_file", "{source2}"},
		TargetCountries: []string{"{country1}", "AU"},
	}

	err := ReplaceInStruct(settings, kvMap, logger)
	require.NoError(t, err)

	assert.Equal(t, []string{"yc_companies", "seed_file", "ats_directories"}, settings.Sources)
	assert.Equal(t, []string{"US", "AU"}, settings.TargetCountries)
}
