package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "referralmesh.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 10*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 2*time.Second, cfg.HopTimeout)
	assert.Equal(t, time.Second, cfg.DumpTimeout)
	assert.Equal(t, 25, cfg.SelfTest.QueriesPerAgent)
	assert.Equal(t, MatcherRule, cfg.Matcher.Kind)
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
query_timeout: 3s
tolerance: 0.1
self_test:
  enabled: false
log:
  level: debug
  format: json
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.QueryTimeout)
	assert.Equal(t, 2*time.Second, cfg.HopTimeout)
	assert.InDelta(t, 0.1, cfg.Tolerance, 1e-9)
	assert.False(t, cfg.SelfTest.Enabled)
	assert.Equal(t, 25, cfg.SelfTest.QueriesPerAgent)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "hop_timeout: 3s\n")
	t.Setenv("REFERRALMESH_HOP_TIMEOUT", "500ms")
	t.Setenv("REFERRALMESH_SELF_TEST_QUERIES_PER_AGENT", "5")
	t.Setenv("REFERRALMESH_MATCHER_API_KEY", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.HopTimeout)
	assert.Equal(t, 5, cfg.SelfTest.QueriesPerAgent)
	assert.Equal(t, "secret", cfg.Matcher.APIKey)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "query_timeout: [\n"))
	assert.Error(t, err)

	t.Setenv("REFERRALMESH_INBOX_SIZE", "many")
	_, err = Load("")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"hop timeout", func(c *Config) { c.HopTimeout = 0 }, "hop_timeout"},
		{"tolerance", func(c *Config) { c.Tolerance = 2 }, "tolerance"},
		{"matcher kind", func(c *Config) { c.Matcher.Kind = "oracle" }, "matcher.kind"},
		{"provider", func(c *Config) { c.Matcher.Kind = MatcherModel; c.Matcher.Provider = "acme" }, "matcher.provider"},
		{"matcher timeout", func(c *Config) { c.Matcher.Kind = MatcherModel; c.Matcher.Timeout = 0 }, "matcher.timeout"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"self test", func(c *Config) { c.SelfTest.QueriesPerAgent = -1 }, "queries_per_agent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	cfg := Default()
	cfg.SelfTest.Enabled = false
	cfg.SelfTest.Timeout = 0
	assert.NoError(t, cfg.Validate())
}

func TestRuleTimeout(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.MatchTimeout, cfg.RuleTimeout())

	cfg.Matcher.Kind = MatcherModel
	assert.Equal(t, 30*time.Second, cfg.RuleTimeout())
	assert.Greater(t, cfg.RuleTimeout(), cfg.MatchTimeout)
}
