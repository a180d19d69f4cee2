package checker_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirkhaki/watson/pkg/checker"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := checker.DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, checker.StrategyRandom, cfg.Strategy)
	assert.Equal(t, "fifo", cfg.Policy)
	assert.Equal(t, 10, cfg.Retries)
}

func TestLoadConfig(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "watson.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(`
strategy: trust
iterations: 7
seed: 3
policy: random
timeout: 2s
backoff: 5ms
report_path: ""
debug: true
`), 0o644))

	cfg, err := checker.LoadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, checker.StrategyTrust, cfg.Strategy)
	assert.Equal(t, 7, cfg.Iterations)
	assert.Equal(t, int64(3), cfg.Seed)
	assert.Equal(t, "random", cfg.Policy)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Equal(t, 5*time.Millisecond, cfg.Backoff)
	assert.Empty(t, cfg.ReportPath)
	assert.True(t, cfg.Debug)
	// Left out of the file.
	assert.Equal(t, 10, cfg.Retries)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := checker.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config")

	filename := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(filename, []byte("strategy: dfs\n"), 0o644))
	_, err = checker.LoadConfig(filename)
	assert.ErrorIs(t, err, checker.ErrInvalidStrategy)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name    string
		mutate  func(*checker.Config)
		invalid bool
		errText string
	}{
		{name: "unknown strategy", mutate: func(c *checker.Config) { c.Strategy = "dfs" }, invalid: true},
		{name: "replay without trace", mutate: func(c *checker.Config) { c.Strategy = checker.StrategyReplay }, invalid: true},
		{name: "unknown policy", mutate: func(c *checker.Config) { c.Policy = "lifo" }, errText: "unknown policy"},
		{name: "negative iterations", mutate: func(c *checker.Config) { c.Iterations = -1 }, errText: "negative iteration"},
		{name: "negative timeout", mutate: func(c *checker.Config) { c.Timeout = -time.Second }, errText: "negative timeout"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := checker.DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.invalid {
				assert.ErrorIs(t, err, checker.ErrInvalidStrategy)
			} else {
				assert.ErrorContains(t, err, tc.errText)
			}
		})
	}
}
