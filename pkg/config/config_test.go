package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLoadDefaults verifies every knob has a sane default
func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir()) // make sure no stray config.yaml is picked up

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(3600), cfg.TTLSeconds)
	assert.Equal(t, 300*time.Second, cfg.GracePeriod)
	assert.True(t, cfg.TTLAutomationEnabled)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5, cfg.MaxRetryAttempts)
	assert.Equal(t, 600*time.Second, cfg.MaxRecordAge)
	assert.Equal(t, 2, cfg.ConcurrencyLimit)
	assert.Equal(t, 30*time.Second, cfg.HandleTimeout)
	assert.Equal(t, 300*time.Second, cfg.AlarmWindow)
	assert.Equal(t, 1, cfg.AlarmThreshold)
	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
}

// TestLoadEnvOverride verifies environment variables win over defaults
func TestLoadEnvOverride(t *testing.T) {
	viper.Reset()
	t.Chdir(t.TempDir())
	t.Setenv("LOCKTTL_TTL_SECONDS", "7200")
	t.Setenv("LOCKTTL_BATCH_SIZE", "25")
	t.Setenv("LOCKTTL_TTL_AUTOMATION_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(7200), cfg.TTLSeconds)
	assert.Equal(t, 25, cfg.BatchSize)
	assert.False(t, cfg.TTLAutomationEnabled)
}

// TestLoadRejectsBadValues verifies validation catches nonsense
func TestLoadRejectsBadValues(t *testing.T) {
	cases := []struct {
		name  string
		key   string
		value string
	}{
		{"zero batch size", "LOCKTTL_BATCH_SIZE", "0"},
		{"zero concurrency", "LOCKTTL_CONCURRENCY_LIMIT", "0"},
		{"negative ttl", "LOCKTTL_TTL_SECONDS", "-1"},
		{"grace above ttl", "LOCKTTL_GRACE_PERIOD", "7200s"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			viper.Reset()
			t.Chdir(t.TempDir())
			t.Setenv(tc.key, tc.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
