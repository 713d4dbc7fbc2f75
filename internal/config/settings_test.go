package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveSettingsDefaults(t *testing.T) {
	s, err := ResolveSettings(NewViper())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(executableDir(), "config.yaml"), s.ConfigPath)
	assert.Equal(t, executableDir(), s.RunDir)
	assert.Equal(t, 400*time.Second, s.PublishInterval)
	assert.Equal(t, 15*time.Minute, s.IdleMaxAge)
	assert.Equal(t, 60*time.Second, s.HTTPTimeout)
	assert.Empty(t, s.MetricsListen)
}

func TestResolveSettingsFromEnv(t *testing.T) {
	rundir := t.TempDir()
	t.Setenv("SOLAREDGE_SCRAPE_CONFIG", "/etc/solaredge/config.yaml")
	t.Setenv("SOLAREDGE_SCRAPE_RUNDIR", rundir)
	t.Setenv("PE32SOLAREDGE_DEBUG", "1")
	t.Setenv("SOLAREDGE_SCRAPE_IDLE_MAX_AGE", "5m")
	t.Setenv("SOLAREDGE_SCRAPE_METRICS_LISTEN", ":9101")

	s, err := ResolveSettings(NewViper())
	require.NoError(t, err)

	assert.Equal(t, "/etc/solaredge/config.yaml", s.ConfigPath)
	assert.Equal(t, rundir, s.RunDir)
	assert.True(t, s.Debug)
	assert.Equal(t, 5*time.Minute, s.IdleMaxAge)
	assert.Equal(t, ":9101", s.MetricsListen)

	assert.Equal(t, filepath.Join(rundir, "cookies.json"), s.CookieJarPath())
	assert.Equal(t, filepath.Join(rundir, "api_v3_site.js"), s.CachePath())
	assert.Equal(t, filepath.Join(rundir, "latest.json"), s.SnapshotPath())
}

func TestResolveSettingsFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SOLAREDGE_SCRAPE_RUNDIR", "/from/env")

	v := NewViper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, BindFlags(v, flags))
	require.NoError(t, flags.Parse([]string{"--rundir", "/from/flag"}))

	s, err := ResolveSettings(v)
	require.NoError(t, err)
	assert.Equal(t, "/from/flag", s.RunDir)
}

func TestResolveSettingsRejectsTinyInterval(t *testing.T) {
	t.Setenv("SOLAREDGE_SCRAPE_PUBLISH_INTERVAL", "10ms")

	_, err := ResolveSettings(NewViper())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestDebugEnabled(t *testing.T) {
	assert.False(t, debugEnabled(""))
	assert.False(t, debugEnabled("false"))
	assert.False(t, debugEnabled("0"))
	assert.True(t, debugEnabled("1"))
	assert.True(t, debugEnabled("yes"))
}

func TestResolveSettingsBareNumbersAreSeconds(t *testing.T) {
	t.Setenv("SOLAREDGE_SCRAPE_HTTP_TIMEOUT", "60")
	t.Setenv("SOLAREDGE_SCRAPE_IDLE_MAX_AGE", "900")
	t.Setenv("SOLAREDGE_SCRAPE_PUBLISH_INTERVAL", "400")

	s, err := ResolveSettings(NewViper())
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, s.HTTPTimeout)
	assert.Equal(t, 15*time.Minute, s.IdleMaxAge)
	assert.Equal(t, 400*time.Second, s.PublishInterval)
}

func TestResolveSettingsRejectsBadDurations(t *testing.T) {
	tests := []struct {
		name  string
		env   string
		value string
	}{
		{"sub-second timeout", "SOLAREDGE_SCRAPE_HTTP_TIMEOUT", "60ns"},
		{"sub-second idle age", "SOLAREDGE_SCRAPE_IDLE_MAX_AGE", "900ms"},
		{"negative timeout", "SOLAREDGE_SCRAPE_HTTP_TIMEOUT", "-5"},
		{"garbage", "SOLAREDGE_SCRAPE_IDLE_MAX_AGE", "soon"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.value)

			_, err := ResolveSettings(NewViper())
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestResolveSettingsZeroDisablesTimeouts(t *testing.T) {
	t.Setenv("SOLAREDGE_SCRAPE_HTTP_TIMEOUT", "0")
	t.Setenv("SOLAREDGE_SCRAPE_IDLE_MAX_AGE", "0s")

	s, err := ResolveSettings(NewViper())
	require.NoError(t, err)
	assert.Zero(t, s.HTTPTimeout)
	assert.Zero(t, s.IdleMaxAge)
}

func TestLegacyDebugVariableAnyValue(t *testing.T) {
	t.Setenv("PE32SOLAREDGE_DEBUG", "0")

	s, err := ResolveSettings(NewViper())
	require.NoError(t, err)
	assert.True(t, s.Debug)
}

func TestDebugVariableExplicitFalse(t *testing.T) {
	t.Setenv("PE32SOLAREDGE_DEBUG", "")
	t.Setenv("SOLAREDGE_SCRAPE_DEBUG", "0")

	s, err := ResolveSettings(NewViper())
	require.NoError(t, err)
	assert.False(t, s.Debug)
}
