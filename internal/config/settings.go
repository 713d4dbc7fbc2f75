package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SOLAREDGE_SCRAPE"

// legacyDebugEnv turns on debug logging when set to anything at all.
const legacyDebugEnv = "PE32SOLAREDGE_DEBUG"

// Settings are the runtime knobs of one process. They are resolved once at
// startup from flags, environment and defaults and then passed explicitly to
// every component.
type Settings struct {
	ConfigPath      string
	RunDir          string
	Debug           bool
	PublishInterval time.Duration
	IdleMaxAge      time.Duration
	HTTPTimeout     time.Duration
	MetricsListen   string
}

func (s Settings) CookieJarPath() string { return filepath.Join(s.RunDir, "cookies.json") }
func (s Settings) CachePath() string     { return filepath.Join(s.RunDir, "api_v3_site.js") }
func (s Settings) SnapshotPath() string  { return filepath.Join(s.RunDir, "latest.json") }

// BindFlags registers the settings flags and binds them into v.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	flags.String("config", "", "path to config file (env "+envPrefix+"_CONFIG)")
	flags.String("rundir", "", "directory for cookie jar, cache and snapshot (env "+envPrefix+"_RUNDIR)")
	flags.Bool("debug", false, "enable debug logging")

	for _, name := range []string{"config", "rundir", "debug"} {
		if err := v.BindPFlag(name, flags.Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// NewViper returns a viper instance with defaults and environment bindings.
// A .env file in the working directory is loaded first when present; it
// never overrides variables that are already set.
func NewViper() *viper.Viper {
	if _, err := os.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	setSettingsDefaults(v)

	_ = v.BindEnv("config")
	_ = v.BindEnv("rundir")
	_ = v.BindEnv("debug")
	_ = v.BindEnv("publish_interval")
	_ = v.BindEnv("idle_max_age")
	_ = v.BindEnv("http_timeout")
	_ = v.BindEnv("metrics_listen")
	return v
}

func setSettingsDefaults(v *viper.Viper) {
	binDir := executableDir()
	v.SetDefault("config", filepath.Join(binDir, "config.yaml"))
	v.SetDefault("rundir", binDir)
	v.SetDefault("debug", false)
	v.SetDefault("publish_interval", "400s")
	v.SetDefault("idle_max_age", "15m")
	v.SetDefault("http_timeout", "60s")
	v.SetDefault("metrics_listen", "")
}

// ResolveSettings reads the final values out of v. Durations accept Go
// duration syntax or a bare number of seconds.
func ResolveSettings(v *viper.Viper) (Settings, error) {
	s := Settings{
		ConfigPath:    v.GetString("config"),
		RunDir:        v.GetString("rundir"),
		Debug:         debugEnabled(v.GetString("debug")) || os.Getenv(legacyDebugEnv) != "",
		MetricsListen: v.GetString("metrics_listen"),
	}

	var err error
	if s.PublishInterval, err = durationSetting(v, "publish_interval"); err != nil {
		return s, err
	}
	if s.IdleMaxAge, err = durationSetting(v, "idle_max_age"); err != nil {
		return s, err
	}
	if s.HTTPTimeout, err = durationSetting(v, "http_timeout"); err != nil {
		return s, err
	}

	if s.ConfigPath == "" {
		return s, fmt.Errorf("%w: empty config path", ErrInvalidConfig)
	}
	if s.RunDir == "" {
		return s, fmt.Errorf("%w: empty run directory", ErrInvalidConfig)
	}
	if s.PublishInterval < time.Second {
		return s, fmt.Errorf("%w: publish interval %s is below one second", ErrInvalidConfig, s.PublishInterval)
	}
	if s.IdleMaxAge < 0 || s.HTTPTimeout < 0 {
		return s, fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	// Zero is allowed: no idle throttle, no timeout.
	if s.IdleMaxAge > 0 && s.IdleMaxAge < time.Second {
		return s, fmt.Errorf("%w: idle max age %s is below one second", ErrInvalidConfig, s.IdleMaxAge)
	}
	if s.HTTPTimeout > 0 && s.HTTPTimeout < time.Second {
		return s, fmt.Errorf("%w: http timeout %s is below one second", ErrInvalidConfig, s.HTTPTimeout)
	}
	return s, nil
}

func durationSetting(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return d, nil
}

// debugEnabled treats any non-empty value other than an explicit false as on.
func debugEnabled(v string) bool {
	switch v {
	case "", "0", "false", "FALSE", "False":
		return false
	}
	return true
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
