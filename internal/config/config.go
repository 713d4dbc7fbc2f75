package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// DefaultUserAgent is sent when the config does not name one.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/88.0.4324.96 Safari/537.36"

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	defaultTable      = "power_kwh"
	defaultLocationID = 15
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds the scraper configuration. It is read once per invocation
// and not modified afterwards.
type Config struct {
	Web      WebConfig      `yaml:"solaredge_web"`
	Database DatabaseConfig `yaml:"database"`
}

type WebConfig struct {
	SiteURL   string            `yaml:"api_v3_site_url"`
	Referer   string            `yaml:"http_referer"`
	UserAgent string            `yaml:"http_user_agent"`
	Cookies   map[string]string `yaml:"cookies"`
}

type DatabaseConfig struct {
	Driver     string            `yaml:"driver"`
	Table      string            `yaml:"table"`
	LocationID int               `yaml:"location_id"`
	DSN        map[string]string `yaml:"dsn"`
}

// rawConfig mirrors the file before scalars are normalized to text.
type rawConfig struct {
	Web struct {
		SiteURL   string                 `yaml:"api_v3_site_url"`
		Referer   string                 `yaml:"http_referer"`
		Referrer  string                 `yaml:"http_referrer"`
		UserAgent string                 `yaml:"http_user_agent"`
		Cookies   map[string]interface{} `yaml:"cookies"`
	} `yaml:"solaredge_web"`
	Database struct {
		Driver     string                 `yaml:"driver"`
		Table      string                 `yaml:"table"`
		LocationID int                    `yaml:"location_id"`
		DSN        map[string]interface{} `yaml:"dsn"`
	} `yaml:"database"`
}

// Load reads and validates the config file at path. Validation failures are
// logged together with the partially loaded config (secrets masked).
func Load(path string, logger logrus.FieldLogger) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expandedData := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expandedData), &raw); err != nil {
		err = fmt.Errorf("%w: failed to unmarshal config: %w", ErrInvalidConfig, err)
		logger.WithField("config", masked(&raw)).WithError(err).Error("Problem in config")
		return nil, err
	}

	config, err := normalize(&raw)
	if err != nil {
		logger.WithField("config", masked(&raw)).WithError(err).Error("Problem in config")
		return nil, err
	}
	return config, nil
}

func normalize(raw *rawConfig) (*Config, error) {
	if raw.Web.SiteURL == "" {
		return nil, fmt.Errorf("%w: solaredge_web.api_v3_site_url is required", ErrInvalidConfig)
	}
	if raw.Web.Referrer != "" {
		return nil, fmt.Errorf("%w: solaredge_web.http_referrer is a typo, use http_referer", ErrInvalidConfig)
	}
	if len(raw.Web.Cookies) == 0 {
		return nil, fmt.Errorf("%w: solaredge_web.cookies is required", ErrInvalidConfig)
	}

	cookies, err := toStringMap(raw.Web.Cookies)
	if err != nil {
		return nil, fmt.Errorf("%w: solaredge_web.cookies: %v", ErrInvalidConfig, err)
	}
	dsn, err := toStringMap(raw.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: database.dsn: %v", ErrInvalidConfig, err)
	}

	if encoded := dsn["password"]; encoded != "" {
		password, err := decodePassword(encoded)
		if err != nil {
			return nil, fmt.Errorf("%w: database.dsn.password: %v", ErrInvalidConfig, err)
		}
		dsn["password"] = password
	}

	config := &Config{
		Web: WebConfig{
			SiteURL:   raw.Web.SiteURL,
			Referer:   raw.Web.Referer,
			UserAgent: raw.Web.UserAgent,
			Cookies:   cookies,
		},
		Database: DatabaseConfig{
			Driver:     strings.ToLower(raw.Database.Driver),
			Table:      raw.Database.Table,
			LocationID: raw.Database.LocationID,
			DSN:        dsn,
		},
	}
	setDefaults(config)

	switch config.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("%w: unknown database.driver %q", ErrInvalidConfig, config.Database.Driver)
	}
	return config, nil
}

func setDefaults(c *Config) {
	if c.Web.UserAgent == "" {
		c.Web.UserAgent = DefaultUserAgent
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.Table == "" {
		c.Database.Table = defaultTable
	}
	if c.Database.LocationID == 0 {
		c.Database.LocationID = defaultLocationID
	}
}

// toStringMap casts every value to text, in case the YAML gave us ints or floats.
func toStringMap(in map[string]interface{}) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for k, v := range in {
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", k, err)
		}
		out[k] = s
	}
	return out, nil
}

func decodePassword(encoded string) (string, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return "", err
	}
	for _, r := range string(decoded) {
		if r > unicode.MaxASCII {
			return "", errors.New("decoded password is not ascii")
		}
	}
	return string(decoded), nil
}

func masked(raw *rawConfig) map[string]interface{} {
	cookies := make(map[string]string, len(raw.Web.Cookies))
	for k, v := range raw.Web.Cookies {
		cookies[k] = mask(cast.ToString(v))
	}
	dsn := make(map[string]string, len(raw.Database.DSN))
	for k, v := range raw.Database.DSN {
		if k == "password" {
			dsn[k] = "***"
			continue
		}
		dsn[k] = cast.ToString(v)
	}
	return map[string]interface{}{
		"api_v3_site_url": raw.Web.SiteURL,
		"http_referer":    raw.Web.Referer,
		"http_referrer":   raw.Web.Referrer,
		"cookies":         cookies,
		"dsn":             dsn,
	}
}

func mask(s string) string {
	if len(s) > 3 {
		return s[:3] + "***"
	}
	return "***"
}

// ConnString returns the data source name for the configured driver. For
// postgres the DSN map is rendered as libpq key=value pairs, with
// "database" accepted as an alias of "dbname". For sqlite the "path" key is
// used as is.
func (d DatabaseConfig) ConnString() string {
	if d.Driver == DriverSQLite {
		return d.DSN["path"]
	}

	keys := make([]string, 0, len(d.DSN))
	for k := range d.DSN {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		name := k
		if name == "database" {
			name = "dbname"
		}
		parts = append(parts, fmt.Sprintf("%s=%s", name, quote(d.DSN[k])))
	}
	return strings.Join(parts, " ")
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}
