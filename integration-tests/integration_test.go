//go:build integration
// +build integration

package integration_test

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/solaredge-scrape/internal/api"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/app"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/cache"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/config"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/database"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/metrics"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/models"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/poller"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/publisher"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/session"
)

const testTable = "power_kwh_it"

const sitePayload = `{
  "fieldOverview": {
    "fieldOverview": {
      "lastUpdateTime": "2022-02-06 14:33:00.0",
      "lifeTimeData": {"energy": 4352049.0},
      "lastDayData": {"energy": 1446},
      "currentPower": {"currentPower": 306.36063, "unit": "W"}
    }
  }
}`

// Helper function to get environment variables with defaults
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

type testEnv struct {
	app      *app.App
	cfg      *config.Config
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	runDir   string
	db       *sql.DB
}

func setupTestDB(t *testing.T, dsn map[string]string) *sql.DB {
	db, err := sql.Open("postgres", (config.DatabaseConfig{Driver: config.DriverPostgres, DSN: dsn}).ConnString())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		time        TIMESTAMPTZ NOT NULL,
		location_id INTEGER     NOT NULL,
		value       DOUBLE PRECISION,
		UNIQUE (time, location_id)
	)`, testTable))
	require.NoError(t, err)

	_, err = db.Exec("TRUNCATE TABLE " + testTable)
	require.NoError(t, err)
	return db
}

func setupMockSite(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("SolarEdge_SSO-1.4"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, "<html>login</html>")
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "it"})
		fmt.Fprint(w, sitePayload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupTestEnvironment(t *testing.T) *testEnv {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	site := setupMockSite(t)
	runDir := t.TempDir()

	password := getEnvOrDefault("DB_PASSWORD", "solaredge")
	dsn := map[string]string{
		"host":     getEnvOrDefault("DB_HOST", "db"),
		"port":     getEnvOrDefault("DB_PORT", "5432"),
		"user":     getEnvOrDefault("DB_USER", "solaredge"),
		"database": getEnvOrDefault("DB_NAME", "solaredge"),
		"password": password,
		"sslmode":  "disable",
	}
	db := setupTestDB(t, dsn)

	configPath := filepath.Join(runDir, "config.yaml")
	configYAML := fmt.Sprintf(`solaredge_web:
  api_v3_site_url: %s/services/m/so/dashboard/v3/site/1234
  http_referer: %s/solaredge-web/p/site/1234/
  cookies:
    SolarEdge_SSO-1.4: sso
    SolarEdge_Field_ID: 1234
database:
  table: %s
  location_id: 15
  dsn:
    host: %s
    port: %s
    user: %s
    database: %s
    sslmode: disable
    password: %s
`, site.URL, site.URL, testTable, dsn["host"], dsn["port"], dsn["user"], dsn["database"],
		base64.StdEncoding.EncodeToString([]byte(password)))
	require.NoError(t, os.WriteFile(configPath, []byte(configYAML), 0o600))

	cfg, err := config.Load(configPath, logger)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)
	fetcher := api.NewSiteFetcher(cfg.Web, session.NewStore(filepath.Join(runDir, "cookies.json")), 10*time.Second, m, logger)
	responses := cache.NewResponseCache(filepath.Join(runDir, "api_v3_site.js"), fetcher, m, logger)

	return &testEnv{
		app:      app.New(poller.New(responses, poller.DefaultIdleMaxAge, logger), logger),
		cfg:      cfg,
		registry: registry,
		metrics:  m,
		runDir:   runDir,
		db:       db,
	}
}

func (e *testEnv) open(ctx context.Context) (database.ReadingRepository, error) {
	repo, err := database.NewRepo(e.cfg.Database, e.metrics)
	if err != nil {
		return nil, err
	}
	return repo, nil
}

func TestInsertE2E(t *testing.T) {
	env := setupTestEnvironment(t)
	ctx := context.Background()

	result, wrote, err := env.app.Insert(ctx, env.open)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, database.InsertInserted, result)

	// Same lastUpdateTime again: the row exists and the conflict is swallowed.
	result, wrote, err = env.app.Insert(ctx, env.open)
	require.NoError(t, err)
	assert.True(t, wrote)
	assert.Equal(t, database.InsertConflict, result)

	var (
		at    time.Time
		loc   int
		value float64
		count int
	)
	require.NoError(t, env.db.QueryRow("SELECT count(*) FROM "+testTable).Scan(&count))
	assert.Equal(t, 1, count)
	require.NoError(t, env.db.QueryRow("SELECT time, location_id, value FROM "+testTable).Scan(&at, &loc, &value))
	assert.True(t, at.Equal(time.Date(2022, 2, 6, 13, 33, 0, 0, time.UTC)))
	assert.Equal(t, 15, loc)
	assert.InDelta(t, 1.446, value, 1e-9)

	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.DBInserts.WithLabelValues("inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(env.metrics.DBInserts.WithLabelValues("conflict")))

	jar, err := os.ReadFile(filepath.Join(env.runDir, "cookies.json"))
	require.NoError(t, err)
	assert.Contains(t, string(jar), "JSESSIONID")
}

func TestPublishCycleE2E(t *testing.T) {
	env := setupTestEnvironment(t)
	writer := publisher.NewSnapshotWriter(filepath.Join(env.runDir, "latest.json"), env.metrics, logrus.New())

	require.NoError(t, env.app.PublishCycle(context.Background(), writer))

	data, err := os.ReadFile(writer.Path())
	require.NoError(t, err)

	var snap models.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 306.36063, snap.InstSolarPower)
	assert.Equal(t, 4352049.0, snap.SolarActual)
	assert.Equal(t, 1446.0, snap.SolarActualDay)
	assert.Equal(t, time.Date(2022, 2, 6, 13, 33, 0, 0, time.UTC).Unix(), snap.LastUpdate)

	assert.Equal(t, 306.36063, testutil.ToFloat64(env.metrics.CurrentPower))
}
