package publisher

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tejusbharadwaj/solaredge-scrape/internal/metrics"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/models"
)

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "latest.json")
	logger, hook := test.NewNullLogger()
	m := metrics.Discard()
	w := NewSnapshotWriter(path, m, logger)

	reading := models.Reading{
		LastUpdateTime: time.Date(2022, 2, 6, 13, 33, 0, 0, time.UTC),
		LifeTimeEnergy: 4352049,
		LastDayEnergy:  1446,
		CurrentPower:   306.36063,
	}

	snap, err := w.Publish(context.Background(), reading)
	require.NoError(t, err)
	assert.Equal(t, models.Snapshot{
		InstSolarPower: 306.36063,
		SolarActual:    4352049,
		SolarActualDay: 1446,
		LastUpdate:     1644154380,
	}, snap)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		`{"inst_solar_pwr":306.36063,"solar_act":4352049,"solar_act_day":1446,"last_update":1644154380}`+"\n",
		string(data))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 4)

	_, err = os.Stat(path + ".new")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	assert.Equal(t, 306.36063, testutil.ToFloat64(m.CurrentPower))
	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "WROTE latest.json")
}

func TestPublishReplacesPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latest.json")
	logger, _ := test.NewNullLogger()
	w := NewSnapshotWriter(path, metrics.Discard(), logger)

	_, err := w.Publish(context.Background(), models.Reading{CurrentPower: 1, LastUpdateTime: time.Unix(100, 0)})
	require.NoError(t, err)
	_, err = w.Publish(context.Background(), models.Reading{CurrentPower: 2, LastUpdateTime: time.Unix(200, 0)})
	require.NoError(t, err)

	var snap models.Snapshot
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, 2.0, snap.InstSolarPower)
	assert.Equal(t, int64(200), snap.LastUpdate)
}

func TestPublishMissingDirectory(t *testing.T) {
	logger, _ := test.NewNullLogger()
	w := NewSnapshotWriter(filepath.Join(t.TempDir(), "nope", "latest.json"), metrics.Discard(), logger)

	_, err := w.Publish(context.Background(), models.Reading{})
	assert.Error(t, err)
}
