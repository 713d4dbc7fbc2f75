package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/solaredge-scrape/internal/logging"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/metrics"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/models"
)

// SnapshotWriter publishes the latest reading: a JSON file replaced
// atomically for local consumers, and the reading gauges for scrapers.
type SnapshotWriter struct {
	path    string
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

func NewSnapshotWriter(path string, m *metrics.Metrics, logger logrus.FieldLogger) *SnapshotWriter {
	return &SnapshotWriter{path: path, metrics: m, logger: logger}
}

func (w *SnapshotWriter) Path() string { return w.path }

// Publish writes the snapshot for r to <path>.new and renames it into place.
func (w *SnapshotWriter) Publish(ctx context.Context, r models.Reading) (models.Snapshot, error) {
	snap := models.SnapshotOf(r)

	data, err := json.Marshal(snap)
	if err != nil {
		return snap, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	data = append(data, '\n')

	tmp := w.path + ".new"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return snap, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		_ = os.Remove(tmp)
		return snap, fmt.Errorf("failed to replace snapshot: %w", err)
	}

	w.metrics.ObserveReading(r)
	logging.Ctx(ctx, w.logger).WithField("path", w.path).Infof("WROTE latest.json: %s", data[:len(data)-1])
	return snap, nil
}
