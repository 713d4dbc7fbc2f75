// Package app implements the three things the scraper can be asked to do:
// print the current reading, insert a fresh reading into the database, and
// run one publish cycle.
package app

import (
	"context"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/solaredge-scrape/internal/database"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/logging"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/models"
)

// ReadingSource yields parsed readings, applying the cache and freshness
// policy.
type ReadingSource interface {
	Current(ctx context.Context) (models.Reading, time.Duration, error)
	FetchReasonablyFresh(ctx context.Context) (models.Reading, bool, error)
}

// Publisher makes a fresh reading available downstream.
type Publisher interface {
	Publish(ctx context.Context, r models.Reading) (models.Snapshot, error)
}

// RepoOpener connects to the database. It is only called when there is
// something to write.
type RepoOpener func(ctx context.Context) (database.ReadingRepository, error)

type App struct {
	source ReadingSource
	logger logrus.FieldLogger
}

func New(source ReadingSource, logger logrus.FieldLogger) *App {
	return &App{source: source, logger: logger}
}

// Print writes the current reading as a table.
func (a *App) Print(ctx context.Context, w io.Writer) (models.Reading, error) {
	reading, age, err := a.source.Current(ctx)
	if err != nil {
		return models.Reading{}, err
	}

	table := tablewriter.NewTable(w)
	table.Header([]string{"Field", "Value"})
	rows := [][]string{
		{"lastUpdateTime", reading.LastUpdateTime.UTC().Format(time.RFC3339)},
		{"lifeTimeEnergy", formatFloat(reading.LifeTimeEnergy) + " Wh"},
		{"lastDayEnergy", formatFloat(reading.LastDayEnergy) + " Wh"},
		{"currentPower", formatFloat(reading.CurrentPower) + " W"},
		{"cacheAge", age.Round(time.Second).String()},
	}
	for _, row := range rows {
		if err := table.Append(row); err != nil {
			return reading, err
		}
	}
	if err := table.Render(); err != nil {
		return reading, err
	}
	return reading, nil
}

// Insert writes the reading to the database when it is fresh. The returned
// bool is false when the reading came from cache and nothing was written.
func (a *App) Insert(ctx context.Context, open RepoOpener) (database.InsertResult, bool, error) {
	logger := logging.Ctx(ctx, a.logger)

	reading, fresh, err := a.source.FetchReasonablyFresh(ctx)
	if err != nil {
		return database.InsertInserted, false, err
	}
	if !fresh {
		logger.Debug("Reading not fresh, nothing to insert")
		return database.InsertInserted, false, nil
	}

	repo, err := open(ctx)
	if err != nil {
		return database.InsertInserted, false, err
	}
	defer repo.Close()

	result, err := repo.InsertReading(ctx, reading)
	if err != nil {
		return result, false, err
	}
	logger.WithFields(logrus.Fields{
		"time":   reading.LastUpdateTime.Format(time.RFC3339),
		"kwh":    reading.LastDayEnergy / 1000.0,
		"result": result.String(),
	}).Info("Stored day energy")
	return result, true, nil
}

// PublishCycle publishes the reading when it is fresh.
func (a *App) PublishCycle(ctx context.Context, pub Publisher) error {
	reading, fresh, err := a.source.FetchReasonablyFresh(ctx)
	if err != nil {
		return err
	}
	if !fresh {
		logging.Ctx(ctx, a.logger).Debug("Reading not fresh, nothing to publish")
		return nil
	}
	_, err = pub.Publish(ctx, reading)
	return err
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
