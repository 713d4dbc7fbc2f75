package poller

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/solaredge-scrape/internal/api"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/cache"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/logging"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/models"
)

// DefaultIdleMaxAge is how long a cached document reporting zero output is
// trusted before it is fetched again.
const DefaultIdleMaxAge = 15 * time.Minute

// DocumentCache is the response cache as seen by the poller.
type DocumentCache interface {
	ReadOrFetch(ctx context.Context, forceRefresh bool) (cache.Response, error)
}

// Poller applies the freshness policy on top of the response cache.
type Poller struct {
	cache      DocumentCache
	idleMaxAge time.Duration
	logger     logrus.FieldLogger
}

func New(c DocumentCache, idleMaxAge time.Duration, logger logrus.FieldLogger) *Poller {
	return &Poller{
		cache:      c,
		idleMaxAge: idleMaxAge,
		logger:     logger,
	}
}

// Current returns the cached reading, fetching only when there is no usable
// cache.
func (p *Poller) Current(ctx context.Context) (models.Reading, time.Duration, error) {
	resp, err := p.cache.ReadOrFetch(ctx, false)
	if err != nil {
		return models.Reading{}, 0, err
	}
	reading, err := api.ParseSite(resp.Text)
	if err != nil {
		return models.Reading{}, 0, err
	}
	return reading, resp.Age, nil
}

// FetchReasonablyFresh returns a reading and whether it was fetched live
// during this call. While the site reports zero output a cached document
// younger than the idle max age is good enough, which keeps requests down
// at night. Otherwise a live fetch is forced.
func (p *Poller) FetchReasonablyFresh(ctx context.Context) (models.Reading, bool, error) {
	logger := logging.Ctx(ctx, p.logger)

	resp, err := p.cache.ReadOrFetch(ctx, false)
	if err != nil {
		return models.Reading{}, false, err
	}
	reading, err := api.ParseSite(resp.Text)
	if err != nil {
		return models.Reading{}, false, err
	}
	if resp.Live {
		return reading, true, nil
	}

	if reading.CurrentPower == 0 && resp.Age < p.idleMaxAge {
		logger.WithFields(logrus.Fields{
			"age":          resp.Age.Round(time.Second),
			"idle_max_age": p.idleMaxAge,
		}).Debug("Zero output and recent cache, skipping fetch")
		return reading, false, nil
	}

	resp, err = p.cache.ReadOrFetch(ctx, true)
	if err != nil {
		return models.Reading{}, false, err
	}
	reading, err = api.ParseSite(resp.Text)
	if err != nil {
		return models.Reading{}, false, err
	}
	return reading, true, nil
}
