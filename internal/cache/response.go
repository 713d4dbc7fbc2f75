// Package cache keeps the last site document on disk so that repeated
// invocations do not hit the monitoring endpoint more often than needed.
//
// Exactly one document is kept. Its age is the file modification time, and
// a body that does not look like a JSON object is treated as absent.
package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/solaredge-scrape/internal/logging"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/metrics"
)

// Fetcher retrieves a live copy of the document.
type Fetcher interface {
	Fetch(ctx context.Context) (string, error)
}

// Response is a document together with how old it is. Live is set when the
// document was fetched during this call.
type Response struct {
	Text string
	Age  time.Duration
	Live bool
}

type ResponseCache struct {
	path    string
	fetcher Fetcher
	now     func() time.Time
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

func NewResponseCache(path string, fetcher Fetcher, m *metrics.Metrics, logger logrus.FieldLogger) *ResponseCache {
	return &ResponseCache{
		path:    path,
		fetcher: fetcher,
		now:     time.Now,
		metrics: m,
		logger:  logger,
	}
}

// ReadOrFetch returns the cached document, or fetches and stores a new one
// when forceRefresh is set, the file is missing, or its content is corrupt.
func (c *ResponseCache) ReadOrFetch(ctx context.Context, forceRefresh bool) (Response, error) {
	logger := logging.Ctx(ctx, c.logger)

	if forceRefresh {
		c.metrics.CacheReads.WithLabelValues("forced").Inc()
		return c.refresh(ctx)
	}

	text, modTime, err := c.read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		c.metrics.CacheReads.WithLabelValues("miss").Inc()
		logger.WithField("path", c.path).Debug("No cached site document")
		return c.refresh(ctx)
	case err != nil:
		return Response{}, err
	}

	if !looksLikeJSONObject(text) {
		c.metrics.CacheReads.WithLabelValues("corrupt").Inc()
		logger.WithField("path", c.path).Warn("Cached site document is corrupt, fetching a new one")
		return c.refresh(ctx)
	}

	age := c.now().Sub(modTime)
	if age < 0 {
		age = 0
	}
	c.metrics.CacheReads.WithLabelValues("hit").Inc()
	return Response{Text: text, Age: age}, nil
}

func (c *ResponseCache) read() (string, time.Time, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return "", time.Time{}, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to stat cache file: %w", err)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read cache file: %w", err)
	}
	return string(data), st.ModTime(), nil
}

func (c *ResponseCache) refresh(ctx context.Context) (Response, error) {
	text, err := c.fetcher.Fetch(ctx)
	if err != nil {
		return Response{}, err
	}
	if err := os.WriteFile(c.path, []byte(text), 0644); err != nil {
		return Response{}, fmt.Errorf("failed to write cache file: %w", err)
	}
	return Response{Text: text, Age: 0, Live: true}, nil
}

func looksLikeJSONObject(text string) bool {
	trimmed := strings.TrimLeftFunc(text, unicode.IsSpace)
	return trimmed != "" && trimmed[0] == '{'
}
