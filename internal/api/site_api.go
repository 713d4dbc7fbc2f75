package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/tejusbharadwaj/solaredge-scrape/internal/config"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/logging"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/metrics"
	"github.com/tejusbharadwaj/solaredge-scrape/internal/session"
)

// validPayloadMarker is present in every good site document. Anything else
// (login page, error page) means the session cookies are no longer accepted.
const validPayloadMarker = "currentPower"

// minRequestInterval spaces the first request and its retry.
const minRequestInterval = time.Second

const maxRedirects = 10

// SessionStore persists the cookie jar between invocations.
type SessionStore interface {
	Restore() (session.Session, error)
	Persist(session.Session) error
}

// SiteFetcher retrieves the raw site overview document using the stored
// web session.
type SiteFetcher struct {
	web     config.WebConfig
	store   SessionStore
	client  *http.Client
	limiter *rate.Limiter
	timeout time.Duration
	metrics *metrics.Metrics
	logger  logrus.FieldLogger
}

// NewSiteFetcher creates a fetcher. A zero timeout leaves requests bounded
// only by ctx.
func NewSiteFetcher(
	web config.WebConfig,
	store SessionStore,
	timeout time.Duration,
	m *metrics.Metrics,
	logger logrus.FieldLogger,
) *SiteFetcher {
	return &SiteFetcher{
		web:     web,
		store:   store,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Every(minRequestInterval), 1),
		timeout: timeout,
		metrics: m,
		logger:  logger,
	}
}

// Fetch returns the site document. If the stored session is empty it is
// seeded from the configured cookies. When the endpoint rejects the
// session, the cookies are reset to the configured set and the request is
// retried exactly once; a second rejection returns a *FetchError. On
// success the session is persisted.
func (f *SiteFetcher) Fetch(ctx context.Context) (string, error) {
	logger := logging.Ctx(ctx, f.logger)

	sess, err := f.store.Restore()
	if err != nil {
		return "", err
	}
	if sess.Len() == 0 {
		logger.Debug("Seeding empty session from configured cookies")
		sess.Seed(f.web.Cookies)
	}

	result := f.attempt(ctx, sess)
	if !result.ok() {
		logger.WithFields(logrus.Fields{
			"status": result.StatusCode,
			"error":  result.Err,
		}).Warn("Site request rejected, retrying with configured cookies")

		sess.Clear()
		sess.Seed(f.web.Cookies)

		retry := f.attempt(ctx, sess)
		if !retry.ok() {
			return "", &FetchError{URL: f.web.SiteURL, First: result, Second: retry}
		}
		result = retry
	}

	if err := f.store.Persist(sess); err != nil {
		return "", err
	}
	logger.WithField("bytes", len(result.Body)).Debug("Fetched site document")
	return result.Body, nil
}

func (f *SiteFetcher) attempt(ctx context.Context, sess session.Session) Attempt {
	if err := f.limiter.Wait(ctx); err != nil {
		f.metrics.FetchAttempts.WithLabelValues("error").Inc()
		return Attempt{Err: err}
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.web.SiteURL, nil)
	if err != nil {
		f.metrics.FetchAttempts.WithLabelValues("error").Inc()
		return Attempt{Err: fmt.Errorf("failed to build request: %w", err)}
	}
	f.setHeaders(req)
	for _, c := range sess.Cookies() {
		req.AddCookie(c)
	}

	resp, err := f.clientFor(sess).Do(req)
	if err != nil {
		f.metrics.FetchAttempts.WithLabelValues("error").Inc()
		return Attempt{Err: err}
	}
	defer resp.Body.Close()

	if withinDomain(resp.Request.URL.Hostname(), req.URL.Hostname()) {
		sess.Merge(resp.Cookies())
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.metrics.FetchAttempts.WithLabelValues("error").Inc()
		return Attempt{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read body: %w", err)}
	}

	a := Attempt{StatusCode: resp.StatusCode, Body: string(body)}
	if a.ok() {
		f.metrics.FetchAttempts.WithLabelValues("ok").Inc()
	} else {
		f.metrics.FetchAttempts.WithLabelValues("rejected").Inc()
	}
	return a
}

func (f *SiteFetcher) setHeaders(req *http.Request) {
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "*/*")
	if f.web.UserAgent != "" {
		req.Header.Set("User-Agent", f.web.UserAgent)
	}
	if f.web.Referer != "" {
		req.Header.Set("Referer", f.web.Referer)
	}
}

// clientFor returns a client that keeps sess current across redirects
// within the site's domain: cookies set by intermediate responses are merged
// and the next hop is sent the updated set. Hops to other hosts neither see
// nor change the session.
func (f *SiteFetcher) clientFor(sess session.Session) *http.Client {
	client := *f.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.New("stopped after 10 redirects")
		}
		origin := via[0].URL.Hostname()
		prev := via[len(via)-1].URL.Hostname()
		if req.Response != nil && withinDomain(prev, origin) {
			sess.Merge(req.Response.Cookies())
		}
		if !withinDomain(req.URL.Hostname(), origin) {
			return nil
		}
		req.Header.Del("Cookie")
		for _, c := range sess.Cookies() {
			req.AddCookie(c)
		}
		return nil
	}
	return &client
}

// withinDomain reports whether host is domain or one of its subdomains.
func withinDomain(host, domain string) bool {
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
