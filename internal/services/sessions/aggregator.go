package sessions

import (
	"context"
	"sync"

	"github.com/amaumene/mediasnap/internal/metrics"
	"github.com/amaumene/mediasnap/internal/models"
	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Fetcher is implemented by the per-source session clients
type Fetcher interface {
	Kind() models.SourceKind
	FetchSessions(ctx context.Context) ([]models.Session, error)
}

// RefreshResult carries the merged sessions plus per-source failures so
// callers can show partial availability
type RefreshResult struct {
	Sessions []models.Session             `json:"sessions"`
	Errors   map[models.SourceKind]string `json:"errors,omitempty"`
}

// Aggregator fans out to all enabled sources, merges the results into one
// list, and keeps the last merge in an in-memory cache so captures can
// resolve a session by ID without another upstream round trip.
type Aggregator struct {
	fetchers []Fetcher
	logger   *logrus.Logger
	tracer   trace.Tracer

	// The cache is rebuilt fully on each refresh and swapped in one step;
	// readers always see either the previous or the new snapshot
	mu    sync.RWMutex
	cache *cache.Cache
}

// NewAggregator creates a new session aggregator
func NewAggregator(fetchers []Fetcher, logger *logrus.Logger) *Aggregator {
	return &Aggregator{
		fetchers: fetchers,
		logger:   logger,
		tracer:   otel.Tracer("mediasnap/sessions"),
		cache:    cache.New(cache.NoExpiration, 0),
	}
}

// Refresh queries all sources concurrently and replaces the cached
// snapshot with the merged result. A single source failing does not fail
// the refresh; its error is recorded in the result instead.
func (a *Aggregator) Refresh(ctx context.Context) *RefreshResult {
	ctx, span := a.tracer.Start(ctx, "sessions.refresh")
	defer span.End()

	type fetchOutcome struct {
		kind     models.SourceKind
		sessions []models.Session
		err      error
	}

	outcomes := make([]fetchOutcome, len(a.fetchers))
	var wg sync.WaitGroup
	for i, fetcher := range a.fetchers {
		wg.Add(1)
		go func(i int, f Fetcher) {
			defer wg.Done()
			sessions, err := f.FetchSessions(ctx)
			outcomes[i] = fetchOutcome{kind: f.Kind(), sessions: sessions, err: err}
		}(i, fetcher)
	}
	wg.Wait()

	result := &RefreshResult{Sessions: []models.Session{}}
	for _, outcome := range outcomes {
		if outcome.err != nil {
			a.logger.WithError(outcome.err).WithField("source", outcome.kind).Warn("Failed to fetch sessions")
			if result.Errors == nil {
				result.Errors = make(map[models.SourceKind]string)
			}
			result.Errors[outcome.kind] = outcome.err.Error()
			metrics.SessionRefreshes.WithLabelValues(string(outcome.kind), "error").Inc()
			continue
		}
		result.Sessions = append(result.Sessions, outcome.sessions...)
		metrics.SessionRefreshes.WithLabelValues(string(outcome.kind), "ok").Inc()
	}

	// Build the new snapshot fully off to the side, then publish it
	next := cache.New(cache.NoExpiration, 0)
	for _, s := range result.Sessions {
		next.Set(s.SessionID, s, cache.NoExpiration)
	}

	a.mu.Lock()
	a.cache = next
	a.mu.Unlock()

	metrics.ActiveSessions.Set(float64(len(result.Sessions)))
	span.SetAttributes(attribute.Int("sessions.count", len(result.Sessions)))

	a.logger.WithFields(logrus.Fields{
		"count":  len(result.Sessions),
		"errors": len(result.Errors),
	}).Debug("Session cache refreshed")

	return result
}

// Resolve looks a session up in the last merged snapshot. It never
// performs upstream I/O: an identifier that fell out of the cache fails
// fast with ErrNotFound.
func (a *Aggregator) Resolve(id string) (models.Session, error) {
	a.mu.RLock()
	snapshot := a.cache
	a.mu.RUnlock()

	value, found := snapshot.Get(id)
	if !found {
		return models.Session{}, models.ErrNotFound
	}
	return value.(models.Session), nil
}
