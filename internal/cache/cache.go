package cache

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"episodegrid/internal/episode"
	"episodegrid/internal/rss"
)

const refreshKey = "refresh"

// Snapshot is an immutable view of the curated episodes.
type Snapshot struct {
	Episodes    []episode.Episode
	RefreshedAt time.Time
}

// Status describes the most recent refresh attempt.
type Status struct {
	AttemptedAt time.Time
	Err         string
}

// Cache holds the current episode snapshot and refreshes it from a feed source.
// Readers never block on a refresh; a new snapshot is published with a single
// pointer swap.
type Cache struct {
	source rss.Source
	maxAge time.Duration
	logger *log.Logger
	now    func() time.Time

	snapshot atomic.Pointer[Snapshot]
	status   atomic.Pointer[Status]
	flight   singleflight.Group
	lazy     *rate.Limiter
}

// New creates an empty cache. Snapshots older than maxAge are stale; lazy
// refreshes triggered by readers are spaced at least lazyGap apart.
func New(source rss.Source, maxAge, lazyGap time.Duration, logger *log.Logger) *Cache {
	c := &Cache{
		source: source,
		maxAge: maxAge,
		logger: logger,
		now:    time.Now,
		lazy:   rate.NewLimiter(rate.Every(lazyGap), 1),
	}
	c.snapshot.Store(&Snapshot{Episodes: []episode.Episode{}})
	c.status.Store(&Status{})
	return c
}

// Snapshot returns the current snapshot without triggering a refresh.
func (c *Cache) Snapshot() Snapshot {
	return *c.snapshot.Load()
}

// Status returns the outcome of the last refresh attempt.
func (c *Cache) Status() Status {
	return *c.status.Load()
}

// Stale reports whether the snapshot was never filled or is older than maxAge.
func (c *Cache) Stale() bool {
	snap := c.snapshot.Load()
	return snap.RefreshedAt.IsZero() || c.now().Sub(snap.RefreshedAt) >= c.maxAge
}

// Get returns the current episodes. When the snapshot is stale a refresh is
// started in the background; the caller still gets the current snapshot.
func (c *Cache) Get(ctx context.Context) []episode.Episode {
	snap := c.snapshot.Load()
	if c.Stale() && c.lazy.Allow() {
		go func() {
			_, _ = c.Refresh(context.WithoutCancel(ctx))
		}()
	}
	return snap.Episodes
}

// Refresh fetches, parses and curates the feed, then publishes the result.
// Concurrent callers share one in-flight cycle. It returns the episodes the
// cycle produced: the new snapshot, or an empty list when the feed had no
// episodes (the snapshot is then left as it was). On error the snapshot is
// untouched.
func (c *Cache) Refresh(ctx context.Context) ([]episode.Episode, error) {
	ch := c.flight.DoChan(refreshKey, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]episode.Episode), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) refresh(ctx context.Context) ([]episode.Episode, error) {
	cycle := uuid.NewString()[:8]
	started := c.now()

	data, err := c.source.Fetch(ctx)
	if err != nil {
		return nil, c.fail(cycle, started, "failed to fetch feed", err)
	}
	candidates, err := rss.Parse(data)
	if err != nil {
		return nil, c.fail(cycle, started, "failed to parse feed", err)
	}
	c.status.Store(&Status{AttemptedAt: started})

	if len(candidates) == 0 {
		c.logger.Printf("refresh %s: no episodes found in feed, keeping %d cached", cycle, len(c.snapshot.Load().Episodes))
		return []episode.Episode{}, nil
	}

	prev := c.snapshot.Load()
	next := &Snapshot{
		Episodes:    episode.Curate(prev.Episodes, candidates),
		RefreshedAt: c.now(),
	}
	c.snapshot.Store(next)
	c.logger.Printf("refresh %s: fetched %d candidates, cached %d episodes", cycle, len(candidates), len(next.Episodes))
	return next.Episodes, nil
}

func (c *Cache) fail(cycle string, started time.Time, msg string, err error) error {
	c.status.Store(&Status{AttemptedAt: started, Err: err.Error()})
	c.logger.Printf("refresh %s: %s: %v", cycle, msg, err)
	return err
}
