package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/exsitu/internal/core/domain"
	"github.com/samirrijal/exsitu/internal/core/ports"
	"github.com/samirrijal/exsitu/internal/core/provenance"
	"github.com/samirrijal/exsitu/internal/pkg/metrics"
)

// SyncMode selects how pages beyond the first are loaded.
type SyncMode string

const (
	// SyncOnDemand fetches page 1 per bounds change; further pages only on LoadMore.
	SyncOnDemand SyncMode = "on_demand"
	// SyncEager keeps fetching the next page until the query is complete.
	SyncEager SyncMode = "eager"
)

// ErrSyncStopped is returned when sending to a controller whose loop has exited.
var ErrSyncStopped = errors.New("viewport sync stopped")

// SyncConfig tunes a ViewportSync.
type SyncConfig struct {
	Debounce  time.Duration
	Threshold float64 // degrees; moves below this on every edge are ignored
	PageSize  int
	Mode      SyncMode
}

// DefaultSyncConfig returns the map defaults: 500ms debounce, 0.1° threshold,
// 50 objects per page, on-demand paging.
func DefaultSyncConfig() SyncConfig {
	return SyncConfig{
		Debounce:  500 * time.Millisecond,
		Threshold: 0.1,
		PageSize:  50,
		Mode:      SyncOnDemand,
	}
}

func (c SyncConfig) withDefaults() SyncConfig {
	d := DefaultSyncConfig()
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.Threshold <= 0 {
		c.Threshold = d.Threshold
	}
	if c.PageSize <= 0 {
		c.PageSize = d.PageSize
	}
	if c.Mode != SyncEager {
		c.Mode = SyncOnDemand
	}
	return c
}

// SyncUpdate is delivered to the subscriber each time a fetch settles.
type SyncUpdate struct {
	Bounds   domain.MapBounds
	Status   domain.DataStatus
	Snapshot provenance.Snapshot
	Added    int
	Err      error
}

type fetchResult struct {
	generation uint64
	page       int
	resp       *domain.ObjectPage
	err        error
}

// ViewportSync turns map bounds events into paginated backend fetches merged
// into an ObjectCollection. A single goroutine (Run) owns the event flow;
// fetches run concurrently and report back over a channel.
type ViewportSync struct {
	source   ports.ObjectSource
	objects  *ObjectCollection
	cfg      SyncConfig
	onUpdate func(SyncUpdate)

	events   chan domain.MapBounds
	loadMore chan struct{}
	results  chan fetchResult
	done     chan struct{}

	mu         sync.Mutex
	bounds     domain.MapBounds
	hasBounds  bool
	status     domain.DataStatus
	lastErr    error
	generation uint64
}

// NewViewportSync creates a controller. onUpdate may be nil and is called
// from the Run goroutine.
func NewViewportSync(source ports.ObjectSource, objects *ObjectCollection, cfg SyncConfig, onUpdate func(SyncUpdate)) *ViewportSync {
	return &ViewportSync{
		source:   source,
		objects:  objects,
		cfg:      cfg.withDefaults(),
		onUpdate: onUpdate,
		events:   make(chan domain.MapBounds, 64),
		loadMore: make(chan struct{}, 1),
		results:  make(chan fetchResult, 1),
		done:     make(chan struct{}),
		status:   domain.NewDataStatus(),
	}
}

// BoundsChanged queues a viewport change.
func (s *ViewportSync) BoundsChanged(ctx context.Context, b domain.MapBounds) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("invalid bounds: %w", err)
	}
	select {
	case s.events <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSyncStopped
	}
}

// LoadMore asks for the next unfetched page of the current query. Requests
// made while one is already queued are coalesced.
func (s *ViewportSync) LoadMore() {
	select {
	case s.loadMore <- struct{}{}:
	default:
	}
}

// Status returns a copy of the current loading status.
func (s *ViewportSync) Status() domain.DataStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status.Clone()
}

// Bounds returns the active query bounds. ok is false before the first
// adopted bounds event.
func (s *ViewportSync) Bounds() (domain.MapBounds, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bounds, s.hasBounds
}

// LastError returns the error of the most recent settled fetch, if it failed.
func (s *ViewportSync) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Run processes events until ctx is cancelled. In-flight fetches are never
// aborted by new bounds; the latest event received while fetching is held
// and debounced once the fetch settles.
func (s *ViewportSync) Run(ctx context.Context) error {
	defer close(s.done)

	var (
		timer     *time.Timer
		timerC    <-chan time.Time
		candidate domain.MapBounds
		pending   *domain.MapBounds
		fetching  bool
	)

	arm := func(b domain.MapBounds) {
		candidate = b
		if timer == nil {
			timer = time.NewTimer(s.cfg.Debounce)
		} else {
			timer.Reset(s.cfg.Debounce)
		}
		timerC = timer.C
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case b := <-s.events:
			metrics.ViewportEvents.Inc()
			if fetching {
				pending = &b
				continue
			}
			arm(b)

		case <-timerC:
			timerC = nil
			if fetching {
				b := candidate
				pending = &b
				continue
			}
			gen, ok := s.adopt(candidate)
			if !ok {
				metrics.ViewportSuppressed.Inc()
				continue
			}
			fetching = true
			s.fetch(ctx, gen, candidate, 1)

		case <-s.loadMore:
			if fetching {
				continue
			}
			gen, b, page, ok := s.next()
			if !ok {
				continue
			}
			fetching = true
			s.fetch(ctx, gen, b, page)

		case r := <-s.results:
			fetching = false
			ok := s.settle(r)

			if pending != nil {
				arm(*pending)
				pending = nil
				continue
			}
			if !ok || s.cfg.Mode != SyncEager || timerC != nil {
				continue
			}
			if gen, b, page, more := s.next(); more {
				fetching = true
				s.fetch(ctx, gen, b, page)
			}
		}
	}
}

// adopt makes b the active query unless it is within the threshold of the
// current bounds. A failed last fetch disables suppression so the same
// viewport can be retried.
func (s *ViewportSync) adopt(b domain.MapBounds) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.hasBounds && s.lastErr == nil && b.WithinTolerance(s.bounds, s.cfg.Threshold) {
		return 0, false
	}
	s.bounds = b
	s.hasBounds = true
	s.status = domain.NewDataStatus()
	s.lastErr = nil
	s.generation++
	return s.generation, true
}

func (s *ViewportSync) next() (uint64, domain.MapBounds, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasBounds {
		return 0, domain.MapBounds{}, 0, false
	}
	page, ok := s.status.NextPage()
	return s.generation, s.bounds, page, ok
}

func (s *ViewportSync) fetch(ctx context.Context, gen uint64, b domain.MapBounds, page int) {
	s.mu.Lock()
	s.status.Loading = true
	s.mu.Unlock()

	q := domain.ObjectQuery{Bounds: b, Page: page, PageSize: s.cfg.PageSize}
	go func() {
		start := time.Now()
		resp, err := s.source.FetchPage(ctx, q)
		metrics.PageFetchDuration.Observe(time.Since(start).Seconds())
		if err == nil && resp == nil {
			err = fmt.Errorf("empty response for page %d", page)
		}

		select {
		case s.results <- fetchResult{generation: gen, page: page, resp: resp, err: err}:
		case <-ctx.Done():
		}
	}()
}

// settle applies a fetch result and notifies the subscriber. It reports
// whether the result was current and successful.
func (s *ViewportSync) settle(r fetchResult) bool {
	s.mu.Lock()
	if r.generation != s.generation {
		s.mu.Unlock()
		metrics.StaleResponses.Inc()
		slog.Debug("dropping stale page", "page", r.page, "generation", r.generation)
		return false
	}

	s.status.Loading = false
	added := 0
	if r.err != nil {
		s.lastErr = r.err
		metrics.PageFetches.WithLabelValues("error").Inc()
		slog.Warn("object page fetch failed", "page", r.page, "error", r.err)
	} else {
		s.lastErr = nil
		added = s.objects.Merge(provenance.Normalize(r.resp.Objects))
		s.status.MarkFetched(r.page, r.resp.PageCount, r.resp.Total)
		metrics.PageFetches.WithLabelValues("ok").Inc()
		metrics.ObjectsMerged.Add(float64(added))
	}
	update := SyncUpdate{
		Bounds: s.bounds,
		Status: s.status.Clone(),
		Added:  added,
		Err:    r.err,
	}
	s.mu.Unlock()

	if s.onUpdate != nil {
		update.Snapshot = s.objects.Snapshot()
		s.onUpdate(update)
	}
	return r.err == nil
}
