package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/siteguardhq/siteguard/internal/models"
	"github.com/siteguardhq/siteguard/internal/storage"
)

// Prober performs one check against a site.
type Prober interface {
	Check(ctx context.Context, site *models.Site) *models.CheckResult
}

// Options tunes the scheduler.
type Options struct {
	// Tick is the wall-clock resolution of the due-time scan.
	Tick time.Duration
	// MaxConcurrentProbes bounds the worker pool and therefore the
	// outbound connection fan-out.
	MaxConcurrentProbes int
	// ResultBuffer is the capacity of the internal result stream feeding
	// the state engine. Depth is monitored and logged.
	ResultBuffer int
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.Tick <= 0 {
		out.Tick = time.Second
	}
	if out.MaxConcurrentProbes < 1 {
		out.MaxConcurrentProbes = 50
	}
	if out.ResultBuffer < 1 {
		out.ResultBuffer = 4096
	}
	return out
}

// Scheduler guarantees each enabled site is probed at its configured
// cadence. A site is re-enqueued for its next due time at submission, not
// completion, so a hung check cannot starve its future schedule; a separate
// in-flight guard keeps at most one active probe per site.
type Scheduler struct {
	sites  storage.SiteStore
	prober Prober
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	queue    dueQueue
	entries  map[string]*entry
	inflight map[string]bool

	jobs    chan *models.Site
	results chan *models.CheckResult
	wg      sync.WaitGroup
}

// New creates a scheduler. Call Start to load sites and begin probing.
func New(sites storage.SiteStore, prober Prober, opts Options, logger *zap.Logger) *Scheduler {
	o := opts.withDefaults()
	return &Scheduler{
		sites:    sites,
		prober:   prober,
		opts:     o,
		logger:   logger,
		entries:  make(map[string]*entry),
		inflight: make(map[string]bool),
		jobs:     make(chan *models.Site, o.MaxConcurrentProbes*2),
		results:  make(chan *models.CheckResult, o.ResultBuffer),
	}
}

// Results is the stream of completed probe results, in per-site completion
// order.
func (s *Scheduler) Results() <-chan *models.CheckResult {
	return s.results
}

// Start loads all enabled sites (due immediately) and runs the tick loop
// and worker pool until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	sites, err := s.sites.ListEnabledSites(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	for _, site := range sites {
		s.scheduleLocked(site, now)
	}
	s.mu.Unlock()

	s.logger.Info("scheduler started",
		zap.Int("sites", len(sites)),
		zap.Int("workers", s.opts.MaxConcurrentProbes),
		zap.Duration("tick", s.opts.Tick),
	)

	for i := 0; i < s.opts.MaxConcurrentProbes; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}

	s.wg.Add(1)
	go s.tickLoop(ctx)
	return nil
}

// Wait blocks until the tick loop and all workers exit.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// Upsert registers a site or replaces its schedule after a configuration
// update. The site is due immediately.
func (s *Scheduler) Upsert(site *models.Site) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleLocked(site, time.Now().UTC())
}

// Remove cancels a site's pending schedule entry. An in-flight probe is
// allowed to finish; its result is discarded because the site is no longer
// registered.
func (s *Scheduler) Remove(siteID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[siteID]; ok {
		if e.index >= 0 {
			heap.Remove(&s.queue, e.index)
		}
		delete(s.entries, siteID)
	}
}

// TriggerNow fast-paths a site to the front of the queue. The probe runs
// asynchronously; callers observe the outcome via the site's state.
func (s *Scheduler) TriggerNow(siteID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[siteID]
	if !ok {
		return false
	}
	e.due = time.Now().UTC()
	if e.index >= 0 {
		heap.Fix(&s.queue, e.index)
	}
	return true
}

func (s *Scheduler) scheduleLocked(site *models.Site, due time.Time) {
	cp := *site
	if e, ok := s.entries[site.ID]; ok {
		e.site = &cp
		e.due = due
		if e.index >= 0 {
			heap.Fix(&s.queue, e.index)
		}
		return
	}
	e := &entry{site: &cp, due: due}
	s.entries[site.ID] = e
	heap.Push(&s.queue, e)
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			s.dispatchDue(now.UTC())
		}
	}
}

// dispatchDue pops every entry due at or before now and submits it to the
// worker pool, re-enqueueing each for its next cadence first.
func (s *Scheduler) dispatchDue(now time.Time) {
	s.mu.Lock()
	var due []*models.Site
	for {
		head := s.queue.peek()
		if head == nil || head.due.After(now) {
			break
		}
		e := heap.Pop(&s.queue).(*entry)
		e.due = now.Add(e.site.Interval())
		heap.Push(&s.queue, e)

		if s.inflight[e.site.ID] {
			s.logger.Warn("probe already in flight, skipping",
				zap.String("site_id", e.site.ID),
				zap.String("url", e.site.URL),
			)
			continue
		}
		s.inflight[e.site.ID] = true
		due = append(due, e.site)
	}
	s.mu.Unlock()

	for _, site := range due {
		select {
		case s.jobs <- site:
		default:
			// Worker pool saturated: drop this round rather than queue
			// unboundedly, the site keeps its next due time.
			s.mu.Lock()
			delete(s.inflight, site.ID)
			s.mu.Unlock()
			s.logger.Warn("worker pool saturated, skipping probe",
				zap.String("site_id", site.ID))
		}
	}

	if depth := len(s.results); depth > cap(s.results)/2 {
		s.logger.Warn("result stream backlog",
			zap.Int("depth", depth),
			zap.Int("capacity", cap(s.results)))
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case site := <-s.jobs:
			s.runProbe(ctx, site)
		}
	}
}

func (s *Scheduler) runProbe(ctx context.Context, site *models.Site) {
	result := s.prober.Check(ctx, site)

	s.mu.Lock()
	delete(s.inflight, site.ID)
	_, registered := s.entries[site.ID]
	s.mu.Unlock()

	if !registered {
		s.logger.Info("discarding result for removed site",
			zap.String("site_id", site.ID))
		return
	}

	select {
	case s.results <- result:
	case <-ctx.Done():
	}
}
