package poll

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/podscrub/podscrub/internal/models"
)

// DefaultSummaryInterval is the manager-level summary polling cadence.
const DefaultSummaryInterval = 5 * time.Second

// SummaryFetchFunc fetches the manager-level run summary.
type SummaryFetchFunc func(ctx context.Context) (*models.ManagerStatusPayload, error)

// JobsFetchFunc fetches the currently displayed jobs list.
type JobsFetchFunc func(ctx context.Context) (*models.JobListPayload, error)

// AggregateConfig configures an AggregateWatcher.
type AggregateConfig struct {
	Interval     time.Duration // summary cadence, defaults to DefaultSummaryInterval
	FetchSummary SummaryFetchFunc
	FetchJobs    JobsFetchFunc
	Logger       *slog.Logger
}

// AggregateSnapshot folds the run summary and the jobs list into one
// renderable view. It is always replaced wholesale from the latest fetch,
// never merged, so stale partial state cannot drift in.
type AggregateSnapshot struct {
	Run  *models.RunSummary
	Jobs []models.JobRecord
	// Active is true while the run reports queued or running work.
	Active bool
	// Transient is true after a failed refresh, until the next success.
	Transient bool
}

// AggregateWatcher drives the multi-job dashboard: a fixed-interval summary
// refresh while any job is queued or running, torn down once the active
// count reaches zero, plus an edge-triggered one-shot refresh of the full
// jobs list when the run transitions from active to idle so final statuses
// are picked up exactly once.
type AggregateWatcher struct {
	interval     time.Duration
	fetchSummary SummaryFetchFunc
	fetchJobs    JobsFetchFunc
	logger       *slog.Logger

	cancel context.CancelFunc

	mu       sync.Mutex
	snapshot AggregateSnapshot
	stopped  bool
	// Per-source staleness: Transient clears only once the fetch that
	// failed succeeds again, so a healthy jobs refresh cannot hide a
	// summary outage.
	summaryStale bool
	jobsStale    bool

	stopOnce sync.Once
	done     chan struct{}
	poke     chan struct{}
	updates  chan AggregateSnapshot
}

// Watch starts the watcher: an immediate summary and jobs-list fetch, then
// summary polling for as long as active work remains. Cancelling ctx is
// equivalent to calling Stop.
func Watch(ctx context.Context, cfg AggregateConfig) *AggregateWatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSummaryInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &AggregateWatcher{
		interval:     cfg.Interval,
		fetchSummary: cfg.FetchSummary,
		fetchJobs:    cfg.FetchJobs,
		logger:       cfg.Logger,
		cancel:       cancel,
		done:         make(chan struct{}),
		poke:         make(chan struct{}, 1),
		updates:      make(chan AggregateSnapshot, 1),
	}

	go w.run(ctx)
	return w
}

// Stop ends the watcher. Idempotent.
func (w *AggregateWatcher) Stop() {
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		w.mu.Unlock()
		w.cancel()
		close(w.done)
	})
}

// Snapshot returns the current aggregate view.
func (w *AggregateWatcher) Snapshot() AggregateSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshot
}

// Updates delivers snapshots as they change, latest-wins.
func (w *AggregateWatcher) Updates() <-chan AggregateSnapshot {
	return w.updates
}

// Done is closed once the watcher has stopped.
func (w *AggregateWatcher) Done() <-chan struct{} {
	return w.done
}

// Poke re-arms summary polling after the watcher has gone idle. Callers
// issue it when they submit new work (process, reprocess) so the dashboard
// does not keep an always-on timer running while nothing is happening.
func (w *AggregateWatcher) Poke() {
	select {
	case w.poke <- struct{}{}:
	default:
	}
}

func (w *AggregateWatcher) run(ctx context.Context) {
	defer w.Stop()

	w.refreshSummary(ctx)
	w.refreshJobs(ctx)

	var ticker *time.Ticker
	var tickC <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	wasActive := w.Snapshot().Active

	for {
		if ctx.Err() != nil {
			return
		}

		// The timer runs while the run has active work or the last refresh
		// failed; outages retry on the same cadence instead of stalling
		// until a manual poke. Only a healthy idle state tears it down.
		snap := w.Snapshot()
		needTimer := snap.Active || snap.Transient
		if needTimer && ticker == nil {
			ticker = time.NewTicker(w.interval)
			tickC = ticker.C
		} else if !needTimer && ticker != nil {
			ticker.Stop()
			ticker = nil
			tickC = nil
		}

		select {
		case <-ctx.Done():
			return

		case <-tickC:
			w.refreshSummary(ctx)
			nowActive := w.Snapshot().Active
			if (wasActive && !nowActive) || w.jobsNeedRefresh() {
				// Falling edge: pick up final statuses exactly once. A
				// stale jobs list from a failed refresh retries here too.
				w.refreshJobs(ctx)
			}
			wasActive = nowActive

		case <-w.poke:
			w.refreshSummary(ctx)
			w.refreshJobs(ctx)
			wasActive = w.Snapshot().Active
		}
	}
}

func (w *AggregateWatcher) jobsNeedRefresh() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.jobsStale
}

// refreshSummary replaces the run summary from a manager-status fetch.
// Failures leave the previous snapshot untouched and mark the summary stale.
func (w *AggregateWatcher) refreshSummary(ctx context.Context) {
	payload, err := w.fetchSummary(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.markStale(&w.summaryStale, err)
		return
	}

	w.mu.Lock()
	w.summaryStale = false
	w.snapshot.Run = payload.Run
	w.snapshot.Active = payload.Run != nil && payload.Run.ActiveCount() > 0
	w.snapshot.Transient = w.jobsStale
	snap := w.snapshot
	w.mu.Unlock()
	w.publish(snap)
}

// refreshJobs replaces the jobs list wholesale.
func (w *AggregateWatcher) refreshJobs(ctx context.Context) {
	payload, err := w.fetchJobs(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.markStale(&w.jobsStale, err)
		return
	}

	w.mu.Lock()
	w.jobsStale = false
	w.snapshot.Jobs = payload.Jobs
	w.snapshot.Transient = w.summaryStale
	snap := w.snapshot
	w.mu.Unlock()
	w.publish(snap)
}

// markStale records a failed refresh for one source and raises the banner.
// stale must point at summaryStale or jobsStale.
func (w *AggregateWatcher) markStale(stale *bool, err error) {
	w.mu.Lock()
	*stale = true
	w.snapshot.Transient = true
	snap := w.snapshot
	w.mu.Unlock()
	w.publish(snap)
	w.logger.Debug("aggregate refresh unavailable", "error", err)
}

func (w *AggregateWatcher) publish(s AggregateSnapshot) {
	for {
		select {
		case w.updates <- s:
			return
		default:
		}
		select {
		case <-w.updates:
		default:
		}
	}
}
