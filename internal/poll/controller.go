// Package poll implements the job-status polling and reconciliation state
// machine shared by every status-tracking surface of the console: the
// single-episode watch view, the jobs dashboard and the inline processing
// indicator all drive the same controller instead of carrying their own
// timer loops.
package poll

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/podscrub/podscrub/internal/api"
	"github.com/podscrub/podscrub/internal/models"
)

// DefaultInterval is the single-subject polling cadence.
const DefaultInterval = 2 * time.Second

// FetchFunc performs one status request for the tracked subject. The
// controller guarantees at most one call is in flight at a time and that the
// context is cancelled when the session stops.
type FetchFunc func(ctx context.Context) api.Outcome

// SubjectKind selects which authorization material a subject must carry.
type SubjectKind int

const (
	// SubjectTriggerLink polls /api/trigger/status and needs the episode
	// GUID plus the feed access token pair.
	SubjectTriggerLink SubjectKind = iota
	// SubjectEpisode polls /api/posts/{guid}/status inside an authenticated
	// console session and needs only the GUID.
	SubjectEpisode
	// SubjectJob tracks a job by ID.
	SubjectJob
)

// Subject identifies what is being polled. Immutable for the lifetime of a
// session; tracking a different subject means starting a new session.
type Subject struct {
	Kind       SubjectKind
	GUID       string
	FeedToken  string
	FeedSecret string
	JobID      string
}

// ErrInvalidSubject is returned by Subject.Validate when required
// authorization fields are missing. Such a subject never reaches the network.
var ErrInvalidSubject = errors.New("subject is missing required parameters")

// Validate checks that the subject carries everything its kind needs to
// authorize a status call.
func (s Subject) Validate() error {
	switch s.Kind {
	case SubjectTriggerLink:
		if s.GUID == "" || s.FeedToken == "" || s.FeedSecret == "" {
			return ErrInvalidSubject
		}
	case SubjectEpisode:
		if s.GUID == "" {
			return ErrInvalidSubject
		}
	case SubjectJob:
		if s.JobID == "" {
			return ErrInvalidSubject
		}
	}
	return nil
}

// SessionConfig configures one polling session.
type SessionConfig struct {
	Subject  Subject
	Interval time.Duration // defaults to DefaultInterval
	Fetch    FetchFunc
	Logger   *slog.Logger // defaults to slog.Default()
}

// Snapshot is the read-only view handed to presentation.
type Snapshot struct {
	Status models.JobStatus
	// Polling is true while the session still issues fetches.
	Polling bool
	// Transient is true after a 5xx or network failure, until the next
	// success. The UI shows a non-blocking banner; the last good Status is
	// retained untouched.
	Transient bool
}

// Controller drives one timer-driven request loop for a single subject.
// All methods are safe for concurrent use.
type Controller struct {
	subject  Subject
	interval time.Duration
	fetch    FetchFunc
	logger   *slog.Logger

	cancel context.CancelFunc

	mu       sync.Mutex
	snapshot Snapshot
	hasModel bool // a good model has been received at least once
	inFlight bool
	stopped  bool

	stopOnce sync.Once
	done     chan struct{}
	updates  chan Snapshot
}

// Start begins polling: one immediate fetch, then a fixed-interval timer.
// A subject missing required authorization fields yields an already-stopped
// controller whose snapshot is a terminal permanent error; no network call
// is made. Cancelling ctx is equivalent to calling Stop.
func Start(ctx context.Context, cfg SessionConfig) *Controller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(ctx)
	c := &Controller{
		subject:  cfg.Subject,
		interval: cfg.Interval,
		fetch:    cfg.Fetch,
		logger:   cfg.Logger,
		cancel:   cancel,
		done:     make(chan struct{}),
		updates:  make(chan Snapshot, 1),
	}

	if err := cfg.Subject.Validate(); err != nil {
		c.snapshot = Snapshot{
			Status: models.JobStatus{
				State: models.StatePermanentError,
				Error: err.Error(),
			},
		}
		c.stopped = true
		cancel()
		c.stopOnce.Do(func() { close(c.done) })
		c.publish(c.snapshot)
		c.logger.Warn("polling session rejected", "reason", err)
		return c
	}

	c.snapshot = Snapshot{
		Status:  models.JobStatus{State: models.StateQueued},
		Polling: true,
	}

	go c.run(ctx)
	return c
}

// Stop ends the session. Idempotent, safe to call from any goroutine
// including outcome handlers, and synchronous: after Stop returns, no
// late-arriving response can write into the model.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.snapshot.Polling = false
		snap := c.snapshot
		c.mu.Unlock()

		c.cancel()
		close(c.done)
		c.publish(snap)
	})
}

// Snapshot returns the current reconciled view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// Updates delivers snapshots as they change. Latest-wins: the channel holds
// at most one pending snapshot and the loop never blocks on it.
func (c *Controller) Updates() <-chan Snapshot {
	return c.updates
}

// Done is closed once the session has stopped for any reason.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) run(ctx context.Context) {
	defer c.Stop()

	c.poll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.poll(ctx)
			// Drop the tick that accrued while a slow fetch was in flight:
			// missed ticks are skipped, never queued.
			select {
			case <-ticker.C:
			default:
			}
		}

		c.mu.Lock()
		stopped := c.stopped
		c.mu.Unlock()
		if stopped {
			return
		}
	}
}

// poll issues one fetch. It runs synchronously in the polling goroutine, so
// at most one request is ever in flight per session.
func (c *Controller) poll(ctx context.Context) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.inFlight = true
	c.mu.Unlock()

	outcome := c.fetch(ctx)

	c.mu.Lock()
	c.inFlight = false
	if c.stopped || ctx.Err() != nil {
		// The session stopped while the request was in flight; the response
		// must not resurrect it.
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.apply(outcome)
}

// apply is the classification step: every fetch outcome, including transport
// errors, funnels through here exactly once.
func (c *Controller) apply(outcome api.Outcome) {
	switch outcome.Kind {
	case api.OutcomeSuccess:
		c.applySuccess(outcome.Payload)

	case api.OutcomeClientError:
		// 4xx: permanent rejection. Message from the payload when present.
		msg := rejectionMessage(outcome)
		c.terminate(models.JobStatus{State: models.StatePermanentError, Error: msg})
		c.logger.Warn("status poll rejected", "subject", c.subject.GUID, "code", outcome.Code, "message", msg)

	case api.OutcomeServerError, api.OutcomeNetworkFailure:
		// Transient: keep the last good model, keep polling, raise the banner.
		c.mu.Lock()
		if !c.hasModel {
			c.snapshot.Status.State = models.StateTransientUnavailable
		}
		c.snapshot.Transient = true
		snap := c.snapshot
		c.mu.Unlock()
		c.publish(snap)
		c.logger.Debug("status poll unavailable", "subject", c.subject.GUID, "kind", outcome.Kind.String(), "code", outcome.Code, "error", outcome.Err)
	}
}

func (c *Controller) applySuccess(p *models.StatusPayload) {
	if p == nil {
		c.terminate(models.JobStatus{State: models.StatePermanentError, Error: "empty response from server"})
		return
	}

	state, known := models.FromWireState(p.State)
	if !known {
		// e.g. "not_found" inside a 2xx body: the contract requires non-2xx
		// for those, so the response is inconsistent.
		c.terminate(models.JobStatus{
			State: models.StatePermanentError,
			Error: orDefault(p.Message, "unexpected state from server: "+p.State),
		})
		return
	}

	switch state {
	case models.StateQueued, models.StateRunning:
		c.mu.Lock()
		prev := c.snapshot.Status
		next := reconcile(prev, state, p, c.hasModel, c.logger)
		c.snapshot.Status = next
		c.snapshot.Transient = false
		c.hasModel = true
		snap := c.snapshot
		c.mu.Unlock()
		c.publish(snap)

	case models.StateReady:
		c.mu.Lock()
		prev := c.snapshot.Status
		next := reconcile(prev, state, p, c.hasModel, c.logger)
		c.snapshot.Status = next
		c.snapshot.Transient = false
		c.hasModel = true
		c.mu.Unlock()
		c.Stop()

	case models.StateFailed:
		// A failure state arriving with HTTP success contradicts the
		// contract; treated uniformly as a permanent error, keeping any
		// message the payload carries.
		msg := p.Message
		if msg == "" && p.Job != nil {
			msg = p.Job.ErrorMessage
		}
		c.terminate(models.JobStatus{
			State:      models.StatePermanentError,
			JobID:      jobID(p),
			Error:      orDefault(msg, "processing failed"),
			Percentage: c.Snapshot().Status.Percentage,
		})
	}
}

// terminate records a terminal status and stops the session.
func (c *Controller) terminate(status models.JobStatus) {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.snapshot.Status = status
	c.snapshot.Transient = false
	c.mu.Unlock()
	c.Stop()
}

// publish pushes a snapshot to the updates channel, displacing any pending
// one so the loop never blocks on a slow consumer.
func (c *Controller) publish(s Snapshot) {
	for {
		select {
		case c.updates <- s:
			return
		default:
		}
		select {
		case <-c.updates:
		default:
		}
	}
}

func rejectionMessage(o api.Outcome) string {
	if o.Payload != nil {
		if o.Payload.Message != "" {
			return o.Payload.Message
		}
		if o.Payload.Job != nil && o.Payload.Job.ErrorMessage != "" {
			return o.Payload.Job.ErrorMessage
		}
	}
	switch o.Code {
	case 401, 403:
		return "access token rejected"
	case 404:
		return "episode not found"
	default:
		return "request rejected by server"
	}
}

func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func jobID(p *models.StatusPayload) string {
	if p.Job != nil {
		return p.Job.ID
	}
	return ""
}
