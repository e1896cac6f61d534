package server

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/podscrub/podscrub/internal/models"
)

// pipelineSteps is the ad-removal pipeline as reported to clients.
var pipelineSteps = []string{
	"Downloading audio",
	"Transcribing",
	"Identifying ads",
	"Removing ads",
}

// Post is one podcast episode known to the backend.
type Post struct {
	GUID        string
	Title       string
	FeedTitle   string
	Whitelisted bool
	Processed   bool
}

// Job is one processing job. All fields are guarded by the store mutex.
type Job struct {
	ID            string
	PostGUID      string
	Status        string // pending, running, completed, failed, cancelled, skipped
	TriggerSource string
	CurrentStep   int
	TotalSteps    int
	StepName      string
	Percentage    float64
	ErrorMessage  string
	CreatedAt     time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

func (j *Job) active() bool {
	return j.Status == "pending" || j.Status == "running"
}

type run struct {
	ID         string
	Trigger    string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Store is the in-memory backing state of the reference server: posts, feed
// access tokens, jobs and the current processing run.
type Store struct {
	mu     sync.RWMutex
	posts  map[string]*Post
	tokens map[string]string // token id -> sha256(secret) hex
	jobs   map[string]*Job
	order  []string // job IDs in creation order
	run    *run

	// stepDelay > 0 makes started jobs advance through the pipeline on
	// their own (demo mode). Zero leaves advancement to the test driver.
	stepDelay time.Duration
	// onEvent is invoked outside the lock for every job/run transition.
	onEvent func(models.JobEvent)
	logger  *slog.Logger
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		posts:  make(map[string]*Post),
		tokens: make(map[string]string),
		jobs:   make(map[string]*Job),
		logger: logger,
	}
}

// SetStepDelay enables self-advancing jobs with the given per-step duration.
func (s *Store) SetStepDelay(d time.Duration) {
	s.mu.Lock()
	s.stepDelay = d
	s.mu.Unlock()
}

// SetEventSink registers the job-event broadcast hook.
func (s *Store) SetEventSink(fn func(models.JobEvent)) {
	s.mu.Lock()
	s.onEvent = fn
	s.mu.Unlock()
}

// AddPost registers an episode.
func (s *Store) AddPost(p Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post := p
	s.posts[p.GUID] = &post
}

// AddFeedToken registers a feed access token pair. Only the secret's sha256
// is kept, matching the backend's token storage.
func (s *Store) AddFeedToken(tokenID, secret string) {
	sum := sha256.Sum256([]byte(secret))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tokenID] = hex.EncodeToString(sum[:])
}

// CheckToken verifies a token id + secret pair.
func (s *Store) CheckToken(tokenID, secret string) bool {
	s.mu.RLock()
	want, ok := s.tokens[tokenID]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:]) == want
}

// GetPost looks up an episode.
func (s *Store) GetPost(guid string) (Post, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[guid]
	if !ok {
		return Post{}, false
	}
	return *p, true
}

// StartJob creates a pending job for an episode and ensures a run exists.
// Returns the job record, or false when the post already has an active job.
func (s *Store) StartJob(postGUID, triggerSource string) (models.JobRecord, bool) {
	s.mu.Lock()

	for _, id := range s.order {
		j := s.jobs[id]
		if j.PostGUID == postGUID && j.active() {
			rec := s.record(j)
			s.mu.Unlock()
			return rec, false
		}
	}

	now := time.Now()
	j := &Job{
		ID:            uuid.New().String()[:8], // short ID for convenience
		PostGUID:      postGUID,
		Status:        "pending",
		TriggerSource: triggerSource,
		TotalSteps:    len(pipelineSteps),
		CreatedAt:     now,
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j.ID)

	if s.run == nil || s.run.FinishedAt != nil {
		s.run = &run{
			ID:        uuid.New().String()[:8],
			Trigger:   triggerSource,
			StartedAt: now,
		}
	}

	delay := s.stepDelay
	rec := s.record(j)
	s.mu.Unlock()

	s.logger.Info("job created", "job_id", rec.ID, "post_guid", postGUID, "trigger_source", triggerSource)
	s.emitJob(rec)

	if delay > 0 {
		go s.simulate(j.ID, delay)
	}
	return rec, true
}

// ReprocessPost cancels any active job for the episode, clears its processed
// flag and queues a fresh job from scratch.
func (s *Store) ReprocessPost(postGUID, triggerSource string) (models.JobRecord, bool) {
	s.mu.Lock()
	var active []string
	for _, id := range s.order {
		j := s.jobs[id]
		if j.PostGUID == postGUID && j.active() {
			active = append(active, id)
		}
	}
	if p, ok := s.posts[postGUID]; ok {
		p.Processed = false
	}
	s.mu.Unlock()

	for _, id := range active {
		s.CancelJob(id)
	}
	return s.StartJob(postGUID, triggerSource)
}

// AdvanceJob moves a job to the given 1-based pipeline step, marking it
// running. No-op once the job is terminal.
func (s *Store) AdvanceJob(id string, step int) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok || !j.active() {
		s.mu.Unlock()
		return
	}
	if j.StartedAt == nil {
		now := time.Now()
		j.StartedAt = &now
	}
	if step < 1 {
		step = 1
	}
	if step > j.TotalSteps {
		step = j.TotalSteps
	}
	j.Status = "running"
	j.CurrentStep = step
	j.StepName = pipelineSteps[step-1]
	j.Percentage = float64(step-1) / float64(j.TotalSteps) * 100
	rec := s.record(j)
	s.mu.Unlock()
	s.emitJob(rec)
}

// CompleteJob finishes a job and marks its post processed.
func (s *Store) CompleteJob(id string) {
	s.finishJob(id, "completed", "")
}

// FailJob finishes a job with an error message.
func (s *Store) FailJob(id, msg string) {
	s.finishJob(id, "failed", msg)
}

// SkipJob marks a job skipped (e.g. episode not whitelisted on a feed run).
func (s *Store) SkipJob(id, msg string) {
	s.finishJob(id, "skipped", msg)
}

// CancelJob cancels an active job. Returns false when the job does not
// exist; the second result is false when it exists but is already terminal.
func (s *Store) CancelJob(id string) (found, cancelled bool) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok {
		s.mu.Unlock()
		return false, false
	}
	if !j.active() {
		s.mu.Unlock()
		return true, false
	}
	now := time.Now()
	j.Status = "cancelled"
	j.CompletedAt = &now
	rec := s.record(j)
	s.mu.Unlock()
	s.emitJob(rec)
	s.emitRun()
	return true, true
}

func (s *Store) finishJob(id, status, msg string) {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if !ok || !j.active() {
		s.mu.Unlock()
		return
	}
	now := time.Now()
	j.Status = status
	j.CompletedAt = &now
	j.ErrorMessage = msg
	if status == "completed" {
		j.CurrentStep = j.TotalSteps
		j.Percentage = 100
		if p, ok := s.posts[j.PostGUID]; ok {
			p.Processed = true
		}
	}
	rec := s.record(j)
	s.mu.Unlock()

	s.logger.Info("job finished", "job_id", id, "status", status)
	s.emitJob(rec)
	s.emitRun()
}

// simulate advances a job through the pipeline on a timer (demo mode).
func (s *Store) simulate(id string, delay time.Duration) {
	total := len(pipelineSteps)
	for step := 1; step <= total; step++ {
		time.Sleep(delay)
		s.mu.RLock()
		j, ok := s.jobs[id]
		alive := ok && j.active()
		s.mu.RUnlock()
		if !alive {
			return
		}
		s.AdvanceJob(id, step)
	}
	time.Sleep(delay)
	s.CompleteJob(id)
}

// JobForPost returns the most recent job for an episode.
func (s *Store) JobForPost(guid string) (models.JobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		j := s.jobs[s.order[i]]
		if j.PostGUID == guid {
			return s.record(j), true
		}
	}
	return models.JobRecord{}, false
}

// GetJob returns a job by ID.
func (s *Store) GetJob(id string) (models.JobRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return models.JobRecord{}, false
	}
	return s.record(j), true
}

// ActiveJobs lists pending and running jobs, oldest first.
func (s *Store) ActiveJobs(limit int) []models.JobRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.JobRecord
	for _, id := range s.order {
		j := s.jobs[id]
		if !j.active() {
			continue
		}
		out = append(out, s.record(j))
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// History lists jobs newest first with optional status / trigger filters.
func (s *Store) History(limit int, status, triggerSource string) ([]models.JobRecord, models.HistorySummary) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.JobRecord
	for i := len(s.order) - 1; i >= 0; i-- {
		j := s.jobs[s.order[i]]
		if status != "" && j.Status != status {
			continue
		}
		if triggerSource != "" && j.TriggerSource != triggerSource {
			continue
		}
		if limit <= 0 || len(out) < limit {
			out = append(out, s.record(j))
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].CreatedAt.After(out[b].CreatedAt.Time)
	})

	summary := models.HistorySummary{
		Total:           len(s.jobs),
		ByTriggerSource: make(map[string]int),
	}
	for _, id := range s.order {
		j := s.jobs[id]
		switch j.Status {
		case "completed":
			summary.Completed++
		case "failed":
			summary.Failed++
		}
		source := j.TriggerSource
		if source == "" {
			source = "unknown"
		}
		summary.ByTriggerSource[source]++
	}
	return out, summary
}

// RunSummary recalculates and returns the current run, or nil when no run
// has ever been started. Counts are always derived from the jobs, never
// incrementally maintained.
func (s *Store) RunSummary() *models.RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runSummaryLocked()
}

func (s *Store) runSummaryLocked() *models.RunSummary {
	if s.run == nil {
		return nil
	}

	summary := &models.RunSummary{
		ID:        s.run.ID,
		Trigger:   s.run.Trigger,
		StartedAt: wireTime(s.run.StartedAt),
	}
	for _, id := range s.order {
		j := s.jobs[id]
		if j.CreatedAt.Before(s.run.StartedAt) {
			continue
		}
		summary.TotalCount++
		switch j.Status {
		case "pending":
			summary.QueuedCount++
		case "running":
			summary.RunningCount++
		case "completed":
			summary.CompletedCount++
		case "failed", "cancelled":
			summary.FailedCount++
		case "skipped":
			summary.SkippedCount++
		}
	}

	if summary.ActiveCount() == 0 && summary.TotalCount > 0 {
		if s.run.FinishedAt == nil {
			now := time.Now()
			s.run.FinishedAt = &now
		}
		summary.Status = "finished"
		summary.FinishedAt = wireTime(*s.run.FinishedAt)
	} else {
		summary.Status = "running"
	}
	return summary
}

func (s *Store) record(j *Job) models.JobRecord {
	rec := models.JobRecord{
		ID:                 j.ID,
		PostGUID:           j.PostGUID,
		Status:             j.Status,
		TriggerSource:      j.TriggerSource,
		CurrentStep:        j.CurrentStep,
		TotalSteps:         j.TotalSteps,
		StepName:           j.StepName,
		ProgressPercentage: j.Percentage,
		CreatedAt:          wireTime(j.CreatedAt),
	}
	if p, ok := s.posts[j.PostGUID]; ok {
		rec.PostTitle = p.Title
		rec.FeedTitle = p.FeedTitle
	}
	if j.ErrorMessage != "" {
		msg := j.ErrorMessage
		rec.ErrorMessage = &msg
	}
	if j.StartedAt != nil {
		rec.StartedAt = wireTime(*j.StartedAt)
	}
	if j.CompletedAt != nil {
		rec.CompletedAt = wireTime(*j.CompletedAt)
	}
	return rec
}

func (s *Store) emitJob(rec models.JobRecord) {
	s.mu.RLock()
	fn := s.onEvent
	s.mu.RUnlock()
	if fn != nil {
		fn(models.JobEvent{Type: "job", Job: &rec})
	}
}

func (s *Store) emitRun() {
	s.mu.RLock()
	fn := s.onEvent
	s.mu.RUnlock()
	if fn == nil {
		return
	}
	if summary := s.RunSummary(); summary != nil {
		fn(models.JobEvent{Type: "run", Run: summary})
	}
}

func wireTime(t time.Time) *models.WireTime {
	return &models.WireTime{Time: t}
}
