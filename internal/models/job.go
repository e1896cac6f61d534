package models

import "time"

// JobStatus is the reconciled view model handed to presentation. It is a
// read-only snapshot; the polling core replaces it wholesale on every update.
type JobStatus struct {
	State       LifecycleState `json:"state"`
	JobID       string         `json:"job_id,omitempty"`
	CurrentStep int            `json:"current_step"`
	TotalSteps  int            `json:"total_steps"`
	StepName    string         `json:"step_name"`
	Percentage  float64        `json:"percentage"`
	Error       string         `json:"error,omitempty"`
}

// Terminal reports whether the status can no longer change.
func (j JobStatus) Terminal() bool {
	return IsTerminal(j.State)
}

// JobRecord is one row of the jobs list as served by the backend. Field names
// follow the backend JSON exactly.
type JobRecord struct {
	ID                 string    `json:"id"`
	PostGUID           string    `json:"post_guid"`
	PostTitle          string    `json:"post_title,omitempty"`
	FeedTitle          string    `json:"feed_title,omitempty"`
	Status             string    `json:"status"`
	TriggerSource      string    `json:"trigger_source,omitempty"`
	CurrentStep        int       `json:"current_step"`
	TotalSteps         int       `json:"total_steps"`
	StepName           string    `json:"step_name,omitempty"`
	ProgressPercentage float64   `json:"progress_percentage"`
	ErrorMessage       *string   `json:"error_message,omitempty"`
	CreatedAt          *WireTime `json:"created_at,omitempty"`
	StartedAt          *WireTime `json:"started_at,omitempty"`
	CompletedAt        *WireTime `json:"completed_at,omitempty"`
}

// Active reports whether the job still counts as active work.
func (r JobRecord) Active() bool {
	switch r.Status {
	case "pending", "queued", "running", "in_progress", "processing":
		return true
	}
	return false
}

// RunSummary is the manager-level aggregate for one processing run.
type RunSummary struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"`
	Trigger        string    `json:"trigger,omitempty"`
	QueuedCount    int       `json:"queued_count"`
	RunningCount   int       `json:"running_count"`
	CompletedCount int       `json:"completed_count"`
	FailedCount    int       `json:"failed_count"`
	SkippedCount   int       `json:"skipped_count"`
	TotalCount     int       `json:"total_count"`
	StartedAt      *WireTime `json:"started_at,omitempty"`
	FinishedAt     *WireTime `json:"finished_at,omitempty"`
}

// ActiveCount returns the amount of work still queued or running.
func (r RunSummary) ActiveCount() int {
	return r.QueuedCount + r.RunningCount
}

// OverallPercentage derives run-level progress from the counts. Skipped jobs
// count as settled work so a fully skipped run reads 100%.
func (r RunSummary) OverallPercentage() float64 {
	if r.TotalCount <= 0 {
		return 0
	}
	done := r.CompletedCount + r.FailedCount + r.SkippedCount
	pct := float64(done) / float64(r.TotalCount) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}

// WireTime unwraps the backend's ISO-8601 timestamps.
type WireTime struct {
	time.Time
}

// UnmarshalJSON accepts RFC 3339 with or without an offset, and null.
// The backend emits naive datetime.isoformat() strings.
func (t *WireTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		return nil
	}
	if len(s) >= 2 && s[0] == '"' {
		s = s[1 : len(s)-1]
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05"} {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return &time.ParseError{Layout: time.RFC3339, Value: s}
}

// MarshalJSON writes RFC 3339, or null for the zero value.
func (t WireTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}
