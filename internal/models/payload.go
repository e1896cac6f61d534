package models

// StatusPayload is the JSON body of the status endpoints
// (/api/trigger/status and /api/posts/{guid}/status).
type StatusPayload struct {
	State     string     `json:"state"`
	Processed bool       `json:"processed,omitempty"`
	Message   string     `json:"message,omitempty"`
	ErrorCode string     `json:"error_code,omitempty"`
	Job       *JobDetail `json:"job,omitempty"`
}

// JobDetail is the embedded per-job progress block of a status payload.
type JobDetail struct {
	ID                 string   `json:"id,omitempty"`
	Status             string   `json:"status"`
	CurrentStep        int      `json:"current_step"`
	TotalSteps         int      `json:"total_steps"`
	StepName           string   `json:"step_name,omitempty"`
	ProgressPercentage *float64 `json:"progress_percentage,omitempty"`
	ErrorMessage       string   `json:"error_message,omitempty"`
}

// JobListPayload is the body of /api/jobs/active.
type JobListPayload struct {
	Jobs  []JobRecord `json:"jobs"`
	Count int         `json:"count"`
}

// ManagerStatusPayload is the body of /api/job-manager/status. Run is null
// when no run has ever been started.
type ManagerStatusPayload struct {
	Run *RunSummary `json:"run"`
}

// HistorySummary aggregates the history endpoint's tail stats.
type HistorySummary struct {
	Total           int            `json:"total"`
	Completed       int            `json:"completed"`
	Failed          int            `json:"failed"`
	ByTriggerSource map[string]int `json:"by_trigger_source,omitempty"`
}

// HistoryPayload is the body of /api/jobs/history.
type HistoryPayload struct {
	Jobs    []JobRecord    `json:"jobs"`
	Summary HistorySummary `json:"summary"`
}

// JobEvent is one frame of the websocket job-event stream.
type JobEvent struct {
	Type string      `json:"type"` // "job" or "run"
	Job  *JobRecord  `json:"job,omitempty"`
	Run  *RunSummary `json:"run,omitempty"`
}
