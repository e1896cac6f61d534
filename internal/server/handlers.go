package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/podscrub/podscrub/internal/models"
)

// writeJSON writes a JSON body with the status endpoints' caching contract:
// pollers must never be served a cached status, errors included.
func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func errorPayload(message, errorCode string) models.StatusPayload {
	return models.StatusPayload{State: "error", Message: message, ErrorCode: errorCode}
}

// handleTriggerStatus serves GET /api/trigger/status, the public trigger-link
// status endpoint authorized by a feed access token pair.
func (s *Server) handleTriggerStatus(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	guid := q.Get("guid")
	token := q.Get("feed_token")
	secret := q.Get("feed_secret")

	if guid == "" || token == "" || secret == "" {
		writeJSON(w, http.StatusBadRequest, errorPayload("Missing required parameters", "BAD_REQUEST"))
		return
	}
	if !s.store.CheckToken(token, secret) {
		writeJSON(w, http.StatusUnauthorized, errorPayload("Invalid feed access token", "INVALID_TOKEN"))
		return
	}

	post, ok := s.store.GetPost(guid)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorPayload("Post not found", "NOT_FOUND"))
		return
	}

	writeJSON(w, http.StatusOK, s.statusPayload(post))
}

// handleEpisodeStatus serves GET /api/posts/{guid}/status.
func (s *Server) handleEpisodeStatus(w http.ResponseWriter, r *http.Request) {
	post, ok := s.store.GetPost(r.PathValue("guid"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorPayload("Post not found", "NOT_FOUND"))
		return
	}
	writeJSON(w, http.StatusOK, s.statusPayload(post))
}

// statusPayload reconstructs the episode's processing state from its most
// recent job.
func (s *Server) statusPayload(post Post) models.StatusPayload {
	job, hasJob := s.store.JobForPost(post.GUID)

	payload := models.StatusPayload{Processed: post.Processed}
	if hasJob {
		payload.Job = jobDetail(job)
	}

	switch {
	case hasJob && job.Status == "pending":
		payload.State = "queued"
	case hasJob && job.Status == "running":
		payload.State = "processing"
	case post.Processed:
		payload.State = "ready"
	case hasJob && (job.Status == "failed" || job.Status == "cancelled"):
		payload.State = "failed"
		if job.ErrorMessage != nil {
			payload.Message = *job.ErrorMessage
		}
	default:
		payload.State = "not_started"
	}
	return payload
}

func jobDetail(job models.JobRecord) *models.JobDetail {
	pct := job.ProgressPercentage
	detail := &models.JobDetail{
		ID:                 job.ID,
		Status:             job.Status,
		CurrentStep:        job.CurrentStep,
		TotalSteps:         job.TotalSteps,
		StepName:           job.StepName,
		ProgressPercentage: &pct,
	}
	if job.ErrorMessage != nil {
		detail.ErrorMessage = *job.ErrorMessage
	}
	return detail
}

// handleProcess serves POST /api/posts/{guid}/process: start processing and
// return immediately.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	guid := r.PathValue("guid")
	post, ok := s.store.GetPost(guid)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorPayload("Post not found", "NOT_FOUND"))
		return
	}
	if !post.Whitelisted {
		writeJSON(w, http.StatusBadRequest, errorPayload("Post not whitelisted", "NOT_WHITELISTED"))
		return
	}
	if post.Processed {
		writeJSON(w, http.StatusOK, models.StatusPayload{
			State:     "ready",
			Processed: true,
			Message:   "Post already processed",
		})
		return
	}

	job, created := s.store.StartJob(guid, "manual_ui")
	payload := models.StatusPayload{State: "queued", Job: jobDetail(job)}
	if created {
		payload.Message = "Processing started"
	} else {
		payload.Message = "Processing already in progress"
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleReprocess serves POST /api/posts/{guid}/reprocess: cancel any active
// job, clear the episode's processing state and start over.
func (s *Server) handleReprocess(w http.ResponseWriter, r *http.Request) {
	guid := r.PathValue("guid")
	post, ok := s.store.GetPost(guid)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorPayload("Post not found", "NOT_FOUND"))
		return
	}
	if !post.Whitelisted {
		writeJSON(w, http.StatusBadRequest, errorPayload("Post not whitelisted", "NOT_WHITELISTED"))
		return
	}

	job, created := s.store.ReprocessPost(guid, "manual_reprocess")
	payload := models.StatusPayload{State: "queued", Job: jobDetail(job)}
	if created {
		payload.Message = "Post cleared and reprocessing started"
	} else {
		payload.Message = "Processing already in progress"
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleActiveJobs serves GET /api/jobs/active.
func (s *Server) handleActiveJobs(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 100)
	jobs := s.store.ActiveJobs(limit)
	writeJSON(w, http.StatusOK, models.JobListPayload{Jobs: jobs, Count: len(jobs)})
}

// handleManagerStatus serves GET /api/job-manager/status.
func (s *Server) handleManagerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.ManagerStatusPayload{Run: s.store.RunSummary()})
}

// handleCancelJob serves POST /api/jobs/{id}/cancel.
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	found, cancelled := s.store.CancelJob(id)
	switch {
	case !found:
		writeJSON(w, http.StatusNotFound, errorPayload("Job not found", "NOT_FOUND"))
	case !cancelled:
		writeJSON(w, http.StatusBadRequest, errorPayload("Job already finished", "NOT_ACTIVE"))
	default:
		writeJSON(w, http.StatusOK, models.StatusPayload{State: "cancelled", Message: "Job cancelled"})
	}
}

// handleHistory serves GET /api/jobs/history.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := intQuery(r, "limit", 50)
	if limit > 200 {
		limit = 200
	}
	jobs, summary := s.store.History(limit, r.URL.Query().Get("status"), r.URL.Query().Get("trigger_source"))
	writeJSON(w, http.StatusOK, models.HistoryPayload{Jobs: jobs, Summary: summary})
}

// handleMetrics serves GET /api/metrics with in-memory runtime stats.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func intQuery(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}
