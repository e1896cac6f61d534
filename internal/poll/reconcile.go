package poll

import (
	"fmt"
	"log/slog"

	"github.com/podscrub/podscrub/internal/models"
)

// reconcile maps a raw status payload into the normalized model, preserving
// monotonic progress across polls for the same subject.
func reconcile(prev models.JobStatus, state models.LifecycleState, p *models.StatusPayload, hadModel bool, logger *slog.Logger) models.JobStatus {
	next := models.JobStatus{State: state}

	if p.Job != nil {
		next.JobID = p.Job.ID
		next.CurrentStep = p.Job.CurrentStep
		next.TotalSteps = p.Job.TotalSteps
		next.StepName = p.Job.StepName
		next.Error = p.Job.ErrorMessage

		if p.Job.ProgressPercentage != nil {
			next.Percentage = *p.Job.ProgressPercentage
		} else if p.Job.TotalSteps > 0 {
			next.Percentage = float64(p.Job.CurrentStep) / float64(p.Job.TotalSteps) * 100
		}
	}

	next.Percentage = clampPercentage(next.Percentage)

	if state == models.StateReady && next.Percentage == 0 {
		// A terminal success with no progress block still reads complete.
		next.Percentage = 100
	}

	if next.StepName == "" && next.TotalSteps > 0 {
		next.StepName = fmt.Sprintf("Step %d/%d", next.CurrentStep, next.TotalSteps)
	}

	// Progress must not visibly regress on backend races: while non-terminal,
	// a lower percentage than the one already shown keeps the previous value.
	if hadModel && !models.IsTerminal(state) && next.Percentage < prev.Percentage {
		logger.Warn("progress regression from backend, keeping previous value",
			"job_id", next.JobID,
			"previous", prev.Percentage,
			"received", next.Percentage)
		next.Percentage = prev.Percentage
	}

	return next
}

func clampPercentage(pct float64) float64 {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
