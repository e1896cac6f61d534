package poll

import (
	"io"
	"log/slog"
	"testing"

	"github.com/podscrub/podscrub/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pctPtr(v float64) *float64 { return &v }

func TestReconcileMapsJobDetail(t *testing.T) {
	p := &models.StatusPayload{
		State: "processing",
		Job: &models.JobDetail{
			ID:                 "abc123",
			Status:             "running",
			CurrentStep:        2,
			TotalSteps:         4,
			StepName:           "Transcribing",
			ProgressPercentage: pctPtr(37.5),
		},
	}

	got := reconcile(models.JobStatus{}, models.StateRunning, p, false, discardLogger())

	if got.State != models.StateRunning {
		t.Errorf("State = %q, want running", got.State)
	}
	if got.JobID != "abc123" {
		t.Errorf("JobID = %q, want abc123", got.JobID)
	}
	if got.Percentage != 37.5 {
		t.Errorf("Percentage = %v, want 37.5", got.Percentage)
	}
	if got.StepName != "Transcribing" {
		t.Errorf("StepName = %q, want Transcribing", got.StepName)
	}
}

func TestReconcileDerivesPercentageFromSteps(t *testing.T) {
	tests := []struct {
		name    string
		job     models.JobDetail
		wantPct float64
	}{
		{"derived from steps", models.JobDetail{CurrentStep: 1, TotalSteps: 4}, 25},
		{"explicit wins", models.JobDetail{CurrentStep: 1, TotalSteps: 4, ProgressPercentage: pctPtr(40)}, 40},
		{"clamped high", models.JobDetail{ProgressPercentage: pctPtr(250)}, 100},
		{"clamped low", models.JobDetail{ProgressPercentage: pctPtr(-5)}, 0},
		{"no information", models.JobDetail{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &models.StatusPayload{State: "processing", Job: &tt.job}
			got := reconcile(models.JobStatus{}, models.StateRunning, p, false, discardLogger())
			if got.Percentage != tt.wantPct {
				t.Errorf("Percentage = %v, want %v", got.Percentage, tt.wantPct)
			}
		})
	}
}

func TestReconcileDefaultStepName(t *testing.T) {
	p := &models.StatusPayload{
		State: "processing",
		Job:   &models.JobDetail{CurrentStep: 2, TotalSteps: 4},
	}
	got := reconcile(models.JobStatus{}, models.StateRunning, p, false, discardLogger())
	if got.StepName != "Step 2/4" {
		t.Errorf("StepName = %q, want \"Step 2/4\"", got.StepName)
	}
}

func TestReconcileProgressNeverRegresses(t *testing.T) {
	prev := models.JobStatus{State: models.StateRunning, Percentage: 50}

	// A lower percentage from a backend race keeps the shown value.
	p := &models.StatusPayload{
		State: "processing",
		Job:   &models.JobDetail{ProgressPercentage: pctPtr(40)},
	}
	got := reconcile(prev, models.StateRunning, p, true, discardLogger())
	if got.Percentage != 50 {
		t.Errorf("Percentage after regression = %v, want 50 (previous value kept)", got.Percentage)
	}

	// A higher percentage advances normally.
	p.Job.ProgressPercentage = pctPtr(60)
	got = reconcile(prev, models.StateRunning, p, true, discardLogger())
	if got.Percentage != 60 {
		t.Errorf("Percentage after advance = %v, want 60", got.Percentage)
	}

	// Before any good model, nothing is pinned.
	p.Job.ProgressPercentage = pctPtr(10)
	got = reconcile(models.JobStatus{}, models.StateRunning, p, false, discardLogger())
	if got.Percentage != 10 {
		t.Errorf("Percentage on first model = %v, want 10", got.Percentage)
	}
}

func TestReconcileReadyDefaultsToComplete(t *testing.T) {
	p := &models.StatusPayload{State: "ready"}
	got := reconcile(models.JobStatus{Percentage: 75}, models.StateReady, p, true, discardLogger())
	if got.Percentage != 100 {
		t.Errorf("Percentage = %v, want 100", got.Percentage)
	}
	if !got.Terminal() {
		t.Error("ready model should be terminal")
	}
}
