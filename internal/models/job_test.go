package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRunSummaryActiveCount(t *testing.T) {
	r := RunSummary{QueuedCount: 2, RunningCount: 1, CompletedCount: 7}
	if got := r.ActiveCount(); got != 3 {
		t.Errorf("ActiveCount() = %d, want 3", got)
	}
}

func TestRunSummaryOverallPercentage(t *testing.T) {
	tests := []struct {
		name string
		run  RunSummary
		want float64
	}{
		{"empty run", RunSummary{}, 0},
		{"nothing settled", RunSummary{TotalCount: 4, QueuedCount: 4}, 0},
		{"half done", RunSummary{TotalCount: 4, CompletedCount: 1, FailedCount: 1, RunningCount: 2}, 50},
		{"skipped counts as settled", RunSummary{TotalCount: 2, SkippedCount: 2}, 100},
		{"all done", RunSummary{TotalCount: 3, CompletedCount: 2, FailedCount: 1}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.run.OverallPercentage(); got != tt.want {
				t.Errorf("OverallPercentage() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJobRecordActive(t *testing.T) {
	for status, want := range map[string]bool{
		"pending":   true,
		"running":   true,
		"completed": false,
		"failed":    false,
		"cancelled": false,
		"skipped":   false,
	} {
		if got := (JobRecord{Status: status}).Active(); got != want {
			t.Errorf("Active() for %q = %v, want %v", status, got, want)
		}
	}
}

func TestWireTimeUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		// The backend serializes naive datetime.isoformat(), no offset.
		{"naive isoformat", `"2025-03-01T10:30:00.123456"`, time.Date(2025, 3, 1, 10, 30, 0, 123456000, time.UTC)},
		{"rfc3339", `"2025-03-01T10:30:00Z"`, time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"null", `null`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got WireTime
			if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.in, err)
			}
			if !got.Time.Equal(tt.want) {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, got.Time, tt.want)
			}
		})
	}

	var bad WireTime
	if err := json.Unmarshal([]byte(`"yesterday"`), &bad); err == nil {
		t.Error("expected error for unparseable timestamp")
	}
}
