package metrics

import (
	"testing"
	"time"
)

func TestCollectorRecord(t *testing.T) {
	c := NewCollector()
	c.Record("GET /api/jobs/active", 10*time.Millisecond, false)
	c.Record("GET /api/jobs/active", 30*time.Millisecond, false)
	c.Record("GET /api/jobs/active", 20*time.Millisecond, true)

	snap := c.Snapshot()
	op, ok := snap.Operations["GET /api/jobs/active"]
	if !ok {
		t.Fatal("operation missing from snapshot")
	}
	if op.Count != 3 {
		t.Errorf("Count = %d, want 3", op.Count)
	}
	if op.Errors != 1 {
		t.Errorf("Errors = %d, want 1", op.Errors)
	}
	if op.MinTimeMs != 10 || op.MaxTimeMs != 30 {
		t.Errorf("Min/Max = %d/%d, want 10/30", op.MinTimeMs, op.MaxTimeMs)
	}
	if op.AvgTimeMs != 20 {
		t.Errorf("AvgTimeMs = %v, want 20", op.AvgTimeMs)
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("UptimeSeconds = %v", snap.UptimeSeconds)
	}
}

func TestCollectorEmptySnapshot(t *testing.T) {
	snap := NewCollector().Snapshot()
	if len(snap.Operations) != 0 {
		t.Errorf("Operations = %v, want empty", snap.Operations)
	}
}
