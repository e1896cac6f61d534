package poll

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podscrub/podscrub/internal/api"
	"github.com/podscrub/podscrub/internal/models"
)

func validSubject() Subject {
	return Subject{Kind: SubjectTriggerLink, GUID: "ep-1", FeedToken: "tok", FeedSecret: "sec"}
}

func runningPayload(pct float64) *models.StatusPayload {
	return &models.StatusPayload{
		State: "processing",
		Job:   &models.JobDetail{Status: "running", CurrentStep: 2, TotalSteps: 4, ProgressPercentage: &pct},
	}
}

// scripted returns outcomes in order, repeating the last one, and counts calls.
func scripted(calls *atomic.Int32, outcomes ...api.Outcome) FetchFunc {
	return func(ctx context.Context) api.Outcome {
		n := int(calls.Add(1)) - 1
		if n >= len(outcomes) {
			n = len(outcomes) - 1
		}
		return outcomes[n]
	}
}

func TestStartInvalidSubject(t *testing.T) {
	var calls atomic.Int32
	ctrl := Start(context.Background(), SessionConfig{
		// Missing the token pair required for a trigger-link subject.
		Subject:  Subject{Kind: SubjectTriggerLink, GUID: "ep-1"},
		Interval: time.Millisecond,
		Fetch:    scripted(&calls, api.ServerError(500)),
		Logger:   discardLogger(),
	})

	select {
	case <-ctrl.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}

	snap := ctrl.Snapshot()
	assert.Equal(t, models.StatePermanentError, snap.Status.State)
	assert.False(t, snap.Polling)
	assert.NotEmpty(t, snap.Status.Error)

	// Pre-flight failure: the network is never touched.
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

func TestFullLifecycleScenario(t *testing.T) {
	// queued -> running 50% -> network failure -> running 55% -> ready
	var calls atomic.Int32
	ctrl := Start(context.Background(), SessionConfig{
		Subject:  validSubject(),
		Interval: 5 * time.Millisecond,
		Fetch: scripted(&calls,
			api.Success(&models.StatusPayload{State: "queued"}),
			api.Success(runningPayload(50)),
			api.NetworkFailure(context.DeadlineExceeded),
			api.Success(runningPayload(55)),
			api.Success(&models.StatusPayload{State: "ready", Processed: true}),
		),
		Logger: discardLogger(),
	})

	select {
	case <-ctrl.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not reach a terminal state")
	}

	snap := ctrl.Snapshot()
	assert.Equal(t, models.StateReady, snap.Status.State)
	assert.Equal(t, float64(100), snap.Status.Percentage)
	assert.False(t, snap.Polling)
	// The final success clears the transient banner.
	assert.False(t, snap.Transient)
	// Polling stopped exactly once, at the terminal payload.
	assert.Equal(t, int32(5), calls.Load())

	// Stopping again is a no-op.
	ctrl.Stop()
}

func TestTransientDoesNotEraseModel(t *testing.T) {
	var calls atomic.Int32
	ctrl := Start(context.Background(), SessionConfig{
		Subject:  validSubject(),
		Interval: 5 * time.Millisecond,
		Fetch: scripted(&calls,
			api.Success(runningPayload(40)),
			api.ServerError(503),
		),
		Logger: discardLogger(),
	})
	defer ctrl.Stop()

	require.Eventually(t, func() bool {
		s := ctrl.Snapshot()
		return s.Transient && s.Status.Percentage == 40
	}, 2*time.Second, time.Millisecond, "503 should raise the banner and keep the last good model")

	snap := ctrl.Snapshot()
	assert.Equal(t, models.StateRunning, snap.Status.State)
	assert.True(t, snap.Polling, "transient failures must not stop polling")
}

func TestTransientBeforeFirstModel(t *testing.T) {
	var calls atomic.Int32
	ctrl := Start(context.Background(), SessionConfig{
		Subject:  validSubject(),
		Interval: 5 * time.Millisecond,
		Fetch:    scripted(&calls, api.NetworkFailure(context.DeadlineExceeded)),
		Logger:   discardLogger(),
	})
	defer ctrl.Stop()

	require.Eventually(t, func() bool {
		s := ctrl.Snapshot()
		return s.Transient && s.Status.State == models.StateTransientUnavailable
	}, 2*time.Second, time.Millisecond)
	assert.True(t, ctrl.Snapshot().Polling)
}

func TestClientErrorStopsImmediately(t *testing.T) {
	var calls atomic.Int32
	payload := &models.StatusPayload{State: "error", Message: "Post not found", ErrorCode: "NOT_FOUND"}
	ctrl := Start(context.Background(), SessionConfig{
		Subject:  validSubject(),
		Interval: time.Millisecond,
		Fetch:    scripted(&calls, api.ClientError(404, payload)),
		Logger:   discardLogger(),
	})

	select {
	case <-ctrl.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not stop on 404")
	}

	snap := ctrl.Snapshot()
	assert.Equal(t, models.StatePermanentError, snap.Status.State)
	assert.Equal(t, "Post not found", snap.Status.Error)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "no fetch after a permanent rejection")
}

func TestClientErrorGenericFallbackMessage(t *testing.T) {
	var calls atomic.Int32
	ctrl := Start(context.Background(), SessionConfig{
		Subject:  validSubject(),
		Interval: time.Millisecond,
		Fetch:    scripted(&calls, api.ClientError(401, nil)),
		Logger:   discardLogger(),
	})

	<-ctrl.Done()
	assert.Equal(t, "access token rejected", ctrl.Snapshot().Status.Error)
}

func TestInconsistentSuccessIsPermanent(t *testing.T) {
	tests := []struct {
		name    string
		payload *models.StatusPayload
	}{
		{"failed state with 2xx", &models.StatusPayload{State: "failed", Message: "transcription blew up"}},
		{"not_found state with 2xx", &models.StatusPayload{State: "not_found"}},
		{"unknown state", &models.StatusPayload{State: "zebra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ctrl := Start(context.Background(), SessionConfig{
				Subject:  validSubject(),
				Interval: time.Millisecond,
				Fetch:    scripted(&calls, api.Success(tt.payload)),
				Logger:   discardLogger(),
			})

			select {
			case <-ctrl.Done():
			case <-time.After(time.Second):
				t.Fatal("session did not stop")
			}

			snap := ctrl.Snapshot()
			assert.Equal(t, models.StatePermanentError, snap.Status.State)
			if tt.payload.Message != "" {
				assert.Equal(t, tt.payload.Message, snap.Status.Error)
			} else {
				assert.NotEmpty(t, snap.Status.Error)
			}
		})
	}
}

func TestSingleInFlightInvariant(t *testing.T) {
	var inFlight, maxInFlight, calls atomic.Int32
	ctrl := Start(context.Background(), SessionConfig{
		Subject:  validSubject(),
		Interval: time.Millisecond,
		Fetch: func(ctx context.Context) api.Outcome {
			calls.Add(1)
			n := inFlight.Add(1)
			if n > maxInFlight.Load() {
				maxInFlight.Store(n)
			}
			defer inFlight.Add(-1)

			// Fetch takes far longer than the interval; ticks must be
			// skipped, not queued.
			select {
			case <-time.After(20 * time.Millisecond):
			case <-ctx.Done():
			}
			return api.Success(runningPayload(10))
		},
		Logger: discardLogger(),
	})

	require.Eventually(t, func() bool { return calls.Load() >= 4 }, 2*time.Second, time.Millisecond)
	ctrl.Stop()
	<-ctrl.Done()

	assert.Equal(t, int32(1), maxInFlight.Load(), "a second fetch must never start while one is outstanding")
}

func TestLateResponseCannotResurrectStoppedSession(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	ctrl := Start(context.Background(), SessionConfig{
		Subject:  validSubject(),
		Interval: time.Millisecond,
		Fetch: func(ctx context.Context) api.Outcome {
			if calls.Add(1) == 1 {
				close(started)
				<-release
			}
			return api.Success(&models.StatusPayload{State: "ready"})
		},
		Logger: discardLogger(),
	})

	<-started
	ctrl.Stop()
	close(release)

	// Give the in-flight response time to arrive after the stop.
	time.Sleep(20 * time.Millisecond)

	snap := ctrl.Snapshot()
	assert.NotEqual(t, models.StateReady, snap.Status.State,
		"a response in flight at Stop must be discarded")
	assert.False(t, snap.Polling)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSubjectValidate(t *testing.T) {
	tests := []struct {
		name    string
		subject Subject
		wantErr bool
	}{
		{"trigger link complete", Subject{Kind: SubjectTriggerLink, GUID: "g", FeedToken: "t", FeedSecret: "s"}, false},
		{"trigger link missing secret", Subject{Kind: SubjectTriggerLink, GUID: "g", FeedToken: "t"}, true},
		{"trigger link missing guid", Subject{Kind: SubjectTriggerLink, FeedToken: "t", FeedSecret: "s"}, true},
		{"episode complete", Subject{Kind: SubjectEpisode, GUID: "g"}, false},
		{"episode missing guid", Subject{Kind: SubjectEpisode}, true},
		{"job complete", Subject{Kind: SubjectJob, JobID: "j"}, false},
		{"job missing id", Subject{Kind: SubjectJob}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.subject.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSubject)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
