package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubJob counts measurements and optionally fails or dawdles.
type stubJob struct {
	name   string
	period time.Duration
	err    error
	delay  time.Duration

	mu    sync.Mutex
	calls int
}

func (j *stubJob) Name() string          { return j.name }
func (j *stubJob) Period() time.Duration { return j.period }

func (j *stubJob) Measure(ctx context.Context) error {
	if j.delay > 0 {
		time.Sleep(j.delay)
	}
	j.mu.Lock()
	j.calls++
	j.mu.Unlock()
	return j.err
}

func (j *stubJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.calls
}

func TestSchedulerFailingJobDoesNotStopOthers(t *testing.T) {
	t.Parallel()

	healthy := &stubJob{name: "healthy", period: 5 * time.Millisecond}
	broken := &stubJob{name: "broken", period: 5 * time.Millisecond, err: errors.New("probe exploded")}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := NewScheduler([]Job{healthy, broken}).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := healthy.count(); got < 2 {
		t.Fatalf("healthy job fired %d times, want at least 2", got)
	}
	if got := broken.count(); got < 2 {
		t.Fatalf("broken job fired %d times, want at least 2", got)
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	t.Parallel()

	job := &stubJob{name: "slow", period: time.Hour}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewScheduler([]Job{job}).Run(ctx)
	}()

	// let the first measurement land, then cancel
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancellation")
	}

	if got := job.count(); got != 1 {
		t.Fatalf("job fired %d times, want exactly 1", got)
	}
}

func TestSchedulerOverrunFiresAgainImmediately(t *testing.T) {
	t.Parallel()

	// every measurement overruns its period several times over
	job := &stubJob{name: "overrun", period: time.Millisecond, delay: 20 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	if err := NewScheduler([]Job{job}).Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := job.count(); got < 3 {
		t.Fatalf("job fired %d times, want back-to-back fires", got)
	}
}
