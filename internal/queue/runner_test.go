package queue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fizzyhq/fizzy/internal/model"
	"github.com/fizzyhq/fizzy/internal/store/storetest"
	"github.com/fizzyhq/fizzy/internal/tenant"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pendingJob(id, kind string, attempts, maxAttempts int) *model.Job {
	now := time.Now().UTC().Add(-time.Second)
	return &model.Job{
		ID: id, AccountID: "acc-1", Kind: kind, Payload: []byte(`{}`),
		Status: model.JobPending, Attempts: attempts, MaxAttempts: maxAttempts,
		RunAt: now, CreatedAt: now, UpdatedAt: now,
	}
}

func TestRunner_ProcessesJob(t *testing.T) {
	fake := storetest.NewFake()
	fake.Jobs["j-1"] = pendingJob("j-1", "test.kind", 0, 3)

	r := NewRunner(fake, 2, time.Millisecond, time.Second, testLogger())

	var handled atomic.Int32
	r.Register("test.kind", func(ctx context.Context, job *model.Job) error {
		if acct, err := tenant.AccountID(ctx); err != nil || acct != "acc-1" {
			t.Errorf("job context account = %q, %v", acct, err)
		}
		handled.Add(1)
		return nil
	})

	n, err := r.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 1 || handled.Load() != 1 {
		t.Fatalf("processed %d jobs, handler ran %d times", n, handled.Load())
	}
	if got := fake.Jobs["j-1"].Status; got != model.JobDone {
		t.Errorf("job status = %s, want done", got)
	}
}

func TestRunner_RetriesFailedJob(t *testing.T) {
	fake := storetest.NewFake()
	fake.Jobs["j-1"] = pendingJob("j-1", "test.kind", 0, 3)

	r := NewRunner(fake, 1, time.Millisecond, time.Second, testLogger())
	r.Register("test.kind", func(ctx context.Context, job *model.Job) error {
		return errors.New("downstream unavailable")
	})

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	j := fake.Jobs["j-1"]
	if j.Status != model.JobPending {
		t.Fatalf("job status = %s, want pending", j.Status)
	}
	if j.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", j.Attempts)
	}
	if !j.RunAt.After(time.Now()) {
		t.Error("retry should be scheduled in the future")
	}
	if j.LastError != "downstream unavailable" {
		t.Errorf("last error = %q", j.LastError)
	}
}

func TestRunner_BuriesExhaustedJob(t *testing.T) {
	fake := storetest.NewFake()
	fake.Jobs["j-1"] = pendingJob("j-1", "test.kind", 2, 3)

	r := NewRunner(fake, 1, time.Millisecond, time.Second, testLogger())
	r.Register("test.kind", func(ctx context.Context, job *model.Job) error {
		return errors.New("still broken")
	})

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	j := fake.Jobs["j-1"]
	if j.Status != model.JobDead {
		t.Fatalf("job status = %s, want dead", j.Status)
	}
	if j.LastError == "" {
		t.Error("dead job should record the final error")
	}
}

func TestRunner_UnknownKindRetries(t *testing.T) {
	fake := storetest.NewFake()
	fake.Jobs["j-1"] = pendingJob("j-1", "mystery.kind", 0, 3)

	r := NewRunner(fake, 1, time.Millisecond, time.Second, testLogger())

	if _, err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if got := fake.Jobs["j-1"].Status; got != model.JobPending {
		t.Errorf("job status = %s, want pending", got)
	}
}

func TestRunner_StartStop(t *testing.T) {
	fake := storetest.NewFake()
	fake.Jobs["j-1"] = pendingJob("j-1", "test.kind", 0, 3)

	r := NewRunner(fake, 2, 5*time.Millisecond, time.Second, testLogger())

	done := make(chan struct{})
	r.Register("test.kind", func(ctx context.Context, job *model.Job) error {
		select {
		case <-done:
		default:
			close(done)
		}
		return nil
	})

	r.Start()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the runner to pick up the job")
	}
	r.Stop()
}

func TestBackoff(t *testing.T) {
	for _, tc := range []struct {
		attempt int
		want    time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, 5 * time.Minute},
	} {
		if got := Backoff(tc.attempt); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestExhaustedError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := &ExhaustedError{JobID: "j-1", Kind: "test.kind", Attempts: 3, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("ExhaustedError should unwrap to its cause")
	}
}
