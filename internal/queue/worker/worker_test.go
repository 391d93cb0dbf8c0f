package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/hrstack/authhub/internal/domain/job"
	"github.com/hrstack/authhub/internal/jobs"
	"github.com/hrstack/authhub/internal/notifications"
)

type fakeJobsRepo struct {
	queue       []job.Job
	done        []string
	failed      map[string]string
	rescheduled map[string]time.Time
}

func newFakeJobsRepo(js ...job.Job) *fakeJobsRepo {
	return &fakeJobsRepo{
		queue:       js,
		failed:      make(map[string]string),
		rescheduled: make(map[string]time.Time),
	}
}

func (f *fakeJobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	if len(f.queue) == 0 {
		return job.Job{}, job.ErrJobNotFound
	}
	j := f.queue[0]
	f.queue = f.queue[1:]
	return j, nil
}

func (f *fakeJobsRepo) MarkDone(ctx context.Context, id string) error {
	f.done = append(f.done, id)
	return nil
}

func (f *fakeJobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	f.failed[id] = errMsg
	return nil
}

func (f *fakeJobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	f.rescheduled[id] = runAt
	return nil
}

type recordingNotifier struct {
	verification []notifications.OTPEmailInput
	reset        []notifications.OTPEmailInput
	err          error
}

func (r *recordingNotifier) SendVerificationOTP(ctx context.Context, in notifications.OTPEmailInput) error {
	r.verification = append(r.verification, in)
	return r.err
}

func (r *recordingNotifier) SendPasswordResetOTP(ctx context.Context, in notifications.OTPEmailInput) error {
	r.reset = append(r.reset, in)
	return r.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustJob(t *testing.T, jt jobs.JobType, p jobs.OTPEmailPayload) job.Job {
	t.Helper()

	b, err := jobs.EncodePayload(jt, p)
	if err != nil {
		t.Fatalf("EncodePayload error: %v", err)
	}

	return job.New(job.CreateRequest{Type: string(jt), Payload: b, MaxAttempts: 3})
}

func TestProcessOne_DispatchesVerificationMail(t *testing.T) {
	j := mustJob(t, jobs.JobSendVerificationEmail, jobs.OTPEmailPayload{
		AccountID: 1, Email: "jane@x.com", FullName: "Jane Doe", Code: "123456",
	})

	repo := newFakeJobsRepo(j)
	notifier := &recordingNotifier{}
	w := New(Config{WorkerID: "test-1"}, repo, notifier, nil, nil, testLogger())

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}
	if !processed {
		t.Fatal("expected a job to be processed")
	}

	if len(notifier.verification) != 1 {
		t.Fatalf("verification mails = %d, want 1", len(notifier.verification))
	}
	if notifier.verification[0].Code != "123456" {
		t.Errorf("code = %q, want 123456", notifier.verification[0].Code)
	}
	if len(repo.done) != 1 || repo.done[0] != j.ID {
		t.Fatalf("done = %v, want [%s]", repo.done, j.ID)
	}
}

func TestProcessOne_RoutesResetMail(t *testing.T) {
	j := mustJob(t, jobs.JobSendPasswordResetEmail, jobs.OTPEmailPayload{
		AccountID: 2, Email: "john@x.com", Code: "654321",
	})

	repo := newFakeJobsRepo(j)
	notifier := &recordingNotifier{}
	w := New(Config{WorkerID: "test-1"}, repo, notifier, nil, nil, testLogger())

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}

	if len(notifier.reset) != 1 || len(notifier.verification) != 0 {
		t.Fatalf("reset=%d verification=%d, want 1/0", len(notifier.reset), len(notifier.verification))
	}
}

type hookNotifier struct {
	fn func(ctx context.Context) error
}

func (h *hookNotifier) SendVerificationOTP(ctx context.Context, in notifications.OTPEmailInput) error {
	return h.fn(ctx)
}

func (h *hookNotifier) SendPasswordResetOTP(ctx context.Context, in notifications.OTPEmailInput) error {
	return h.fn(ctx)
}

func TestProcessOne_InFlightJobSurvivesShutdownSignal(t *testing.T) {
	j := mustJob(t, jobs.JobSendVerificationEmail, jobs.OTPEmailPayload{
		AccountID: 1, Email: "jane@x.com", Code: "123456",
	})

	repo := newFakeJobsRepo(j)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var sendCtxErr error
	notifier := &hookNotifier{fn: func(sendCtx context.Context) error {
		// Shutdown arrives mid-send. The send context must stay live so the
		// claimed job can finish instead of aborting half way.
		cancel()
		sendCtxErr = sendCtx.Err()
		return nil
	}}

	w := New(Config{WorkerID: "test-1", ShutdownGrace: 5 * time.Second}, repo, notifier, nil, nil, testLogger())

	processed, err := w.ProcessOne(ctx)
	if err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}
	if !processed {
		t.Fatal("expected the claimed job to be processed")
	}
	if sendCtxErr != nil {
		t.Fatalf("send context died with the shutdown signal: %v", sendCtxErr)
	}
	if len(repo.done) != 1 || repo.done[0] != j.ID {
		t.Fatalf("done = %v, want [%s]", repo.done, j.ID)
	}
}

func TestProcessOne_EmptyQueue(t *testing.T) {
	repo := newFakeJobsRepo()
	w := New(Config{WorkerID: "test-1"}, repo, &recordingNotifier{}, nil, nil, testLogger())

	processed, err := w.ProcessOne(context.Background())
	if err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}
	if processed {
		t.Fatal("claimed a job from an empty queue")
	}
}

func TestProcessOne_ProviderFailureReschedules(t *testing.T) {
	j := mustJob(t, jobs.JobSendVerificationEmail, jobs.OTPEmailPayload{
		AccountID: 1, Email: "jane@x.com", Code: "123456",
	})

	repo := newFakeJobsRepo(j)
	notifier := &recordingNotifier{err: errors.New("provider down")}
	w := New(Config{WorkerID: "test-1"}, repo, notifier, nil, nil, testLogger())

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}

	runAt, ok := repo.rescheduled[j.ID]
	if !ok {
		t.Fatal("expected job to be rescheduled")
	}
	if !runAt.After(time.Now().UTC().Add(time.Second)) {
		t.Errorf("runAt %v not pushed into the future", runAt)
	}
	if len(repo.done) != 0 {
		t.Fatal("failed job marked done")
	}
}

func TestProcessOne_ExhaustedAttemptsDeadLetter(t *testing.T) {
	j := mustJob(t, jobs.JobSendVerificationEmail, jobs.OTPEmailPayload{
		AccountID: 1, Email: "jane@x.com", Code: "123456",
	})
	j.Attempts = j.MaxAttempts - 1

	repo := newFakeJobsRepo(j)
	notifier := &recordingNotifier{err: errors.New("provider down")}
	w := New(Config{WorkerID: "test-1"}, repo, notifier, nil, nil, testLogger())

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}

	if _, ok := repo.failed[j.ID]; !ok {
		t.Fatal("expected job to be dead-lettered")
	}
	if _, ok := repo.rescheduled[j.ID]; ok {
		t.Fatal("exhausted job was rescheduled")
	}
}

func TestProcessOne_MalformedPayloadFailsFast(t *testing.T) {
	j := job.New(job.CreateRequest{
		Type:        string(jobs.JobSendVerificationEmail),
		Payload:     []byte(`{"accountId": "not-a-number"}`),
		MaxAttempts: 5,
	})

	repo := newFakeJobsRepo(j)
	w := New(Config{WorkerID: "test-1"}, repo, &recordingNotifier{}, nil, nil, testLogger())

	if _, err := w.ProcessOne(context.Background()); err != nil {
		t.Fatalf("ProcessOne error: %v", err)
	}

	if _, ok := repo.failed[j.ID]; !ok {
		t.Fatal("malformed payload should dead-letter immediately")
	}
	if _, ok := repo.rescheduled[j.ID]; ok {
		t.Fatal("malformed payload should not be retried")
	}
}

func TestExponentialBackoff_GrowsAndCaps(t *testing.T) {
	prev := time.Duration(0)

	for attempt := 0; attempt < 6; attempt++ {
		d := ExponentialBackoff(attempt)
		if d < prev {
			t.Fatalf("backoff shrank at attempt %d: %v < %v", attempt, d, prev)
		}
		prev = d
	}

	if d := ExponentialBackoff(30); d > 5*time.Minute+time.Second {
		t.Fatalf("backoff exceeds cap: %v", d)
	}
}
