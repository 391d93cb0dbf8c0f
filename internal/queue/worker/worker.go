package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hrstack/authhub/internal/domain/job"
	"github.com/hrstack/authhub/internal/jobs"
	"github.com/hrstack/authhub/internal/notifications"
	"github.com/hrstack/authhub/internal/observability"
)

type JobsRepository interface {
	ClaimNext(ctx context.Context, workerID string) (job.Job, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, errMsg string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error
}

// Nudger is the optional redis doorbell. When nil the worker just polls.
type Nudger interface {
	WaitNudge(ctx context.Context, timeout time.Duration) (bool, error)
}

type Config struct {
	PollInterval  time.Duration
	WorkerID      string
	ShutdownGrace time.Duration
}

type Worker struct {
	cfg      Config
	repo     JobsRepository
	notifier notifications.Notifier
	nudger   Nudger
	prom     *observability.Prom
	log      *slog.Logger

	readyMu sync.RWMutex
	ready   bool
}

func New(cfg Config, repo JobsRepository, notifier notifications.Notifier, nudger Nudger, prom *observability.Prom, log *slog.Logger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}

	return &Worker{
		cfg:      cfg,
		repo:     repo,
		notifier: notifier,
		nudger:   nudger,
		prom:     prom,
		log:      log,
	}
}

// Run drains the queue until ctx is cancelled. Between drains it blocks on
// the redis doorbell when one is wired, falling back to the poll interval.
func (w *Worker) Run(ctx context.Context) error {
	w.setReady(true)
	defer w.setReady(false)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker received shutdown signal")
			return nil
		default:
		}

		processed, err := w.ProcessOne(ctx)

		if err != nil {
			w.log.Error("process job", "err", err)
		}

		if processed {
			// keep draining while there is work
			continue
		}

		w.wait(ctx)
	}
}

func (w *Worker) wait(ctx context.Context) {
	if w.nudger != nil {
		if _, err := w.nudger.WaitNudge(ctx, w.cfg.PollInterval); err != nil && ctx.Err() == nil {
			w.log.Warn("wake-up wait failed, falling back to poll", "err", err)
		} else {
			return
		}
	}

	select {
	case <-ctx.Done():
	case <-time.After(w.cfg.PollInterval):
	}
}

// ProcessOne claims and executes a single job. The bool reports whether a job
// was available at all.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	claimCtx, cancel := context.WithTimeout(ctx, 2*time.Second)

	j, err := w.repo.ClaimNext(claimCtx, w.cfg.WorkerID)
	cancel()

	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			return false, nil
		}

		return false, err
	}

	if w.prom != nil {
		w.prom.JobsInFlight.Inc()
		defer w.prom.JobsInFlight.Dec()
	}

	// A claimed job runs to completion. Execution is detached from the
	// shutdown signal and bounded by ShutdownGrace instead, so SIGTERM
	// never aborts a half-sent mail; the claim above still stops the loop.
	execCtx, cancelExec := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.ShutdownGrace)
	defer cancelExec()

	start := time.Now()
	err = w.execute(execCtx, j)

	if err != nil {
		w.observe(j.Type, start, w.handleFailure(execCtx, j, err))
		return true, nil
	}

	err = w.repo.MarkDone(execCtx, j.ID)

	if err != nil {
		_ = w.repo.MarkFailed(execCtx, j.ID, "mark_done_failed: "+err.Error())
		w.observe(j.Type, start, "failed")
		return true, err
	}

	w.observe(j.Type, start, "done")
	return true, nil
}

func (w *Worker) execute(ctx context.Context, j job.Job) error {
	payload, err := jobs.DecodePayload(j)

	if err != nil {
		return err
	}

	t := jobs.JobType(j.Type)

	if err := jobs.ValidatePayload(t, payload); err != nil {
		return err
	}

	in := notifications.OTPEmailInput{
		Email:    payload.Email,
		FullName: payload.FullName,
		Code:     payload.Code,
	}

	switch t {
	case jobs.JobSendVerificationEmail:
		return w.notifier.SendVerificationOTP(ctx, in)
	case jobs.JobSendPasswordResetEmail:
		return w.notifier.SendPasswordResetOTP(ctx, in)
	default:
		return jobs.ErrInvalidJobType
	}
}

// handleFailure decides between retry and dead-lettering and returns the
// metric result label.
func (w *Worker) handleFailure(ctx context.Context, j job.Job, cause error) string {
	// Malformed payloads never become sendable; retrying burns attempts
	// for nothing.
	permanent := errors.Is(cause, jobs.ErrInvalidJobPayload) ||
		errors.Is(cause, jobs.ErrInvalidJobType)

	if permanent || j.Attempts+1 >= j.MaxAttempts {
		if err := w.repo.MarkFailed(ctx, j.ID, cause.Error()); err != nil {
			w.log.Error("mark failed", "job_id", j.ID, "err", err)
		}

		w.log.Warn("job dead-lettered",
			"job_id", j.ID, "job_type", j.Type, "attempts", j.Attempts+1, "cause", cause)
		return "failed"
	}

	runAt := time.Now().UTC().Add(ExponentialBackoff(j.Attempts))

	if err := w.repo.Reschedule(ctx, j.ID, runAt, cause.Error()); err != nil {
		w.log.Error("reschedule", "job_id", j.ID, "err", err)
	}

	w.log.Info("job rescheduled",
		"job_id", j.ID, "job_type", j.Type, "attempt", j.Attempts+1,
		"run_at", runAt.Format(time.RFC3339), "cause", fmt.Sprint(cause))
	return "retry"
}

func (w *Worker) observe(jobType string, start time.Time, result string) {
	if w.prom == nil {
		return
	}

	w.prom.JobResults.WithLabelValues(jobType, result).Inc()
	w.prom.JobDuration.WithLabelValues(jobType, result).Observe(time.Since(start).Seconds())
}

func (w *Worker) setReady(v bool) {
	w.readyMu.Lock()
	w.ready = v
	w.readyMu.Unlock()
}
