package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/hrstack/authhub/internal/domain/job"
	"github.com/hrstack/authhub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EmailJobsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewEmailJobsRepo(pool *pgxpool.Pool, prom *observability.Prom) *EmailJobsRepo {
	return &EmailJobsRepo{pool: pool, prom: prom}
}

func (r *EmailJobsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

const insertJobSQL = `INSERT INTO email_jobs(
	 id, type, payload, status, attempts, max_attempts, run_at,
	 locked_at, locked_by, last_error, idempotency_key, created_at, updated_at
	 ) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13
	 )
	 ON CONFLICT (idempotency_key) DO UPDATE
	 SET payload = EXCLUDED.payload,
	     status = 'pending',
	     attempts = 0,
	     run_at = EXCLUDED.run_at,
	     locked_at = NULL,
	     locked_by = NULL,
	     last_error = NULL,
	     updated_at = NOW()
	 WHERE email_jobs.status <> 'processing'`

// Create enqueues a dispatch job. The idempotency key holds one outstanding
// job per account and purpose; re-enqueueing (resend) swaps in the newest
// payload instead of stacking duplicates.
func (r *EmailJobsRepo) Create(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)
	op := "email_jobs.create"

	var err error

	err = r.observe(op, func() error {
		_, err = r.pool.Exec(ctx, insertJobSQL,
			j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts, j.RunAt,
			j.LockedAt, j.LockedBy, j.LastError, j.IdempotencyKey, j.CreatedAt, j.UpdatedAt)
		return err
	})

	if err != nil {
		return job.Job{}, err
	}

	return j, nil
}

// CreateTx is the same enqueue inside the caller's transaction, used by
// registration so the account row and its verification mail commit together.
func (r *EmailJobsRepo) CreateTx(ctx context.Context, tx pgx.Tx, req job.CreateRequest) (job.Job, error) {
	j := job.New(req)
	op := "email_jobs.create_tx"

	var err error

	err = r.observe(op, func() error {
		_, err = tx.Exec(ctx, insertJobSQL,
			j.ID, j.Type, j.Payload, string(j.Status), j.Attempts, j.MaxAttempts, j.RunAt,
			j.LockedAt, j.LockedBy, j.LastError, j.IdempotencyKey, j.CreatedAt, j.UpdatedAt)
		return err
	})

	if err != nil {
		return job.Job{}, err
	}

	return j, nil
}

// ClaimNext grabs one runnable job using the SKIP LOCKED pattern, so multiple
// workers never fight over a row.
func (r *EmailJobsRepo) ClaimNext(ctx context.Context, workerID string) (job.Job, error) {
	var j job.Job
	var status string
	var err error

	op := "email_jobs.claim_next"

	err = r.observe(op, func() error {
		return r.pool.QueryRow(ctx, `
		WITH next AS (
			SELECT id
			FROM email_jobs
			WHERE status = 'pending'
			  AND run_at <= NOW()
			  AND attempts < max_attempts
			ORDER BY run_at ASC, created_at ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		UPDATE email_jobs
		SET status = 'processing',
		    locked_at = NOW(),
		    locked_by = $1,
		    updated_at = NOW()
		WHERE id = (SELECT id FROM next)
		RETURNING id, type, payload, status,
		          attempts, max_attempts,
		          run_at, locked_at, locked_by,
		          last_error, idempotency_key, created_at, updated_at
	`, workerID).Scan(
			&j.ID, &j.Type, &j.Payload, &status,
			&j.Attempts, &j.MaxAttempts,
			&j.RunAt, &j.LockedAt, &j.LockedBy,
			&j.LastError, &j.IdempotencyKey, &j.CreatedAt, &j.UpdatedAt,
		)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrJobNotFound // nothing ready to run
		}
		return job.Job{}, err
	}

	j.Status = job.Status(status)
	return j, nil
}

func (r *EmailJobsRepo) MarkDone(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	var err error
	op := "email_jobs.mark_done"

	err = r.observe(op, func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE email_jobs
		SET status = 'done',
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = NULL,
		    updated_at = NOW()
		WHERE id = $1
	`, id)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return job.ErrJobNotFound
	}
	return nil
}

func (r *EmailJobsRepo) MarkFailed(ctx context.Context, id string, errMsg string) error {
	var tag pgconn.CommandTag
	var err error
	op := "email_jobs.mark_failed"

	err = r.observe(op, func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE email_jobs
		SET status = 'failed',
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $2,
		    updated_at = NOW()
		WHERE id = $1
	`, id, errMsg)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return job.ErrJobNotFound
	}
	return nil
}

// Reschedule returns a job to pending with a bumped attempt count, used by
// the worker's retry/backoff path.
func (r *EmailJobsRepo) Reschedule(ctx context.Context, id string, runAt time.Time, errMsg string) error {
	var tag pgconn.CommandTag
	var err error
	op := "email_jobs.reschedule"

	err = r.observe(op, func() error {
		tag, err = r.pool.Exec(ctx, `
		UPDATE email_jobs
		SET status = 'pending',
		    attempts = attempts + 1,
		    run_at = $2,
		    locked_at = NULL,
		    locked_by = NULL,
		    last_error = $3,
		    updated_at = NOW()
		WHERE id = $1
	`, id, runAt, errMsg)
		return err
	})

	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return job.ErrJobNotFound
	}
	return nil
}

func (r *EmailJobsRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
