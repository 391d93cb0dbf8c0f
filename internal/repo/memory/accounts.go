// Package memory holds an in-process AccountsRepo with the same uniqueness
// discipline as the postgres one: the store itself is the arbiter for
// concurrent registrations, not any caller-side pre-check.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/hrstack/authhub/internal/domain/account"
	"github.com/hrstack/authhub/internal/domain/job"
	"github.com/hrstack/authhub/internal/jobs"
)

type AccountsRepo struct {
	mu      sync.Mutex
	nextID  int64
	byEmail map[string]account.Account
	jobs    []job.Job
}

func NewAccountsRepo() *AccountsRepo {
	return &AccountsRepo{
		nextID:  1,
		byEmail: make(map[string]account.Account),
	}
}

// Create inserts the account if the email is free. Check and insert happen
// under one lock, so with N concurrent identical registrations exactly one
// wins and the rest get account.ErrDuplicateEmail.
func (r *AccountsRepo) Create(ctx context.Context, a account.Account) (account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[a.Email]; exists {
		return account.Account{}, account.ErrDuplicateEmail
	}

	a.ID = r.nextID
	r.nextID++
	r.byEmail[a.Email] = a

	return a, nil
}

// CreateWithJob mirrors the postgres transactional registration: account row
// and queued verification mail land together or not at all.
func (r *AccountsRepo) CreateWithJob(ctx context.Context, a account.Account, req job.CreateRequest) (account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byEmail[a.Email]; exists {
		return account.Account{}, account.ErrDuplicateEmail
	}

	a.ID = r.nextID
	r.nextID++
	r.byEmail[a.Email] = a

	req, err := jobs.BindAccountID(req, a.ID)

	if err != nil {
		delete(r.byEmail, a.Email)
		r.nextID--
		return account.Account{}, err
	}

	r.jobs = append(r.jobs, job.New(req))

	return a, nil
}

func (r *AccountsRepo) GetByEmail(ctx context.Context, email string) (account.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byEmail[account.NormalizeEmail(email)]

	if !ok {
		return account.Account{}, account.ErrNotFound
	}

	return a, nil
}

func (r *AccountsRepo) UpdateOTP(ctx context.Context, id int64, code string, issuedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.findByID(id)

	if !ok {
		return account.ErrNotFound
	}

	r.byEmail[a.Email] = a.WithPendingOTP(code, issuedAt)
	return nil
}

func (r *AccountsRepo) MarkVerified(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.findByID(id)

	if !ok {
		return account.ErrNotFound
	}

	if a.Verified {
		return account.ErrAlreadyVerified
	}

	r.byEmail[a.Email] = a.MarkVerified(time.Now().UTC())
	return nil
}

func (r *AccountsRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.findByID(id)

	if !ok {
		return account.ErrNotFound
	}

	r.byEmail[a.Email] = a.WithPasswordHash(hash, time.Now().UTC())
	return nil
}

// Jobs returns a copy of the enqueued dispatch jobs, oldest first.
func (r *AccountsRepo) Jobs() []job.Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]job.Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}

// EnqueueJob lets the memory store double as the jobs queue in tests.
func (r *AccountsRepo) EnqueueJob(ctx context.Context, req job.CreateRequest) (job.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j := job.New(req)
	r.jobs = append(r.jobs, j)
	return j, nil
}

func (r *AccountsRepo) findByID(id int64) (account.Account, bool) {
	for _, a := range r.byEmail {
		if a.ID == id {
			return a, true
		}
	}
	return account.Account{}, false
}
