package postgres

import (
	"context"

	"github.com/hrstack/authhub/internal/domain/account"
	"github.com/hrstack/authhub/internal/domain/job"
	"github.com/hrstack/authhub/internal/jobs"
)

// RegistrationStore couples the account insert with the verification-mail
// enqueue in one transaction. Either both rows commit or neither does, so a
// registered account is never left without a queued notification.
type RegistrationStore struct {
	accounts *AccountsRepo
	jobs     *EmailJobsRepo
}

func NewRegistrationStore(accounts *AccountsRepo, jobs *EmailJobsRepo) *RegistrationStore {
	return &RegistrationStore{accounts: accounts, jobs: jobs}
}

func (s *RegistrationStore) CreateWithJob(ctx context.Context, a account.Account, req job.CreateRequest) (created account.Account, err error) {
	tx, err := s.accounts.BeginTx(ctx)

	if err != nil {
		return
	}

	defer func() { _ = tx.Rollback(ctx) }()

	created, err = s.accounts.CreateTx(ctx, tx, a)

	if err != nil {
		return
	}

	// The payload and idempotency key need the assigned account id.
	req, err = jobs.BindAccountID(req, created.ID)

	if err != nil {
		created = account.Account{}
		return
	}

	_, err = s.jobs.CreateTx(ctx, tx, req)

	if err != nil {
		created = account.Account{}
		return
	}

	err = tx.Commit(ctx)

	if err != nil {
		created = account.Account{}
	}

	return
}
