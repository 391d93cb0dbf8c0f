package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hrstack/authhub/internal/domain/account"
)

func TestCreate_ExactlyOneWinner(t *testing.T) {
	repo := NewAccountsRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	const n = 64

	var wg sync.WaitGroup
	results := make(chan error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Mixed-case inputs all normalize to the same account.
			a := account.New("Jane Doe", "Jane@X.com", "hash", account.RoleEmployee, now)
			_, err := repo.Create(ctx, a)
			results <- err
		}()
	}

	wg.Wait()
	close(results)

	var wins, duplicates int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, account.ErrDuplicateEmail):
			duplicates++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if wins != 1 {
		t.Fatalf("got %d winners, want exactly 1", wins)
	}
	if duplicates != n-1 {
		t.Fatalf("got %d duplicates, want %d", duplicates, n-1)
	}
}

func TestGetByEmail_Normalizes(t *testing.T) {
	repo := NewAccountsRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.Create(ctx, account.New("Jane Doe", "JANE@x.com", "hash", account.RoleEmployee, now)); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	for _, email := range []string{"jane@x.com", "JANE@X.COM", " Jane@x.com "} {
		if _, err := repo.GetByEmail(ctx, email); err != nil {
			t.Errorf("GetByEmail(%q) error: %v", email, err)
		}
	}

	if _, err := repo.GetByEmail(ctx, "john@x.com"); !errors.Is(err, account.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMarkVerified_OneWay(t *testing.T) {
	repo := NewAccountsRepo()
	ctx := context.Background()
	now := time.Now().UTC()

	created, err := repo.Create(ctx, account.New("Jane Doe", "jane@x.com", "hash", account.RoleEmployee, now))
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := repo.MarkVerified(ctx, created.ID); err != nil {
		t.Fatalf("MarkVerified error: %v", err)
	}

	if err := repo.MarkVerified(ctx, created.ID); !errors.Is(err, account.ErrAlreadyVerified) {
		t.Fatalf("second MarkVerified = %v, want ErrAlreadyVerified", err)
	}

	got, err := repo.GetByEmail(ctx, "jane@x.com")
	if err != nil {
		t.Fatalf("GetByEmail error: %v", err)
	}
	if !got.Verified {
		t.Fatal("expected verified=true")
	}
}
