package app

import (
	"context"
	"testing"

	"github.com/transpareo/banking-service/internal/domain"
	"github.com/transpareo/banking-service/internal/store"
)

type ledgerRepoStub struct {
	store.Repository

	existing map[string]string // name -> type
	calls    int
}

func (s *ledgerRepoStub) CreateLedgerAccountIfAbsent(ctx context.Context, name, accountType, currency string) (bool, error) {
	s.calls++
	if _, ok := s.existing[name]; ok {
		return false, nil
	}
	s.existing[name] = accountType
	return true, nil
}

func TestInitializeLedgerAccountsIdempotent(t *testing.T) {
	repo := &ledgerRepoStub{existing: make(map[string]string)}
	svc := NewService(repo, NewSecurityLogger(repo, "security_events"), ServiceOptions{})

	if err := svc.InitializeLedgerAccounts(context.Background()); err != nil {
		t.Fatalf("unexpected error on first run: %v", err)
	}
	if len(repo.existing) != len(ledgerAccountSeeds) {
		t.Fatalf("expected %d accounts seeded, got %d", len(ledgerAccountSeeds), len(repo.existing))
	}
	if got := repo.existing[domain.LedgerPlatformBank]; got != domain.LedgerTypeAsset {
		t.Fatalf("expected %s to be an asset account, got %q", domain.LedgerPlatformBank, got)
	}
	if got := repo.existing[domain.LedgerPlatformFees]; got != domain.LedgerTypeRevenue {
		t.Fatalf("expected %s to be a revenue account, got %q", domain.LedgerPlatformFees, got)
	}

	// A second run must not create anything new.
	before := len(repo.existing)
	if err := svc.InitializeLedgerAccounts(context.Background()); err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}
	if len(repo.existing) != before {
		t.Fatalf("expected no new accounts on rerun, got %d vs %d", len(repo.existing), before)
	}
	if repo.calls != 2*len(ledgerAccountSeeds) {
		t.Fatalf("expected %d upsert calls, got %d", 2*len(ledgerAccountSeeds), repo.calls)
	}
}
