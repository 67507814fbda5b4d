/**
 * @description
 * Ledger account registry bootstrap. The fixed set of system bookkeeping
 * accounts is seeded once per deployment; the create-if-absent-by-name
 * semantics make repeated runs no-ops, so the initializer is safe to call on
 * every start.
 */

package app

import (
	"context"
	"log"

	"github.com/transpareo/banking-service/internal/domain"
)

// ledgerAccountSeeds is the fixed set of system accounts. The registry never
// grows at runtime.
var ledgerAccountSeeds = []struct {
	Name string
	Type string
}{
	{domain.LedgerPlatformBank, domain.LedgerTypeAsset},
	{domain.LedgerPlatformFees, domain.LedgerTypeRevenue},
	{domain.LedgerClearingStripe, domain.LedgerTypeAsset},
	{domain.LedgerClearingPlaid, domain.LedgerTypeAsset},
	{domain.LedgerPlatformCapital, domain.LedgerTypeEquity},
}

// InitializeLedgerAccounts ensures every system ledger account exists exactly
// once. Idempotent; logs created vs already-existing accounts.
func (s *Service) InitializeLedgerAccounts(ctx context.Context) error {
	for _, seed := range ledgerAccountSeeds {
		created, err := s.repo.CreateLedgerAccountIfAbsent(ctx, seed.Name, seed.Type, domain.CurrencyEUR)
		if err != nil {
			return err
		}
		if created {
			log.Printf("level=info component=ledger_bootstrap msg=\"ledger account created\" name=%s type=%s", seed.Name, seed.Type)
		} else {
			log.Printf("level=info component=ledger_bootstrap msg=\"ledger account already present\" name=%s", seed.Name)
		}
	}
	return nil
}
