/**
 * @description
 * Transfer limit guard. Before any debit, the guard decides whether an outbound
 * transfer is permitted: the wallet must cover the amount, and the cumulative
 * completed transfer/withdrawal total must stay within the daily and weekly
 * caps. Windows are computed on read from the transactions table, so the guard
 * is always consistent with settled history and needs no reset job.
 *
 * The guard is purely read-then-decide; the authoritative balance check happens
 * again at commit time inside the store's atomic withdraw.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/transpareo/banking-service/internal/domain"
	"github.com/transpareo/banking-service/internal/store"
)

// CheckTransferLimits reports whether an outbound transfer of amount (cents) is
// permitted for the user right now. It has no side effects and is safe to call
// repeatedly.
func (s *Service) CheckTransferLimits(ctx context.Context, userID uuid.UUID, amount int64) (domain.LimitCheck, error) {
	allowed, _, msg, err := s.checkTransferLimits(ctx, userID, amount)
	if err != nil {
		return domain.LimitCheck{}, err
	}
	return domain.LimitCheck{Allowed: allowed, Error: msg}, nil
}

// checkTransferLimits is the internal variant carrying the failure code the
// orchestrator maps into its result taxonomy. A non-nil error is technical.
func (s *Service) checkTransferLimits(ctx context.Context, userID uuid.UUID, amount int64) (allowed bool, code string, msg string, err error) {
	if amount <= 0 {
		return false, domain.CodeInvalidRequest, "amount must be positive", nil
	}

	wallet, err := s.repo.FindWalletByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			return false, domain.CodeInsufficientBalance, "insufficient balance", nil
		}
		return false, "", "", err
	}
	if wallet.Balance < amount {
		return false, domain.CodeInsufficientBalance, "insufficient balance", nil
	}

	now := s.now()

	dayFrom := startOfDay(now)
	dailyTotal, err := s.repo.SumCompletedDebits(ctx, wallet.ID, dayFrom, dayFrom.AddDate(0, 0, 1))
	if err != nil {
		return false, "", "", err
	}
	if dailyTotal+amount > s.dailyLimit {
		return false, domain.CodeLimitExceeded,
			fmt.Sprintf("daily transfer limit of %s exceeded", formatCents(s.dailyLimit)), nil
	}

	weekFrom := startOfWeek(now)
	weeklyTotal, err := s.repo.SumCompletedDebits(ctx, wallet.ID, weekFrom, weekFrom.AddDate(0, 0, 7))
	if err != nil {
		return false, "", "", err
	}
	if weeklyTotal+amount > s.weeklyLimit {
		return false, domain.CodeLimitExceeded,
			fmt.Sprintf("weekly transfer limit of %s exceeded", formatCents(s.weeklyLimit)), nil
	}

	return true, "", "", nil
}

// startOfDay returns midnight of t's calendar day in t's location.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// startOfWeek returns midnight of the Monday starting t's ISO week.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

// formatCents renders a cent amount as a human-readable EUR value, e.g. "2000.00 EUR".
func formatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, domain.CurrencyEUR)
}
