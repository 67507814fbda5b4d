/**
 * @description
 * This file contains the core business logic for the banking-service. The
 * `Service` struct orchestrates every money movement: wallet provisioning,
 * deposits, and — centrally — outbound transfers to saved beneficiaries.
 *
 * A transfer runs through a fixed sequence: second-factor gate, transfer limit
 * guard, then one atomic store unit that re-validates the balance under a row
 * lock, debits the wallet, appends the immutable transaction record, and posts
 * the offsetting system ledger entry. Audit events are emitted best-effort
 * around every outcome.
 *
 * @dependencies
 * - context, errors, log: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/transpareo/banking-service/internal/domain"
	"github.com/transpareo/banking-service/internal/store"
)

// Default transfer caps, in cents. Overridable via configuration.
const (
	DefaultDailyTransferLimit  = 200_000   // 2,000 EUR
	DefaultWeeklyTransferLimit = 1_000_000 // 10,000 EUR
)

const technicalErrorMessage = "a technical error occurred, please try again later"

// ServiceOptions carries the tunable policy values for the service.
type ServiceOptions struct {
	DailyTransferLimit      int64
	WeeklyTransferLimit     int64
	TwoFactorMaxAttempts    int
	TwoFactorLockoutSeconds int
	TOTPIssuer              string
}

// Service provides the core business logic for the wallet transfer engine.
type Service struct {
	repo  store.Repository
	audit *SecurityLogger

	dailyLimit              int64
	weeklyLimit             int64
	twoFactorMaxAttempts    int
	twoFactorLockoutSeconds int
	totpIssuer              string

	rateLimiter                *RedisTransferRateLimiter
	transferRateLimitPerMinute int

	// now is swappable so window math is testable.
	now func() time.Time
}

// SetTransferRateLimiter attaches an optional Redis-backed throttle on
// transfer attempts. When unset, throttling is skipped entirely.
func (s *Service) SetTransferRateLimiter(limiter *RedisTransferRateLimiter, perMinute int) {
	s.rateLimiter = limiter
	s.transferRateLimitPerMinute = perMinute
}

// NewService creates a new banking service instance.
func NewService(repo store.Repository, audit *SecurityLogger, opts ServiceOptions) *Service {
	if opts.DailyTransferLimit <= 0 {
		opts.DailyTransferLimit = DefaultDailyTransferLimit
	}
	if opts.WeeklyTransferLimit <= 0 {
		opts.WeeklyTransferLimit = DefaultWeeklyTransferLimit
	}
	if opts.TwoFactorMaxAttempts <= 0 {
		opts.TwoFactorMaxAttempts = 5
	}
	if opts.TwoFactorLockoutSeconds <= 0 {
		opts.TwoFactorLockoutSeconds = 600
	}
	if opts.TOTPIssuer == "" {
		opts.TOTPIssuer = "Transpareo"
	}
	return &Service{
		repo:                    repo,
		audit:                   audit,
		dailyLimit:              opts.DailyTransferLimit,
		weeklyLimit:             opts.WeeklyTransferLimit,
		twoFactorMaxAttempts:    opts.TwoFactorMaxAttempts,
		twoFactorLockoutSeconds: opts.TwoFactorLockoutSeconds,
		totpIssuer:              opts.TOTPIssuer,
		now:                     time.Now,
	}
}

// ResolveInternalUserID converts an auth-provider subject from a validated JWT
// into the internal UUID used by the database.
func (s *Service) ResolveInternalUserID(ctx context.Context, subject string) (uuid.UUID, error) {
	return s.repo.FindUserIDBySubject(ctx, subject)
}

// CreateWallet provisions the user's wallet when onboarding completes. The
// display IBAN/BIC are generated exactly once; calling again for a user who
// already owns a wallet returns the existing one.
func (s *Service) CreateWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	existing, err := s.repo.FindWalletByUserID(ctx, userID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrWalletNotFound) {
		return nil, err
	}

	iban, err := generateIBAN()
	if err != nil {
		return nil, fmt.Errorf("failed to generate wallet iban: %w", err)
	}
	wallet := &domain.Wallet{
		ID:       uuid.New(),
		UserID:   userID,
		Balance:  0,
		Currency: domain.CurrencyEUR,
		IBAN:     iban,
		BIC:      walletBIC,
	}
	if err := s.repo.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}
	log.Printf("level=info component=service msg=\"wallet created\" user_id=%s wallet_id=%s", userID, wallet.ID)
	return wallet, nil
}

// GetWallet retrieves the caller's wallet.
func (s *Service) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	return s.repo.FindWalletByUserID(ctx, userID)
}

// ListTransactions retrieves the caller's transaction history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	wallet, err := s.repo.FindWalletByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.FindTransactionsByWalletID(ctx, wallet.ID, opts)
}

// TransferFunds executes an outbound transfer to a saved beneficiary as one
// all-or-nothing operation, optionally gated by a second factor. It never
// returns an error: every outcome, including technical failures, is reported
// through the discriminated TransferResult so callers can render specific
// messages without parsing exceptions.
func (s *Service) TransferFunds(ctx context.Context, userID uuid.UUID, meta domain.RequestMetadata, req domain.TransferRequest) domain.TransferResult {
	if req.Amount <= 0 {
		return domain.TransferResult{Error: "amount must be positive", Code: domain.CodeInvalidRequest}
	}

	if s.rateLimiter != nil && s.transferRateLimitPerMinute > 0 {
		count, retryAfter, err := s.rateLimiter.ConsumeRateLimit(ctx, "transfer", userID.String(), s.transferRateLimitPerMinute, time.Minute)
		if err != nil {
			// Redis being down must not halt money movement; log and continue.
			log.Printf("level=warn component=service msg=\"transfer rate limiter unavailable\" user_id=%s err=%v", userID, err)
		} else if count > s.transferRateLimitPerMinute {
			return domain.TransferResult{
				Error: fmt.Sprintf("too many transfer attempts, retry in %ds", retryAfter),
				Code:  domain.CodeRateLimited,
			}
		}
	}

	beneficiary, err := s.repo.FindBeneficiaryByID(ctx, req.BeneficiaryID, userID)
	if err != nil {
		if errors.Is(err, store.ErrBeneficiaryNotFound) {
			return domain.TransferResult{Error: "beneficiary not found", Code: domain.CodeInvalidBeneficiary}
		}
		return s.technicalFailure(ctx, userID, meta, "beneficiary lookup failed", err)
	}
	if beneficiary.Status != domain.BeneficiaryStatusActive {
		return domain.TransferResult{Error: "beneficiary is inactive", Code: domain.CodeInvalidBeneficiary}
	}

	outcome, err := s.gateTwoFactor(ctx, userID, req.TwoFactorCode, meta)
	if err != nil {
		return s.technicalFailure(ctx, userID, meta, "two-factor gate failed", err)
	}
	switch outcome {
	case twoFactorRequired:
		return domain.TransferResult{Error: "2FA requis", Code: domain.CodeTwoFactorRequired, Requires2FA: true}
	case twoFactorInvalid:
		return domain.TransferResult{Error: "invalid two-factor code", Code: domain.CodeInvalidTwoFactorCode}
	case twoFactorLocked:
		return domain.TransferResult{Error: "too many invalid codes, try again later", Code: domain.CodeTwoFactorLocked}
	}

	allowed, code, msg, err := s.checkTransferLimits(ctx, userID, req.Amount)
	if err != nil {
		return s.technicalFailure(ctx, userID, meta, "limit check failed", err)
	}
	if !allowed {
		return domain.TransferResult{Error: msg, Code: code}
	}

	record := &domain.Transaction{
		ID:     uuid.New(),
		Type:   domain.TxTypeWithdrawal,
		Status: domain.TxStatusCompleted,
		Amount: req.Amount,
		Metadata: map[string]string{
			"beneficiary_id":   beneficiary.ID.String(),
			"beneficiary_name": beneficiary.Name,
			"beneficiary_iban": beneficiary.IBAN,
		},
	}
	if err := s.repo.WithdrawFunds(ctx, userID, record); err != nil {
		// Concurrent debits may drain the balance between the guard check and
		// the commit-time re-validation; that is a policy rejection, not a
		// technical fault.
		if errors.Is(err, store.ErrInsufficientFunds) || errors.Is(err, store.ErrWalletNotFound) {
			s.audit.LogSecurityEvent(ctx, userID, domain.ActionTransferOut, domain.EventStatusFailed, meta, map[string]string{
				"reason":         "insufficient balance at commit",
				"amount":         formatCents(req.Amount),
				"beneficiary_id": beneficiary.ID.String(),
			})
			return domain.TransferResult{Error: "insufficient balance", Code: domain.CodeInsufficientBalance}
		}
		return s.technicalFailure(ctx, userID, meta, "withdraw unit failed", err)
	}

	s.audit.LogSecurityEvent(ctx, userID, domain.ActionTransferOut, domain.EventStatusSuccess, meta, map[string]string{
		"transaction_id": record.ID.String(),
		"amount":         formatCents(req.Amount),
		"beneficiary_id": beneficiary.ID.String(),
	})

	return domain.TransferResult{Success: true, Transaction: record}
}

// technicalFailure logs full detail internally, records a failed audit event,
// and surfaces a generic message so no persistence detail leaks to callers.
func (s *Service) technicalFailure(ctx context.Context, userID uuid.UUID, meta domain.RequestMetadata, msg string, err error) domain.TransferResult {
	log.Printf("level=error component=service msg=%q user_id=%s err=%v", msg, userID, err)
	s.audit.LogSecurityEvent(ctx, userID, domain.ActionTransferOut, domain.EventStatusFailed, meta, map[string]string{
		"reason": msg,
	})
	return domain.TransferResult{Error: technicalErrorMessage, Code: domain.CodeTechnicalError}
}

// DepositFunds credits the wallet from an external settlement flow (card
// top-up, inbound bank transfer) and appends the matching transaction record
// atomically.
func (s *Service) DepositFunds(ctx context.Context, userID uuid.UUID, meta domain.RequestMetadata, req domain.DepositRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, errors.New("amount must be positive")
	}

	record := &domain.Transaction{
		ID:     uuid.New(),
		Type:   domain.TxTypeDeposit,
		Status: domain.TxStatusCompleted,
		Amount: req.Amount,
		Metadata: map[string]string{
			"reference": req.Reference,
		},
	}
	if err := s.repo.DepositFunds(ctx, userID, record); err != nil {
		s.audit.LogSecurityEvent(ctx, userID, domain.ActionDeposit, domain.EventStatusFailed, meta, map[string]string{
			"amount": formatCents(req.Amount),
		})
		return nil, err
	}

	s.audit.LogSecurityEvent(ctx, userID, domain.ActionDeposit, domain.EventStatusSuccess, meta, map[string]string{
		"transaction_id": record.ID.String(),
		"amount":         formatCents(req.Amount),
	})
	return record, nil
}

// AddBeneficiary registers a new external payout target for the caller,
// gated by the second factor. The IBAN is normalized (uppercase, whitespace
// stripped) and checksum-validated before persistence.
func (s *Service) AddBeneficiary(ctx context.Context, userID uuid.UUID, meta domain.RequestMetadata, req domain.NewBeneficiaryRequest) domain.BeneficiaryResult {
	name := strings.TrimSpace(req.Name)
	holder := strings.TrimSpace(req.Holder)
	if name == "" || holder == "" {
		return domain.BeneficiaryResult{Error: "name and holder are required"}
	}

	iban := domain.NormalizeIBAN(req.IBAN)
	if !validIBAN(iban) {
		return domain.BeneficiaryResult{Error: "invalid IBAN"}
	}
	bic := strings.ToUpper(strings.TrimSpace(req.BIC))
	if bic == "" {
		return domain.BeneficiaryResult{Error: "BIC is required"}
	}

	outcome, err := s.gateTwoFactor(ctx, userID, req.TwoFactorCode, meta)
	if err != nil {
		log.Printf("level=error component=service msg=\"two-factor gate failed\" user_id=%s err=%v", userID, err)
		return domain.BeneficiaryResult{Error: technicalErrorMessage}
	}
	switch outcome {
	case twoFactorRequired:
		return domain.BeneficiaryResult{Error: "2FA requis", Requires2FA: true}
	case twoFactorInvalid:
		return domain.BeneficiaryResult{Error: "invalid two-factor code"}
	case twoFactorLocked:
		return domain.BeneficiaryResult{Error: "too many invalid codes, try again later"}
	}

	beneficiary := &domain.Beneficiary{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
		Holder: holder,
		IBAN:   iban,
		BIC:    bic,
		Status: domain.BeneficiaryStatusActive,
	}
	if err := s.repo.CreateBeneficiary(ctx, beneficiary); err != nil {
		log.Printf("level=error component=service msg=\"beneficiary create failed\" user_id=%s err=%v", userID, err)
		s.audit.LogSecurityEvent(ctx, userID, domain.ActionBeneficiaryAdded, domain.EventStatusFailed, meta, nil)
		return domain.BeneficiaryResult{Error: technicalErrorMessage}
	}

	s.audit.LogSecurityEvent(ctx, userID, domain.ActionBeneficiaryAdded, domain.EventStatusSuccess, meta, map[string]string{
		"beneficiary_id": beneficiary.ID.String(),
		"iban":           iban,
	})
	return domain.BeneficiaryResult{Success: true, Beneficiary: beneficiary}
}

// ListBeneficiaries retrieves all of the caller's saved beneficiaries.
func (s *Service) ListBeneficiaries(ctx context.Context, userID uuid.UUID) ([]domain.Beneficiary, error) {
	return s.repo.FindBeneficiariesByUserID(ctx, userID)
}
