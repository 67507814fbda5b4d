/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the banking-service. By defining an interface,
 * we decouple the application's business logic from the specific database
 * implementation (PostgreSQL), making the code modular and easy to test with stubs.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/transpareo/banking-service/internal/domain"
)

// OutboxMessage is one claimed row from the security-alert outbox, ready to be
// published to the message broker.
type OutboxMessage struct {
	ID         int64
	Exchange   string
	RoutingKey string
	Payload    []byte
	Attempts   int
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// User methods
	FindUserIDBySubject(ctx context.Context, subject string) (uuid.UUID, error)

	// Wallet methods
	CreateWallet(ctx context.Context, wallet *domain.Wallet) error
	FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// WithdrawFunds debits the wallet, inserts the transaction record, and posts
	// the offsetting system ledger entry as one atomic unit. Balance
	// sufficiency is re-validated under the row lock; the whole unit rolls back
	// on any failure.
	WithdrawFunds(ctx context.Context, userID uuid.UUID, tx *domain.Transaction) error
	// DepositFunds credits the wallet and inserts the transaction record as one
	// atomic unit, with the offsetting system ledger entry.
	DepositFunds(ctx context.Context, userID uuid.UUID, tx *domain.Transaction) error

	// Transaction methods
	FindTransactionsByWalletID(ctx context.Context, walletID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error)
	// SumCompletedDebits aggregates completed transfer/withdrawal amounts for a
	// wallet inside the half-open window [from, to).
	SumCompletedDebits(ctx context.Context, walletID uuid.UUID, from, to time.Time) (int64, error)

	// Beneficiary methods
	CreateBeneficiary(ctx context.Context, beneficiary *domain.Beneficiary) error
	FindBeneficiaryByID(ctx context.Context, beneficiaryID uuid.UUID, userID uuid.UUID) (*domain.Beneficiary, error)
	FindBeneficiariesByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Beneficiary, error)

	// Ledger account registry methods
	CreateLedgerAccountIfAbsent(ctx context.Context, name, accountType, currency string) (created bool, err error)
	FindLedgerAccountByName(ctx context.Context, name string) (*domain.LedgerAccount, error)

	// Security event methods
	CreateSecurityEvent(ctx context.Context, event *domain.SecurityEvent) error
	EnqueueSecurityAlert(ctx context.Context, exchange, routingKey string, payload []byte) error
	ClaimOutboxMessages(ctx context.Context, batchSize int, staleAfterSeconds int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, messageID int64) error
	MarkOutboxFailed(ctx context.Context, messageID int64, retryAfterSeconds int, reason string) error

	// Two-factor credential methods
	GetTwoFactorCredential(ctx context.Context, userID uuid.UUID) (*domain.TwoFactorCredential, error)
	UpsertTwoFactorSecret(ctx context.Context, userID uuid.UUID, secret string) error
	EnableTwoFactor(ctx context.Context, userID uuid.UUID) error
	RecordFailedTwoFactorAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int, lockoutDurationSeconds int) (*domain.TwoFactorCredential, error)
	ResetTwoFactorFailureState(ctx context.Context, userID uuid.UUID) error
}
