/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * It contains all the SQL needed to interact with the database tables for wallets,
 * ledger accounts, beneficiaries, transactions, security events, and two-factor
 * credentials.
 *
 * The money-moving methods (`WithdrawFunds`, `DepositFunds`) run inside a single
 * database transaction with a `FOR UPDATE` lock on the wallet row, so the balance
 * mutation, the transaction insert, and the offsetting ledger posting commit
 * together or not at all.
 *
 * @dependencies
 * - context, encoding/json, errors, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/transpareo/banking-service/internal/domain"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrWalletNotFound        = errors.New("wallet not found")
	ErrBeneficiaryNotFound   = errors.New("beneficiary not found")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrLedgerAccountNotFound = errors.New("ledger account not found")
	ErrTwoFactorNotEnrolled  = errors.New("two-factor credential not set")
	ErrOutboxMessageNotFound = errors.New("outbox message not found")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindUserIDBySubject resolves the internal UUID from an auth-provider subject.
func (r *PostgresRepository) FindUserIDBySubject(ctx context.Context, subject string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.QueryRow(ctx, "SELECT id FROM users WHERE subject = $1", subject).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, ErrUserNotFound
		}
		return uuid.Nil, err
	}
	return id, nil
}

// CreateWallet inserts a new wallet row. The unique constraint on user_id
// enforces the one-wallet-per-user invariant.
func (r *PostgresRepository) CreateWallet(ctx context.Context, wallet *domain.Wallet) error {
	query := `
		INSERT INTO wallets (id, user_id, balance, currency, iban, bic)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		wallet.ID,
		wallet.UserID,
		wallet.Balance,
		wallet.Currency,
		wallet.IBAN,
		wallet.BIC,
	).Scan(&wallet.CreatedAt, &wallet.UpdatedAt)
}

// FindWalletByUserID retrieves a user's wallet.
func (r *PostgresRepository) FindWalletByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := `SELECT id, user_id, balance, currency, iban, bic, created_at, updated_at FROM wallets WHERE user_id = $1`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&wallet.ID, &wallet.UserID, &wallet.Balance, &wallet.Currency,
		&wallet.IBAN, &wallet.BIC, &wallet.CreatedAt, &wallet.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// WithdrawFunds performs the atomic debit unit: lock the wallet row, re-validate
// the balance under the lock, decrement it, insert the transaction record, and
// post the offsetting entry against PLATFORM_BANK. Everything commits together
// or rolls back together.
func (r *PostgresRepository) WithdrawFunds(ctx context.Context, userID uuid.UUID, record *domain.Transaction) error {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx)

	var walletID uuid.UUID
	var balance int64
	// FOR UPDATE serializes concurrent debits against the same wallet.
	err = dbtx.QueryRow(ctx, "SELECT id, balance FROM wallets WHERE user_id = $1 FOR UPDATE", userID).Scan(&walletID, &balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrWalletNotFound
		}
		return err
	}

	if balance < record.Amount {
		return ErrInsufficientFunds
	}

	if _, err = dbtx.Exec(ctx, "UPDATE wallets SET balance = balance - $1, updated_at = NOW() WHERE id = $2", record.Amount, walletID); err != nil {
		return err
	}

	record.WalletID = walletID
	if err = insertTransactionTx(ctx, dbtx, record); err != nil {
		return err
	}

	// Wallets are liabilities of the platform; money leaving a wallet also
	// leaves the platform bank account.
	if _, err = dbtx.Exec(ctx, "UPDATE ledger_accounts SET balance = balance - $1, updated_at = NOW() WHERE name = $2", record.Amount, domain.LedgerPlatformBank); err != nil {
		return err
	}

	return dbtx.Commit(ctx)
}

// DepositFunds performs the atomic credit unit: increment the wallet balance,
// insert the transaction record, and post the offsetting PLATFORM_BANK entry.
func (r *PostgresRepository) DepositFunds(ctx context.Context, userID uuid.UUID, record *domain.Transaction) error {
	dbtx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx)

	var walletID uuid.UUID
	err = dbtx.QueryRow(ctx, "SELECT id FROM wallets WHERE user_id = $1 FOR UPDATE", userID).Scan(&walletID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrWalletNotFound
		}
		return err
	}

	if _, err = dbtx.Exec(ctx, "UPDATE wallets SET balance = balance + $1, updated_at = NOW() WHERE id = $2", record.Amount, walletID); err != nil {
		return err
	}

	record.WalletID = walletID
	if err = insertTransactionTx(ctx, dbtx, record); err != nil {
		return err
	}

	if _, err = dbtx.Exec(ctx, "UPDATE ledger_accounts SET balance = balance + $1, updated_at = NOW() WHERE name = $2", record.Amount, domain.LedgerPlatformBank); err != nil {
		return err
	}

	return dbtx.Commit(ctx)
}

func insertTransactionTx(ctx context.Context, dbtx pgx.Tx, record *domain.Transaction) error {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO transactions (id, wallet_id, type, status, amount, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	return dbtx.QueryRow(ctx, query,
		record.ID,
		record.WalletID,
		record.Type,
		record.Status,
		record.Amount,
		metadata,
	).Scan(&record.CreatedAt)
}

// FindTransactionsByWalletID retrieves a wallet's transactions, newest first.
func (r *PostgresRepository) FindTransactionsByWalletID(ctx context.Context, walletID uuid.UUID, opts domain.TransactionListOptions) ([]domain.Transaction, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, wallet_id, type, status, amount, metadata, created_at
		FROM transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.db.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		var metadata []byte
		if err := rows.Scan(&tx.ID, &tx.WalletID, &tx.Type, &tx.Status, &tx.Amount, &metadata, &tx.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
				return nil, err
			}
		}
		transactions = append(transactions, tx)
	}

	return transactions, nil
}

// SumCompletedDebits aggregates completed outbound amounts for a wallet inside
// the half-open window [from, to). Only committed transactions are visible to
// this query, which keeps limit checks consistent with settled history.
func (r *PostgresRepository) SumCompletedDebits(ctx context.Context, walletID uuid.UUID, from, to time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE wallet_id = $1
		  AND type IN ($2, $3)
		  AND status = $4
		  AND created_at >= $5
		  AND created_at < $6
	`
	var total int64
	err := r.db.QueryRow(ctx, query, walletID,
		domain.TxTypeTransfer, domain.TxTypeWithdrawal, domain.TxStatusCompleted,
		from, to,
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// CreateBeneficiary inserts a new beneficiary row.
func (r *PostgresRepository) CreateBeneficiary(ctx context.Context, beneficiary *domain.Beneficiary) error {
	query := `
		INSERT INTO beneficiaries (id, user_id, name, holder, iban, bic, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	return r.db.QueryRow(ctx, query,
		beneficiary.ID,
		beneficiary.UserID,
		beneficiary.Name,
		beneficiary.Holder,
		beneficiary.IBAN,
		beneficiary.BIC,
		beneficiary.Status,
	).Scan(&beneficiary.CreatedAt, &beneficiary.UpdatedAt)
}

// FindBeneficiaryByID retrieves a specific beneficiary owned by a user. The
// user_id predicate enforces ownership at the data layer.
func (r *PostgresRepository) FindBeneficiaryByID(ctx context.Context, beneficiaryID uuid.UUID, userID uuid.UUID) (*domain.Beneficiary, error) {
	var beneficiary domain.Beneficiary
	query := `SELECT id, user_id, name, holder, iban, bic, status, created_at, updated_at FROM beneficiaries WHERE id = $1 AND user_id = $2`
	err := r.db.QueryRow(ctx, query, beneficiaryID, userID).Scan(
		&beneficiary.ID, &beneficiary.UserID, &beneficiary.Name, &beneficiary.Holder,
		&beneficiary.IBAN, &beneficiary.BIC, &beneficiary.Status,
		&beneficiary.CreatedAt, &beneficiary.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrBeneficiaryNotFound
		}
		return nil, err
	}
	return &beneficiary, nil
}

// FindBeneficiariesByUserID retrieves all beneficiaries for a user.
func (r *PostgresRepository) FindBeneficiariesByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Beneficiary, error) {
	query := `
		SELECT id, user_id, name, holder, iban, bic, status, created_at, updated_at
		FROM beneficiaries
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var beneficiaries []domain.Beneficiary
	for rows.Next() {
		var beneficiary domain.Beneficiary
		if err := rows.Scan(
			&beneficiary.ID, &beneficiary.UserID, &beneficiary.Name, &beneficiary.Holder,
			&beneficiary.IBAN, &beneficiary.BIC, &beneficiary.Status,
			&beneficiary.CreatedAt, &beneficiary.UpdatedAt); err != nil {
			return nil, err
		}
		beneficiaries = append(beneficiaries, beneficiary)
	}

	return beneficiaries, nil
}

// CreateLedgerAccountIfAbsent seeds one system ledger account. The unique
// constraint on name plus ON CONFLICT DO NOTHING makes the bootstrap idempotent.
func (r *PostgresRepository) CreateLedgerAccountIfAbsent(ctx context.Context, name, accountType, currency string) (bool, error) {
	query := `
		INSERT INTO ledger_accounts (id, name, type, currency, balance)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (name) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, uuid.New(), name, accountType, currency)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// FindLedgerAccountByName retrieves one system ledger account.
func (r *PostgresRepository) FindLedgerAccountByName(ctx context.Context, name string) (*domain.LedgerAccount, error) {
	var account domain.LedgerAccount
	query := `SELECT id, name, type, currency, balance, created_at, updated_at FROM ledger_accounts WHERE name = $1`
	err := r.db.QueryRow(ctx, query, name).Scan(
		&account.ID, &account.Name, &account.Type, &account.Currency,
		&account.Balance, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrLedgerAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// CreateSecurityEvent appends one audit trail row. Rows are insert-only; there
// is no update or delete path.
func (r *PostgresRepository) CreateSecurityEvent(ctx context.Context, event *domain.SecurityEvent) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO security_events (id, user_id, action, status, ip_address, user_agent, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.db.Exec(ctx, query,
		event.ID,
		event.UserID,
		event.Action,
		event.Status,
		event.IPAddress,
		event.UserAgent,
		metadata,
	)
	return err
}

// GetTwoFactorCredential returns a user's TOTP enrollment state.
func (r *PostgresRepository) GetTwoFactorCredential(ctx context.Context, userID uuid.UUID) (*domain.TwoFactorCredential, error) {
	var credential domain.TwoFactorCredential
	query := `
		SELECT user_id, secret, enabled, failed_attempts, locked_until
		FROM user_two_factor
		WHERE user_id = $1
	`
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&credential.UserID,
		&credential.Secret,
		&credential.Enabled,
		&credential.FailedAttempts,
		&credential.LockedUntil,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTwoFactorNotEnrolled
		}
		return nil, err
	}
	return &credential, nil
}

// UpsertTwoFactorSecret stores a freshly generated TOTP secret in a disabled
// state. Re-running enrollment before confirmation replaces the secret.
func (r *PostgresRepository) UpsertTwoFactorSecret(ctx context.Context, userID uuid.UUID, secret string) error {
	query := `
		INSERT INTO user_two_factor (user_id, secret, enabled, failed_attempts)
		VALUES ($1, $2, false, 0)
		ON CONFLICT (user_id)
		DO UPDATE SET secret = EXCLUDED.secret, enabled = false, failed_attempts = 0, locked_until = NULL, updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, userID, secret)
	return err
}

// EnableTwoFactor flips the credential to enabled after a confirmed code.
func (r *PostgresRepository) EnableTwoFactor(ctx context.Context, userID uuid.UUID) error {
	result, err := r.db.Exec(ctx, "UPDATE user_two_factor SET enabled = true, updated_at = NOW() WHERE user_id = $1", userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTwoFactorNotEnrolled
	}
	return nil
}

// RecordFailedTwoFactorAttempt atomically increments failed attempts and applies lockout.
func (r *PostgresRepository) RecordFailedTwoFactorAttempt(ctx context.Context, userID uuid.UUID, maxAttempts int, lockoutDurationSeconds int) (*domain.TwoFactorCredential, error) {
	var credential domain.TwoFactorCredential
	query := `
		UPDATE user_two_factor
		SET
			failed_attempts = CASE
				WHEN (locked_until IS NOT NULL AND locked_until <= NOW())
					OR (locked_until IS NULL AND failed_attempts >= $2) THEN 1
				ELSE failed_attempts + 1
			END,
			last_failed_at = NOW(),
			locked_until = CASE
				WHEN (
					CASE
						WHEN (locked_until IS NOT NULL AND locked_until <= NOW())
							OR (locked_until IS NULL AND failed_attempts >= $2) THEN 1
						ELSE failed_attempts + 1
					END
				) >= $2 THEN NOW() + ($3 * INTERVAL '1 second')
				ELSE NULL
			END
		WHERE user_id = $1
		RETURNING user_id, secret, enabled, failed_attempts, locked_until
	`
	err := r.db.QueryRow(ctx, query, userID, maxAttempts, lockoutDurationSeconds).Scan(
		&credential.UserID,
		&credential.Secret,
		&credential.Enabled,
		&credential.FailedAttempts,
		&credential.LockedUntil,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTwoFactorNotEnrolled
		}
		return nil, err
	}

	return &credential, nil
}

// ResetTwoFactorFailureState clears failed-attempt counters after a successful verification.
func (r *PostgresRepository) ResetTwoFactorFailureState(ctx context.Context, userID uuid.UUID) error {
	query := `
		UPDATE user_two_factor
		SET failed_attempts = 0, last_failed_at = NULL, locked_until = NULL
		WHERE user_id = $1
	`
	result, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrTwoFactorNotEnrolled
	}
	return nil
}
