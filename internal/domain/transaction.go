/**
 * @description
 * This file defines the transaction domain models for the banking-service.
 * A Transaction is the immutable ledger record of one balance-affecting event
 * on a wallet; completed transactions are the sole source of truth for
 * daily/weekly transfer-limit aggregation.
 *
 * @notes
 * - Using distinct types for API requests, database models, and result values
 *   keeps the web layer, business logic, and store cleanly separated.
 * - Once a transaction reaches 'completed' it is never updated or deleted.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types.
const (
	TxTypeDeposit           = "deposit"
	TxTypeWithdrawal        = "withdrawal"
	TxTypeTransfer          = "transfer"
	TxTypeInvestment        = "investment"
	TxTypeRepaymentReceived = "repayment_received"
)

// Transaction statuses.
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
	TxStatusBlocked   = "blocked"
)

// Transaction represents one immutable balance-affecting event tied to exactly
// one wallet. This struct maps directly to the `transactions` table.
type Transaction struct {
	ID        uuid.UUID         `json:"id"`
	WalletID  uuid.UUID         `json:"wallet_id"`
	Type      string            `json:"type"`   // e.g. 'deposit', 'withdrawal', 'transfer'
	Status    string            `json:"status"` // e.g. 'pending', 'completed', 'failed', 'blocked'
	Amount    int64             `json:"amount"` // in cents, always positive
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// TransferRequest is the DTO for incoming outbound transfer API requests.
type TransferRequest struct {
	BeneficiaryID uuid.UUID `json:"beneficiary_id"`
	Amount        int64     `json:"amount"` // in cents
	TwoFactorCode string    `json:"two_factor_code,omitempty"`
}

// DepositRequest is the DTO for incoming deposit API requests. Deposits arrive
// from external settlement flows (card top-ups, bank transfers in).
type DepositRequest struct {
	Amount    int64  `json:"amount"` // in cents
	Reference string `json:"reference"`
}

// TransferResult is the discriminated result returned by the transfer
// orchestrator. Callers branch on the booleans instead of parsing error types.
type TransferResult struct {
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	Code        string       `json:"code,omitempty"` // machine-readable failure category
	Requires2FA bool         `json:"requires_2fa,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
}

// Failure codes carried in TransferResult.Code and BeneficiaryResult errors.
const (
	CodeUnauthorized         = "unauthorized"
	CodeInvalidRequest       = "invalid_request"
	CodeInvalidBeneficiary   = "invalid_beneficiary"
	CodeLimitExceeded        = "limit_exceeded"
	CodeInsufficientBalance  = "insufficient_balance"
	CodeTwoFactorRequired    = "two_factor_required"
	CodeInvalidTwoFactorCode = "invalid_two_factor_code"
	CodeTwoFactorLocked      = "two_factor_locked"
	CodeRateLimited          = "rate_limited"
	CodeTechnicalError       = "technical_error"
)

// LimitCheck is the result of a transfer-limit evaluation. It carries no
// side effects; the check may be repeated freely.
type LimitCheck struct {
	Allowed bool   `json:"allowed"`
	Error   string `json:"error,omitempty"`
}

// TransactionListOptions controls pagination for transaction history queries.
type TransactionListOptions struct {
	Limit  int
	Offset int
}
