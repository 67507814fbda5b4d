/**
 * @description
 * This file defines the wallet-side domain models for the banking-service: the
 * per-user Wallet, the system-wide LedgerAccount registry entries, and saved
 * Beneficiary payout targets.
 *
 * @notes
 * - Amounts are stored as `int64` in cents to avoid floating-point inaccuracies
 *   with financial data. The service is EUR-only.
 * - A Wallet balance is never allowed to go negative; the store enforces this at
 *   commit time, not just at validation time.
 */

package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CurrencyEUR is the only currency handled by the service.
const CurrencyEUR = "EUR"

// Wallet represents a user's monetary balance record. Every user owns exactly
// one wallet, created during onboarding.
type Wallet struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"` // in cents
	Currency  string    `json:"currency"`
	IBAN      string    `json:"iban"` // display only, generated once
	BIC       string    `json:"bic"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ledger account types, following standard double-entry bookkeeping.
const (
	LedgerTypeAsset     = "asset"
	LedgerTypeLiability = "liability"
	LedgerTypeEquity    = "equity"
	LedgerTypeRevenue   = "revenue"
	LedgerTypeExpense   = "expense"
)

// System ledger account names. The set is fixed at bootstrap and never grows at
// runtime.
const (
	LedgerPlatformBank    = "PLATFORM_BANK"
	LedgerPlatformFees    = "PLATFORM_FEES"
	LedgerClearingStripe  = "CLEARING_STRIPE"
	LedgerClearingPlaid   = "CLEARING_PLAID"
	LedgerPlatformCapital = "PLATFORM_CAPITAL"
)

// LedgerAccount is a system-level bookkeeping account, distinct from any user
// wallet. Rows are seeded once at bootstrap and mutated by settlement flows.
type LedgerAccount struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // 'asset', 'liability', 'equity', 'revenue', 'expense'
	Currency  string    `json:"currency"`
	Balance   int64     `json:"balance"` // in cents
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Beneficiary statuses.
const (
	BeneficiaryStatusActive   = "active"
	BeneficiaryStatusInactive = "inactive"
)

// Beneficiary is a saved external payout target owned by one user. Transfers
// reference beneficiaries but never mutate them.
type Beneficiary struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Name      string    `json:"name"`   // user-facing label
	Holder    string    `json:"holder"` // legal account holder name
	IBAN      string    `json:"iban"`
	BIC       string    `json:"bic"`
	Status    string    `json:"status"` // 'active', 'inactive'
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewBeneficiaryRequest is the DTO for incoming beneficiary creation requests.
type NewBeneficiaryRequest struct {
	Name          string `json:"name"`
	Holder        string `json:"holder"`
	IBAN          string `json:"iban"`
	BIC           string `json:"bic"`
	TwoFactorCode string `json:"two_factor_code,omitempty"`
}

// BeneficiaryResult is the discriminated result returned by beneficiary
// creation, mirroring TransferResult's shape.
type BeneficiaryResult struct {
	Success     bool         `json:"success"`
	Error       string       `json:"error,omitempty"`
	Requires2FA bool         `json:"requires_2fa,omitempty"`
	Beneficiary *Beneficiary `json:"beneficiary,omitempty"`
}

// NormalizeIBAN uppercases an IBAN and strips all whitespace. Beneficiary IBANs
// are normalized before persistence so equality checks are reliable.
func NormalizeIBAN(iban string) string {
	return strings.ToUpper(strings.Join(strings.Fields(iban), ""))
}
