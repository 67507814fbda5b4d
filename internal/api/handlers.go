/**
 * @description
 * This file contains the HTTP handlers for the banking-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/transpareo/banking-service/internal/app"
	"github.com/transpareo/banking-service/internal/domain"
	"github.com/transpareo/banking-service/internal/store"
)

// BankingHandlers holds the application service that handlers will use.
type BankingHandlers struct {
	service *app.Service
}

// NewBankingHandlers creates a new instance of BankingHandlers.
func NewBankingHandlers(service *app.Service) *BankingHandlers {
	return &BankingHandlers{service: service}
}

// resolveUser maps the authenticated JWT subject to the internal user UUID.
// It writes the error response itself and reports success via the boolean.
func (h *BankingHandlers) resolveUser(w http.ResponseWriter, r *http.Request, endpoint string) (uuid.UUID, bool) {
	subject, ok := GetAuthSubject(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get subject from context")
		return uuid.Nil, false
	}

	userID, err := h.service.ResolveInternalUserID(r.Context(), subject)
	if err != nil {
		log.Printf("level=warn component=api endpoint=%s outcome=reject reason=user_resolution_failed subject=%s err=%v", endpoint, subject, err)
		h.writeError(w, http.StatusUnauthorized, "User not found")
		return uuid.Nil, false
	}
	return userID, true
}

// transferStatusCode maps a machine-readable failure code from the transfer
// orchestrator to an HTTP status.
func transferStatusCode(code string) int {
	switch code {
	case domain.CodeInvalidRequest, domain.CodeInvalidBeneficiary:
		return http.StatusBadRequest
	case domain.CodeUnauthorized:
		return http.StatusUnauthorized
	case domain.CodeInsufficientBalance:
		return http.StatusPaymentRequired
	case domain.CodeLimitExceeded:
		return http.StatusUnprocessableEntity
	case domain.CodeTwoFactorRequired, domain.CodeInvalidTwoFactorCode:
		return http.StatusForbidden
	case domain.CodeTwoFactorLocked:
		return http.StatusLocked
	case domain.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// CreateWalletHandler provisions a wallet for the authenticated user. The
// operation is idempotent: an existing wallet is returned unchanged.
func (h *BankingHandlers) CreateWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "create_wallet")
	if !ok {
		return
	}

	wallet, err := h.service.CreateWallet(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=create_wallet outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, wallet)
}

// GetWalletHandler returns the authenticated user's wallet with its current balance.
func (h *BankingHandlers) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "get_wallet")
	if !ok {
		return
	}

	wallet, err := h.service.GetWallet(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			h.writeError(w, http.StatusNotFound, "Wallet not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_wallet outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, wallet)
}

// TransferHandler handles outbound transfers to a saved beneficiary.
func (h *BankingHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "transfer")
	if !ok {
		return
	}

	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	log.Printf("level=info component=api endpoint=transfer outcome=accepted user_id=%s beneficiary_id=%s amount=%d", userID, req.BeneficiaryID, req.Amount)

	result := h.service.TransferFunds(r.Context(), userID, requestMetadataFromRequest(r), req)
	if !result.Success {
		log.Printf("level=warn component=api endpoint=transfer outcome=failed user_id=%s code=%s", userID, result.Code)
		h.writeJSON(w, transferStatusCode(result.Code), result)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// DepositHandler credits the authenticated user's wallet from an external
// settlement flow.
func (h *BankingHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "deposit")
	if !ok {
		return
	}

	var req domain.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=deposit outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	if req.Amount <= 0 {
		h.writeError(w, http.StatusBadRequest, "Amount must be positive")
		return
	}

	tx, err := h.service.DepositFunds(r.Context(), userID, requestMetadataFromRequest(r), req)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			h.writeError(w, http.StatusNotFound, "Wallet not found")
			return
		}
		log.Printf("level=error component=api endpoint=deposit outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, tx)
}

// ListTransactionsHandler returns the authenticated user's transaction
// history, newest first. Supports limit/offset pagination query params.
func (h *BankingHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "list_transactions")
	if !ok {
		return
	}

	opts := domain.TransactionListOptions{Limit: 50, Offset: 0}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 || limit > 200 {
			h.writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		opts.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			h.writeError(w, http.StatusBadRequest, "Invalid offset")
			return
		}
		opts.Offset = offset
	}

	transactions, err := h.service.ListTransactions(r.Context(), userID, opts)
	if err != nil {
		if errors.Is(err, store.ErrWalletNotFound) {
			h.writeError(w, http.StatusNotFound, "Wallet not found")
			return
		}
		log.Printf("level=error component=api endpoint=list_transactions outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
		"limit":        opts.Limit,
		"offset":       opts.Offset,
	})
}

// CheckTransferLimitHandler evaluates the rolling daily and weekly caps for a
// prospective amount without moving any money.
func (h *BankingHandlers) CheckTransferLimitHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "check_transfer_limit")
	if !ok {
		return
	}

	raw := r.URL.Query().Get("amount")
	amount, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid amount")
		return
	}

	check, err := h.service.CheckTransferLimits(r.Context(), userID, amount)
	if err != nil {
		log.Printf("level=error component=api endpoint=check_transfer_limit outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, check)
}

// AddBeneficiaryHandler registers a new external payout target for the caller.
func (h *BankingHandlers) AddBeneficiaryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "add_beneficiary")
	if !ok {
		return
	}

	var req domain.NewBeneficiaryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=add_beneficiary outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	result := h.service.AddBeneficiary(r.Context(), userID, requestMetadataFromRequest(r), req)
	if !result.Success {
		status := http.StatusBadRequest
		if result.Requires2FA {
			status = http.StatusForbidden
		}
		h.writeJSON(w, status, result)
		return
	}

	h.writeJSON(w, http.StatusCreated, result)
}

// ListBeneficiariesHandler returns all of the caller's saved beneficiaries.
func (h *BankingHandlers) ListBeneficiariesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "list_beneficiaries")
	if !ok {
		return
	}

	beneficiaries, err := h.service.ListBeneficiaries(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_beneficiaries outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"beneficiaries": beneficiaries,
		"count":         len(beneficiaries),
	})
}

// EnrollTwoFactorHandler generates a fresh TOTP secret for the caller and
// returns the provisioning URI for authenticator apps. The factor stays
// disabled until confirmed with a valid code.
func (h *BankingHandlers) EnrollTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "two_factor_enroll")
	if !ok {
		return
	}

	enrollment, err := h.service.EnrollTwoFactor(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=two_factor_enroll outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusCreated, enrollment)
}

// ConfirmTwoFactorHandler activates the pending TOTP enrollment once the
// caller proves possession of the secret.
func (h *BankingHandlers) ConfirmTwoFactorHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.resolveUser(w, r, "two_factor_confirm")
	if !ok {
		return
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Code == "" {
		h.writeError(w, http.StatusBadRequest, "Code is required")
		return
	}

	confirmed, err := h.service.ConfirmTwoFactor(r.Context(), userID, requestMetadataFromRequest(r), req.Code)
	if err != nil {
		if errors.Is(err, store.ErrTwoFactorNotEnrolled) {
			h.writeError(w, http.StatusPreconditionFailed, "Two-factor enrollment not started")
			return
		}
		log.Printf("level=error component=api endpoint=two_factor_confirm outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !confirmed {
		h.writeError(w, http.StatusForbidden, "Invalid two-factor code")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]bool{"enabled": true})
}

// writeJSON is a helper for writing JSON responses.
func (h *BankingHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *BankingHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
