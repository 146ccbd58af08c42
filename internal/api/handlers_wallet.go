package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
)

// BalanceHandler returns the authenticated account's balance.
func (h *WalletHandlers) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	balance, err := h.service.GetBalance(r.Context(), principal.ID, principal.Role)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, balance)
}

// TransactionsHandler returns the authenticated account's ledger history.
func (h *WalletHandlers) TransactionsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	txs, err := h.service.ListTransactions(r.Context(), principal.ID, listOptions(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, txs)
}

// SubmitRechargeHandler records a passenger's external payment claim.
func (h *WalletHandlers) SubmitRechargeHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	var req domain.RechargeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	validation, err := h.service.SubmitRecharge(r.Context(), principal.ID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=submit_recharge outcome=reject passenger_id=%s err=%v", principal.ID, err)
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, validation)
}

// GetRechargeHandler returns one of the caller's own validations; admins may
// read any validation.
func (h *WalletHandlers) GetRechargeHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	validationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid validation ID")
		return
	}

	validation, err := h.service.GetValidation(r.Context(), validationID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if principal.Role != domain.RoleAdmin && validation.AccountID != principal.ID {
		h.writeError(w, http.StatusNotFound, "Validation not found")
		return
	}
	h.writeJSON(w, http.StatusOK, validation)
}

// ListRechargesHandler returns the caller's own validations.
func (h *WalletHandlers) ListRechargesHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	validations, err := h.service.ListAccountValidations(r.Context(), principal.ID, listOptions(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if validations == nil {
		validations = []domain.PaymentValidation{}
	}
	h.writeJSON(w, http.StatusOK, validations)
}

// ReviewQueueHandler returns pending validations for the admin dashboard.
func (h *WalletHandlers) ReviewQueueHandler(w http.ResponseWriter, r *http.Request) {
	validations, err := h.service.ListReviewQueue(r.Context(), listOptions(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if validations == nil {
		validations = []domain.PaymentValidation{}
	}
	h.writeJSON(w, http.StatusOK, validations)
}

// ApproveRechargeHandler resolves a pending validation in the claimant's
// favor: recharges credit the balance, withdrawal payouts flip status only.
func (h *WalletHandlers) ApproveRechargeHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	validationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid validation ID")
		return
	}

	validation, err := h.service.ApproveValidation(r.Context(), principal.ID, validationID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=approve_recharge outcome=reject validation_id=%s err=%v", validationID, err)
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, validation)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectRechargeHandler resolves a pending validation against the claimant.
func (h *WalletHandlers) RejectRechargeHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	validationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid validation ID")
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.RejectRecharge(r.Context(), principal.ID, validationID, req.Reason); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// WithdrawalHandler debits the balance and opens a pending payout request.
func (h *WalletHandlers) WithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	var req domain.WithdrawalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	receipt, err := h.service.RequestWithdrawal(r.Context(), principal.ID, principal.Role, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=withdrawal outcome=reject account_id=%s err=%v", principal.ID, err)
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, receipt)
}
