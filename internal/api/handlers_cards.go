package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
)

// RequestCardHandler opens an NFC card provisioning request.
func (h *WalletHandlers) RequestCardHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	req, err := h.service.RequestCard(r.Context(), principal.ID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=request_card outcome=reject passenger_id=%s err=%v", principal.ID, err)
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, req)
}

type cardPaymentRequest struct {
	RequestID uuid.UUID              `json:"request_id"`
	Payment   domain.RechargeRequest `json:"payment"`
}

// ReportCardPaymentHandler attaches the emission fee payment claim to the
// request and queues it for review.
func (h *WalletHandlers) ReportCardPaymentHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	var req cardPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RequestID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "request_id is required")
		return
	}

	updated, err := h.service.ReportCardPayment(r.Context(), principal.ID, req.RequestID, req.Payment)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

type linkCardRequest struct {
	RequestID uuid.UUID `json:"request_id"`
	CardUID   string    `json:"card_uid"`
}

// LinkCardHandler binds the physical card to an approved request.
func (h *WalletHandlers) LinkCardHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	var req linkCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RequestID == uuid.Nil || req.CardUID == "" {
		h.writeError(w, http.StatusBadRequest, "request_id and card_uid are required")
		return
	}

	card, err := h.service.LinkCard(r.Context(), principal.ID, req.RequestID, req.CardUID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=link_card outcome=reject passenger_id=%s request_id=%s err=%v", principal.ID, req.RequestID, err)
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, card)
}

// MyCardHandler returns the passenger's active card.
func (h *WalletHandlers) MyCardHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	card, err := h.service.GetMyCard(r.Context(), principal.ID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, card)
}

// ApproveCardRequestHandler approves a provisioning request under review.
func (h *WalletHandlers) ApproveCardRequestHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	if err := h.service.ApproveCardRequest(r.Context(), principal.ID, requestID); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// RejectCardRequestHandler rejects a provisioning request under review.
func (h *WalletHandlers) RejectCardRequestHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	requestID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.RejectCardRequest(r.Context(), principal.ID, requestID, req.Reason); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

type blockCardRequest struct {
	Reason string `json:"reason"`
}

// BlockCardHandler takes an active card out of circulation.
func (h *WalletHandlers) BlockCardHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	cardUID := chi.URLParam(r, "uid")
	if cardUID == "" {
		h.writeError(w, http.StatusBadRequest, "Card UID is required")
		return
	}

	var req blockCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.BlockCard(r.Context(), principal.ID, cardUID, req.Reason); err != nil {
		log.Printf("level=warn component=api endpoint=block_card outcome=reject card_uid=%s err=%v", cardUID, err)
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "blocked"})
}
