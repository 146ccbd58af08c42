package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
)

// NFCBoardingHandler settles a fare from a driver-side NFC tap.
func (h *WalletHandlers) NFCBoardingHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	var req domain.NFCBoardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=boarding_nfc outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.CardUID == "" || req.RouteID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "card_uid and route_id are required")
		return
	}

	result, err := h.service.SettleNFC(r.Context(), principal.ID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=boarding_nfc outcome=reject driver_id=%s card_uid=%s err=%v", principal.ID, req.CardUID, err)
		h.writeBoardingFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

type issueQRTokenRequest struct {
	RouteID uuid.UUID  `json:"route_id"`
	TripID  *uuid.UUID `json:"trip_id,omitempty"`
}

// IssueQRTokenHandler signs a boarding token for the authenticated driver.
func (h *WalletHandlers) IssueQRTokenHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	var req issueQRTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RouteID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "route_id is required")
		return
	}

	grant, err := h.service.IssueQRToken(r.Context(), principal.ID, req.RouteID, req.TripID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, grant)
}

// QRBoardingHandler settles a fare from a passenger scanning a driver QR.
func (h *WalletHandlers) QRBoardingHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	var req domain.QRBoardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.QRToken == "" {
		h.writeError(w, http.StatusBadRequest, "qr_token is required")
		return
	}

	result, err := h.service.SettleQR(r.Context(), principal.ID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=boarding_qr outcome=reject passenger_id=%s err=%v", principal.ID, err)
		h.writeBoardingFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// MobileBoardingHandler settles a fare paid directly from the passenger app.
func (h *WalletHandlers) MobileBoardingHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := GetPrincipal(r.Context())
	if !ok {
		h.writeError(w, http.StatusUnauthorized, "Unauthenticated")
		return
	}

	var req domain.MobileBoardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.RouteID == uuid.Nil || req.DriverID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "route_id and driver_id are required")
		return
	}

	result, err := h.service.SettleMobile(r.Context(), principal.ID, req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=boarding_mobile outcome=reject passenger_id=%s err=%v", principal.ID, err)
		h.writeBoardingFailure(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}
