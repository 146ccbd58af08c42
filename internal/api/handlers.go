/**
 * @description
 * This file contains the HTTP handlers for the wallet-service's API endpoints.
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
	"net/http"
	"strconv"

	"github.com/suba/wallet-service/internal/app"
	"github.com/suba/wallet-service/internal/domain"
	"github.com/suba/wallet-service/internal/store"
)

// Stable machine-readable reason codes returned to clients.
const (
	ReasonInsufficientBalance   = "INSUFFICIENT_BALANCE"
	ReasonCardNotFoundOrBlocked = "CARD_NOT_FOUND_OR_BLOCKED"
	ReasonQRExpiredOrInvalid    = "QR_EXPIRED_OR_INVALID"
	ReasonProfileIncomplete     = "PROFILE_INCOMPLETE"
	ReasonFareNotFound          = "FARE_NOT_FOUND"
	ReasonUserNotFound          = "USER_NOT_FOUND"
	ReasonDriverNotFound        = "DRIVER_NOT_FOUND"
	ReasonDuplicateReference    = "DUPLICATE_PAYMENT_REFERENCE"
	ReasonInvalidState          = "INVALID_STATE"
	ReasonNotFound              = "NOT_FOUND"
	ReasonActiveCardExists      = "ACTIVE_CARD_EXISTS"
	ReasonRequestInFlight       = "CARD_REQUEST_IN_FLIGHT"
	ReasonCardRegistered        = "CARD_ALREADY_REGISTERED"
	ReasonTooManyAttempts       = "TOO_MANY_ATTEMPTS"
	ReasonRoleWithoutWallet     = "ROLE_WITHOUT_WALLET"
	ReasonBadRequest            = "BAD_REQUEST"
	ReasonInternal              = "INTERNAL_ERROR"
)

// WalletHandlers holds the application service that handlers will use.
type WalletHandlers struct {
	service *app.Service
}

// NewWalletHandlers creates a new instance of WalletHandlers.
func NewWalletHandlers(service *app.Service) *WalletHandlers {
	return &WalletHandlers{service: service}
}

// mapServiceError translates a service error into an HTTP status and a stable
// reason code.
func mapServiceError(err error) (int, string) {
	var gateErr *app.ProfileIncompleteError
	var limitErr *app.RateLimitedError

	switch {
	case errors.Is(err, store.ErrInsufficientBalance):
		return http.StatusPaymentRequired, ReasonInsufficientBalance
	case errors.Is(err, app.ErrCardNotFoundOrBlocked):
		return http.StatusBadRequest, ReasonCardNotFoundOrBlocked
	case errors.Is(err, app.ErrQRExpiredOrInvalid):
		return http.StatusBadRequest, ReasonQRExpiredOrInvalid
	case errors.As(err, &gateErr):
		return http.StatusPreconditionFailed, ReasonProfileIncomplete
	case errors.As(err, &limitErr):
		return http.StatusTooManyRequests, ReasonTooManyAttempts
	case errors.Is(err, store.ErrFareNotFound):
		return http.StatusNotFound, ReasonFareNotFound
	case errors.Is(err, store.ErrPassengerNotFound):
		return http.StatusNotFound, ReasonUserNotFound
	case errors.Is(err, store.ErrDriverNotFound):
		return http.StatusNotFound, ReasonDriverNotFound
	case errors.Is(err, store.ErrDuplicateReference):
		return http.StatusConflict, ReasonDuplicateReference
	case errors.Is(err, store.ErrInvalidValidationState), errors.Is(err, store.ErrInvalidCardRequestState):
		return http.StatusConflict, ReasonInvalidState
	case errors.Is(err, store.ErrActiveCardExists):
		return http.StatusConflict, ReasonActiveCardExists
	case errors.Is(err, app.ErrCardRequestInFlight):
		return http.StatusConflict, ReasonRequestInFlight
	case errors.Is(err, store.ErrCardAlreadyRegistered):
		return http.StatusConflict, ReasonCardRegistered
	case errors.Is(err, store.ErrValidationNotFound),
		errors.Is(err, store.ErrCardNotFound),
		errors.Is(err, store.ErrCardRequestNotFound),
		errors.Is(err, store.ErrTransactionNotFound):
		return http.StatusNotFound, ReasonNotFound
	case errors.Is(err, app.ErrRoleWithoutWallet):
		return http.StatusForbidden, ReasonRoleWithoutWallet
	case errors.Is(err, app.ErrAmountNotPositive),
		errors.Is(err, app.ErrReferenceRequired),
		errors.Is(err, app.ErrReasonRequired):
		return http.StatusBadRequest, ReasonBadRequest
	}
	return http.StatusInternalServerError, ReasonInternal
}

// writeServiceError writes a mapped service error as {error, reason}.
func (h *WalletHandlers) writeServiceError(w http.ResponseWriter, err error) {
	status, reason := mapServiceError(err)
	var limitErr *app.RateLimitedError
	if errors.As(err, &limitErr) {
		w.Header().Set("Retry-After", strconv.Itoa(limitErr.RetryAfterSeconds))
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	h.writeJSON(w, status, map[string]string{"error": message, "reason": reason})
}

// writeBoardingFailure writes a refused boarding as {approved: false, reason}.
// Boarding devices branch on `reason`, never on the message text.
func (h *WalletHandlers) writeBoardingFailure(w http.ResponseWriter, err error) {
	status, reason := mapServiceError(err)
	var limitErr *app.RateLimitedError
	if errors.As(err, &limitErr) {
		w.Header().Set("Retry-After", strconv.Itoa(limitErr.RetryAfterSeconds))
	}
	if status == http.StatusInternalServerError {
		h.writeJSON(w, status, map[string]interface{}{"approved": false, "reason": ReasonInternal})
		return
	}
	h.writeJSON(w, status, map[string]interface{}{"approved": false, "reason": reason})
}

// listOptions parses limit/offset query parameters with sane defaults.
func listOptions(r *http.Request) domain.LedgerListOptions {
	opts := domain.LedgerListOptions{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			opts.Limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			opts.Offset = v
		}
	}
	return opts
}

// writeJSON is a helper for writing JSON responses.
func (h *WalletHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *WalletHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
