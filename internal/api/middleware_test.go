package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/suba/wallet-service/internal/domain"
)

const testSecret = "test-jwt-secret"

func signTestToken(t *testing.T, secret string, accountID uuid.UUID, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  accountID.String(),
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

func TestAuthMiddleware(t *testing.T) {
	accountID := uuid.New()

	var captured Principal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := GetPrincipal(r.Context())
		if !ok {
			t.Error("principal missing from context")
		}
		captured = principal
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(testSecret)(next)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{
			name:       "valid passenger token",
			authHeader: "Bearer " + signTestToken(t, testSecret, accountID, "passenger"),
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing header",
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "not a bearer token",
			authHeader: "Basic abc",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong secret",
			authHeader: "Bearer " + signTestToken(t, "other-secret", accountID, "passenger"),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unknown role",
			authHeader: "Bearer " + signTestToken(t, testSecret, accountID, "superuser"),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/balance", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if captured.ID != accountID || captured.Role != domain.RolePassenger {
					t.Errorf("principal = %+v, want id %s role passenger", captured, accountID)
				}
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(testSecret)(RequireRole(domain.RoleAdmin)(next))

	adminToken := signTestToken(t, testSecret, uuid.New(), "admin")
	passengerToken := signTestToken(t, testSecret, uuid.New(), "passenger")

	req := httptest.NewRequest(http.MethodGet, "/recharges/review", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/recharges/review", nil)
	req.Header.Set("Authorization", "Bearer "+passengerToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("passenger status = %d, want 403", rec.Code)
	}
}
