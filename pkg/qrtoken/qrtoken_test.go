package qrtoken

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestIssueAndVerify(t *testing.T) {
	signer := NewSigner("test-secret", 5*time.Minute)
	driverID := uuid.New()
	routeID := uuid.New()
	tripID := uuid.New()

	token, expiresAt, err := signer.Issue(driverID, routeID, &tripID)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if remaining := time.Until(expiresAt); remaining > 5*time.Minute+time.Second {
		t.Errorf("expiry too far out: %v", remaining)
	}

	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.DriverID != driverID {
		t.Errorf("driver id = %s, want %s", claims.DriverID, driverID)
	}
	if claims.RouteID != routeID {
		t.Errorf("route id = %s, want %s", claims.RouteID, routeID)
	}
	if claims.TripID == nil || *claims.TripID != tripID {
		t.Errorf("trip id = %v, want %s", claims.TripID, tripID)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	signer := NewSigner("test-secret", time.Minute)
	token, _, err := signer.Issue(uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	// Move the verifier's clock past the expiry.
	signer.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := signer.Verify(token); err != ErrInvalidToken {
		t.Fatalf("Verify on expired token = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	token, _, err := NewSigner("secret-a", time.Minute).Issue(uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if _, err := NewSigner("secret-b", time.Minute).Verify(token); err != ErrInvalidToken {
		t.Fatalf("Verify with wrong secret = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyGarbage(t *testing.T) {
	if _, err := NewSigner("s", time.Minute).Verify("not-a-token"); err != ErrInvalidToken {
		t.Fatalf("Verify on garbage = %v, want ErrInvalidToken", err)
	}
}

func TestTTLClamp(t *testing.T) {
	signer := NewSigner("s", time.Hour)
	_, expiresAt, err := signer.Issue(uuid.New(), uuid.New(), nil)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if time.Until(expiresAt) > MaxTTL+time.Second {
		t.Errorf("ttl not clamped: expiry %v away", time.Until(expiresAt))
	}
}
