/**
 * @description
 * This package issues and verifies the short-lived signed tokens embedded in
 * driver boarding QR codes. A token binds the driver, route, and optional trip
 * so that a passenger scanning the code pays the right party; verification is
 * offline (HMAC over a shared secret), no lookup required.
 *
 * @dependencies
 * - github.com/golang-jwt/jwt/v5: Token signing and parsing.
 * - github.com/google/uuid: Identity claims.
 */
package qrtoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MaxTTL caps how long a boarding token may remain valid.
const MaxTTL = 15 * time.Minute

// ErrInvalidToken covers every verification failure: bad signature, expiry,
// malformed claims. Callers must not distinguish; the QR is simply re-scanned.
var ErrInvalidToken = errors.New("qrtoken: invalid or expired boarding token")

// BoardingClaims is the payload carried inside a boarding QR token.
type BoardingClaims struct {
	DriverID uuid.UUID  `json:"driver_id"`
	RouteID  uuid.UUID  `json:"route_id"`
	TripID   *uuid.UUID `json:"trip_id,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues and verifies boarding tokens with a shared HMAC secret.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner builds a Signer. A ttl of zero or above MaxTTL is clamped to MaxTTL.
func NewSigner(secret string, ttl time.Duration) *Signer {
	if ttl <= 0 || ttl > MaxTTL {
		ttl = MaxTTL
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a boarding token for the given driver, route, and optional trip.
// It returns the token string and its expiry instant.
func (s *Signer) Issue(driverID, routeID uuid.UUID, tripID *uuid.UUID) (string, time.Time, error) {
	now := s.now().UTC()
	expiresAt := now.Add(s.ttl)
	claims := BoardingClaims{
		DriverID: driverID,
		RouteID:  routeID,
		TripID:   tripID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "suba-wallet",
			Subject:   driverID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a boarding token, returning its claims.
func (s *Signer) Verify(tokenString string) (*BoardingClaims, error) {
	claims := &BoardingClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.DriverID == uuid.Nil || claims.RouteID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
