// Package checkintoken issues and verifies the signed tokens that gate event
// check-in. A token is bound to one registration; scanning it at the venue
// proves the holder owns that registration without a database-wide lookup.
package checkintoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "campushub/pkg/domain-errors"
)

// Claims bind a check-in token to a single registration.
type Claims struct {
	RegistrationID string `json:"registration_id"`
	UserID         string `json:"user_id"`
	EventID        string `json:"event_id"`
	jwt.RegisteredClaims
}

// Service signs and verifies check-in tokens.
type Service struct {
	signingKey []byte
	issuer     string
}

// NewService builds a token service with the given HMAC signing key.
func NewService(signingKey, issuer string) *Service {
	return &Service{
		signingKey: []byte(signingKey),
		issuer:     issuer,
	}
}

// Issue signs a token for the registration. The token stays valid until the
// event ends; expiresAt should be the event's end time.
func (s *Service) Issue(registrationID, userID, eventID uuid.UUID, issuedAt, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegistrationID: registrationID.String(),
		UserID:         userID.String(),
		EventID:        eventID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			Issuer:    s.issuer,
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// Verify parses and validates a token, returning its claims.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "check-in token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid check-in token")
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid check-in token")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid check-in token claims")
	}
	return claims, nil
}

// RegistrationID extracts the bound registration id from a token.
func (s *Service) RegistrationID(tokenString string) (uuid.UUID, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(claims.RegistrationID)
}
