package credential

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the displayable subset of a token's claims.
type Claims struct {
	Subject   string    `json:"subject,omitempty"`
	Issuer    string    `json:"issuer,omitempty"`
	IssuedAt  time.Time `json:"issued_at,omitzero"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
	Expired   bool      `json:"expired"`
}

// Inspect decodes the claims of a JWT without verifying its signature.
// The result is for debug display only and must not be used to grant access;
// the client-details API remains the sole judge of validity.
func Inspect(value string, now time.Time) (Claims, error) {
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(value, &rc); err != nil {
		return Claims{}, fmt.Errorf("decode token claims: %w", err)
	}

	c := Claims{
		Subject: rc.Subject,
		Issuer:  rc.Issuer,
	}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
		c.Expired = now.After(rc.ExpiresAt.Time)
	}
	return c, nil
}
