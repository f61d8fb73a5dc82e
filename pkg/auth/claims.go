package auth

import "github.com/golang-jwt/jwt/v5"

// AccessTokenClaims is the payload of a bearer token minted by the identity
// provider. The subject carries the user id checked against the admin allowlist.
type AccessTokenClaims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *AccessTokenClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}
