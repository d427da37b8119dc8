package tokenizer

import "github.com/golang-jwt/jwt/v5"

// AccessClaims combines standard claims with the session's tier.
type AccessClaims struct {
	jwt.RegisteredClaims
	Tier string `json:"tier"`
}
