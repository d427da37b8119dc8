package tokenizer

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"

	"github.com/layer-3/popgate/core"
)

const AudienceAccess = "personhood:access"

// JWTTokenizer mints HS256 access tokens keyed by an HKDF-derived signing
// key. Callers treat the token as opaque; the Session Registry stays the
// authority at admission time, so a token is only a signed, non-enumerable
// reference into it.
type JWTTokenizer struct {
	signKey []byte
}

// NewJWTTokenizer derives a signing key from the server secret. The raw
// secret never signs anything directly.
func NewJWTTokenizer(secret []byte) (*JWTTokenizer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token secret must not be empty")
	}
	kdf := hkdf.New(sha256.New, secret, nil, []byte("popgate access token v1"))
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	return &JWTTokenizer{signKey: key}, nil
}

// SessionToAccessToken mints the opaque token for a fresh session. A
// random jti makes every token unique even for the same identity.
func (j *JWTTokenizer) SessionToAccessToken(session *core.Session) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.IdentityID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
			Audience:  jwt.ClaimStrings{AudienceAccess},
		},
		Tier: string(session.Tier),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// AccessTokenToIdentity verifies a token's signature and audience and
// returns the identity it was minted for. Expiry is deliberately not
// enforced here: the Session Registry owns expiry so that an expired
// session is reported as session_expired and evicted, not masked as a
// malformed token.
func (j *JWTTokenizer) AccessTokenToIdentity(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.signKey, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid {
		return "", core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok {
		return "", core.ErrInvalidToken
	}
	aud, err := claims.GetAudience()
	if err != nil || len(aud) == 0 || aud[0] != AudienceAccess {
		return "", core.ErrInvalidToken
	}
	return claims.Subject, nil
}
