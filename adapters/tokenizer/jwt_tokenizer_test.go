package tokenizer

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/popgate/core"
)

func testTokenSession(identity string) *core.Session {
	now := time.Now()
	return &core.Session{
		IdentityID: identity,
		Tier:       core.TierEstablished,
		IssuedAt:   now,
		ExpiresAt:  now.Add(24 * time.Hour),
	}
}

func TestNewJWTTokenizerEmptySecret(t *testing.T) {
	_, err := NewJWTTokenizer(nil)
	assert.Error(t, err)
}

func TestMintAndParse(t *testing.T) {
	tok, err := NewJWTTokenizer([]byte("secret"))
	require.NoError(t, err)

	signed, err := tok.SessionToAccessToken(testTokenSession("alice"))
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	identity, err := tok.AccessTokenToIdentity(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)
}

func TestTokensAreUniquePerMint(t *testing.T) {
	tok, err := NewJWTTokenizer([]byte("secret"))
	require.NoError(t, err)

	session := testTokenSession("alice")
	first, err := tok.SessionToAccessToken(session)
	require.NoError(t, err)
	second, err := tok.SessionToAccessToken(session)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestParseRejectsGarbage(t *testing.T) {
	tok, err := NewJWTTokenizer([]byte("secret"))
	require.NoError(t, err)

	for _, bad := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := tok.AccessTokenToIdentity(bad)
		assert.ErrorIs(t, err, core.ErrInvalidToken, "token %q", bad)
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	minter, err := NewJWTTokenizer([]byte("secret-one"))
	require.NoError(t, err)
	verifier, err := NewJWTTokenizer([]byte("secret-two"))
	require.NoError(t, err)

	signed, err := minter.SessionToAccessToken(testTokenSession("alice"))
	require.NoError(t, err)

	_, err = verifier.AccessTokenToIdentity(signed)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestParseRejectsTampering(t *testing.T) {
	tok, err := NewJWTTokenizer([]byte("secret"))
	require.NoError(t, err)

	signed, err := tok.SessionToAccessToken(testTokenSession("alice"))
	require.NoError(t, err)

	tampered := signed[:len(signed)-3] + "xyz"
	_, err = tok.AccessTokenToIdentity(tampered)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

func TestParseRejectsWrongAudience(t *testing.T) {
	tok, err := NewJWTTokenizer([]byte("secret"))
	require.NoError(t, err)

	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  "alice",
			Audience: jwt.ClaimStrings{"something:else"},
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tok.signKey)
	require.NoError(t, err)

	_, err = tok.AccessTokenToIdentity(signed)
	assert.ErrorIs(t, err, core.ErrInvalidToken)
}

// The registry owns session expiry; the tokenizer must keep resolving
// identities from expired tokens so the gateway can report session_expired
// instead of invalid_token.
func TestParseAcceptsExpiredToken(t *testing.T) {
	tok, err := NewJWTTokenizer([]byte("secret"))
	require.NoError(t, err)

	session := testTokenSession("alice")
	session.IssuedAt = time.Now().Add(-48 * time.Hour)
	session.ExpiresAt = time.Now().Add(-24 * time.Hour)

	signed, err := tok.SessionToAccessToken(session)
	require.NoError(t, err)

	identity, err := tok.AccessTokenToIdentity(signed)
	require.NoError(t, err)
	assert.Equal(t, "alice", identity)
}
