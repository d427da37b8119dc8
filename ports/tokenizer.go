package ports

import "github.com/layer-3/popgate/core"

// Tokenizer mints and checks opaque access tokens. Tokens are signed
// references into the Session Registry; the registry stays the authority
// at admission time.
type Tokenizer interface {
	// SessionToAccessToken mints the opaque token for a fresh session.
	SessionToAccessToken(session *core.Session) (string, error)

	// AccessTokenToIdentity verifies a token's signature and shape and
	// returns the identity it was minted for. Returns core.ErrInvalidToken
	// for anything that was not minted by this gateway.
	AccessTokenToIdentity(token string) (string, error)
}
