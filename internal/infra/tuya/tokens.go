package tuya

import (
	"context"
	"time"
)

// expirySkew is how long before the provider-reported expiry a token is
// already treated as stale, so in-flight requests never race the deadline.
const expirySkew = 5 * time.Minute

// Token is the credential issued by the Tuya Cloud after a signed grant.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UID          string
}

// Usable reports whether the access token can still be attached to a request.
func (t Token) Usable() bool {
	return t.AccessToken != "" && time.Now().Add(expirySkew).Before(t.ExpiresAt)
}

// TokenStore persists tokens across process restarts so a still-valid token
// is reused instead of re-authenticating. Implementations live outside this
// package; the dotenv-file store mirrors where the credentials come from.
type TokenStore interface {
	LoadToken(ctx context.Context) (Token, error)
	SaveToken(ctx context.Context, token Token) error
}
