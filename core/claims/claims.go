package claims

import (
	"context"
	"errors"
)

// Claims is the per-request identity derived from the session: the signed-in
// user and the bearer credential used for content-store calls on their
// behalf.
type Claims struct {
	UserID int
	Phone  string
	Token  string
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok {
		return Claims{}, errors.New("claim value missing from context")
	}
	return v, nil
}

// Authenticated reports whether the request carries a signed-in identity.
func Authenticated(ctx context.Context) bool {
	c, err := Get(ctx)
	return err == nil && c.Token != ""
}
