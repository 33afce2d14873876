package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskbot/internal/model"
	"taskbot/internal/store"
)

// Authenticator turns a bearer token into the acting user. The HTTP gate
// and the agent tools share it so both reach the same state.
type Authenticator struct {
	issuer *Issuer
	users  store.UserStore
}

func NewAuthenticator(issuer *Issuer, users store.UserStore) *Authenticator {
	return &Authenticator{issuer: issuer, users: users}
}

// Authenticate resolves token to an active user:
//
//	empty token            -> ErrUnauthenticated
//	bad signature/expired  -> ErrInvalidToken
//	user deleted/inactive  -> ErrUserNotFound
func (a *Authenticator) Authenticate(ctx context.Context, token string) (model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return model.User{}, ErrUnauthenticated
	}

	claims, err := a.issuer.Verify(token)
	if err != nil {
		return model.User{}, err
	}

	u, err := a.users.GetUserByID(ctx, claims.ID)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, ErrUserNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("resolve token user: %w", err)
	}
	if !u.IsActive {
		return model.User{}, ErrUserNotFound
	}
	return *u, nil
}

// BearerToken returns the credential of an Authorization header value,
// i.e. its second field whatever the scheme. A credential sent under
// another scheme is then rejected as an invalid token, not a missing one.
func BearerToken(header string) string {
	fields := strings.Fields(header)
	if len(fields) < 2 {
		return ""
	}
	return fields[1]
}

type ctxKey struct{}

func WithUser(ctx context.Context, u model.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFromContext(ctx context.Context) (model.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(model.User)
	return u, ok
}
