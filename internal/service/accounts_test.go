package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"taskbot/internal/auth"
	"taskbot/internal/model"
	"taskbot/internal/store"
	"taskbot/internal/store/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccounts(t *testing.T) (*AccountService, *auth.Authenticator, *memory.Store) {
	t.Helper()
	st := memory.NewStore()
	issuer := auth.NewIssuer([]byte("secret"), time.Hour)
	return NewAccountService(st, auth.NewHasher(4), issuer), auth.NewAuthenticator(issuer, st), st
}

func TestRegisterAndLogin(t *testing.T) {
	accounts, authn, _ := newAccounts(t)
	ctx := context.Background()

	sess, err := accounts.Register(ctx, RegisterInput{Username: "a", Email: "a@x.com", Password: "p"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.Token)
	assert.Equal(t, model.PublicUser{ID: sess.User.ID, Username: "a", Email: "a@x.com"}, sess.User)

	u, err := authn.Authenticate(ctx, sess.Token)
	require.NoError(t, err)
	assert.Equal(t, sess.User.ID, u.ID)

	_, err = accounts.Register(ctx, RegisterInput{Username: "b", Email: "a@x.com", Password: "p"})
	assert.ErrorIs(t, err, ErrAccountExists)

	login, err := accounts.Login(ctx, LoginInput{Email: "a@x.com", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, sess.User, login.User)

	_, err = accounts.Login(ctx, LoginInput{Email: "a@x.com", Password: "nope"})
	assert.ErrorIs(t, err, auth.ErrInvalidPassword)

	_, err = accounts.Login(ctx, LoginInput{Email: "ghost@x.com", Password: "p"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRegisterValidation(t *testing.T) {
	accounts, _, _ := newAccounts(t)
	ctx := context.Background()

	for _, in := range []RegisterInput{
		{Email: "a@x.com", Password: "p"},
		{Username: "a", Password: "p"},
		{Username: "a", Email: "a@x.com"},
		{Username: "a", Email: "not-an-email", Password: "p"},
	} {
		_, err := accounts.Register(ctx, in)
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr, "%+v", in)
	}
}

func TestDeletedUserTokenFails(t *testing.T) {
	accounts, authn, _ := newAccounts(t)
	ctx := context.Background()

	sess, err := accounts.Register(ctx, RegisterInput{Username: "a", Email: "a@x.com", Password: "p"})
	require.NoError(t, err)
	caller, err := authn.Authenticate(ctx, sess.Token)
	require.NoError(t, err)

	require.NoError(t, accounts.DeleteUser(ctx, caller, caller.ID))

	_, err = authn.Authenticate(ctx, sess.Token)
	assert.ErrorIs(t, err, auth.ErrUserNotFound)
}

func TestUsersOnlyChangeThemselves(t *testing.T) {
	accounts, authn, _ := newAccounts(t)
	ctx := context.Background()

	a, err := accounts.Register(ctx, RegisterInput{Username: "a", Email: "a@x.com", Password: "p"})
	require.NoError(t, err)
	b, err := accounts.Register(ctx, RegisterInput{Username: "b", Email: "b@x.com", Password: "p"})
	require.NoError(t, err)
	caller, err := authn.Authenticate(ctx, a.Token)
	require.NoError(t, err)

	_, err = accounts.UpdateUser(ctx, caller, b.User.ID, UserInput{Username: ptr("hijack")})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, accounts.DeleteUser(ctx, caller, b.User.ID), store.ErrNotFound)

	_, err = accounts.UpdateUser(ctx, caller, caller.ID, UserInput{Username: ptr(" ")})
	assert.ErrorIs(t, err, ErrNothingToUpdate)

	_, err = accounts.UpdateUser(ctx, caller, caller.ID, UserInput{Email: ptr("b@x.com")})
	assert.ErrorIs(t, err, ErrAccountExists)

	updated, err := accounts.UpdateUser(ctx, caller, caller.ID, UserInput{Username: ptr("a2"), Password: ptr("new")})
	require.NoError(t, err)
	assert.Equal(t, "a2", updated.Username)

	_, err = accounts.Login(ctx, LoginInput{Email: "a@x.com", Password: "new"})
	require.NoError(t, err)

	users, err := accounts.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	got, err := accounts.GetUser(ctx, b.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Username)
}

func TestPasswordLengthLimit(t *testing.T) {
	accounts, authn, _ := newAccounts(t)
	ctx := context.Background()

	tooLong := strings.Repeat("x", auth.MaxPasswordBytes+1)
	_, err := accounts.Register(ctx, RegisterInput{Username: "a", Email: "a@x.com", Password: tooLong})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)
	assert.Equal(t, "password must be at most 72 bytes", verr.Message)

	sess, err := accounts.Register(ctx, RegisterInput{Username: "a", Email: "a@x.com", Password: tooLong[:auth.MaxPasswordBytes]})
	require.NoError(t, err)
	caller, err := authn.Authenticate(ctx, sess.Token)
	require.NoError(t, err)

	_, err = accounts.UpdateUser(ctx, caller, caller.ID, UserInput{Password: &tooLong})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)
}
