package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkincode/smartcart/internal/domain"
	"github.com/talkincode/smartcart/internal/store"
)

func newService(t *testing.T) (*Service, *store.Store) {
	st, err := store.OpenMemory(context.Background(), store.SeedDemo)
	require.NoError(t, err)
	return NewService(st, "test-secret", time.Hour), st
}

func TestLoginUpgradesPlaintextPassword(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	token, user, err := svc.Login(ctx, "customer", "customer123")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, "2", user.ID)

	_ = st.View(ctx, func(snap *store.Snapshot) error {
		assert.True(t, IsHashed(snap.Users[snap.UserIndex("2")].Password))
		return nil
	})

	_, _, err = svc.Login(ctx, "customer", "customer123")
	require.NoError(t, err)
	_, _, err = svc.Login(ctx, "customer", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = svc.Login(ctx, "nobody", "x")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	_, _, err = svc.Login(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestParse(t *testing.T) {
	svc, _ := newService(t)
	token, err := svc.Issue(domain.User{ID: "1", Username: "admin", Role: domain.RoleAdmin})
	require.NoError(t, err)

	id, err := svc.Parse(token)
	require.NoError(t, err)
	assert.True(t, id.IsAdmin())
	assert.Equal(t, "admin", id.Username)

	_, err = svc.Parse("")
	assert.ErrorIs(t, err, ErrTokenMissing)
	_, err = svc.Parse(token + "x")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	other := NewService(nil, "other-secret", time.Hour)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestParseExpired(t *testing.T) {
	svc, _ := newService(t)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.Issue(domain.User{ID: "2", Username: "customer", Role: domain.RoleCustomer})
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestUser(t *testing.T) {
	svc, _ := newService(t)
	u, err := svc.User(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Username)
	_, err = svc.User(context.Background(), "7")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
