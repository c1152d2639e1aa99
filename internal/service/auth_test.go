package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farhanm/clubchain/internal/auth"
	"github.com/farhanm/clubchain/internal/model"
)

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo, *fakeProvisioner) {
	t.Helper()

	users := &fakeUserRepo{byID: make(map[int64]*model.User)}
	prov := &fakeProvisioner{}
	tokens, err := auth.NewTokenService("test-secret-test-secret")
	require.NoError(t, err)

	return NewAuthService(users, prov, tokens, testLogger()), users, prov
}

func TestAuthService_LoginWithGoogle_FirstLogin(t *testing.T) {
	svc, users, prov := newAuthFixture(t)

	gUser := &auth.GoogleUser{
		Sub:     "google-sub-1",
		Email:   "alice@example.com",
		Name:    "Alice",
		Picture: "https://example.com/alice.png",
	}

	result, err := svc.LoginWithGoogle(context.Background(), gUser)
	require.NoError(t, err)

	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "alice@example.com", result.User.Email)
	assert.Equal(t, "google-sub-1", result.User.GoogleID)
	assert.NotEmpty(t, result.User.SmartAccountAddress)

	// The smart account was provisioned from the Google subject.
	require.Len(t, prov.identities, 1)
	assert.Equal(t, "google-sub-1", prov.identities[0])

	// Exactly one row was created.
	assert.Len(t, users.byID, 1)
}

func TestAuthService_LoginWithGoogle_ReturningUser(t *testing.T) {
	svc, users, prov := newAuthFixture(t)

	gUser := &auth.GoogleUser{Sub: "google-sub-1", Email: "alice@example.com", Name: "Alice"}

	first, err := svc.LoginWithGoogle(context.Background(), gUser)
	require.NoError(t, err)
	second, err := svc.LoginWithGoogle(context.Background(), gUser)
	require.NoError(t, err)

	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Len(t, users.byID, 1)

	// No re-provisioning on later logins; the stored address is reused.
	assert.Len(t, prov.identities, 1)
	assert.Equal(t, first.User.SmartAccountAddress, second.User.SmartAccountAddress)
}

func TestAuthService_LoginWithGoogle_LostInsertRace(t *testing.T) {
	// Two first logins for one identity race: the loser's insert hits the
	// unique constraint after another request already created the row. The
	// loser must log in against the winner's row, not fail.
	svc, users, _ := newAuthFixture(t)

	winner := &model.User{
		GoogleID:            "google-sub-1",
		Email:               "alice@example.com",
		SmartAccountAddress: "0x00000000000000000000000000000000000000aa",
	}
	require.NoError(t, users.Create(context.Background(), winner))

	// Simulate the loser's view: its lookup ran before the winner
	// committed, so it proceeds into registration and collides.
	user, err := svc.registerGoogleUser(context.Background(), &auth.GoogleUser{
		Sub: "google-sub-1", Email: "alice@example.com",
	})
	require.NoError(t, err)

	assert.Equal(t, winner.ID, user.ID)
	assert.Len(t, users.byID, 1)
}

func TestAuthService_LoginWithGoogle_ProvisioningFailure(t *testing.T) {
	svc, users, prov := newAuthFixture(t)
	prov.err = assert.AnError

	_, err := svc.LoginWithGoogle(context.Background(), &auth.GoogleUser{
		Sub: "google-sub-1", Email: "alice@example.com",
	})
	require.Error(t, err)

	// A failed provisioning must not leave a half-created user behind.
	assert.Empty(t, users.byID)
}

func TestAuthService_LoginWithGoogle_TokenIsValid(t *testing.T) {
	users := &fakeUserRepo{byID: make(map[int64]*model.User)}
	tokens, err := auth.NewTokenService("test-secret-test-secret")
	require.NoError(t, err)
	svc := NewAuthService(users, &fakeProvisioner{}, tokens, testLogger())

	result, err := svc.LoginWithGoogle(context.Background(), &auth.GoogleUser{
		Sub: "google-sub-1", Email: "alice@example.com",
	})
	require.NoError(t, err)

	userID, err := tokens.Validate(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, userID)
	assert.Greater(t, result.User.ID, int64(0))
}
