package ingest

import (
	"errors"
	"os"
	"testing"

	"call-tracker/agent/internal/models"
	"call-tracker/shared/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(logger.Config{Level: "error", Environment: "test"})
	os.Exit(m.Run())
}

type fakeUserLister struct {
	users []models.TelegramUser
	err   error
}

func (f *fakeUserLister) ListUsers() ([]models.TelegramUser, error) {
	return f.users, f.err
}

func TestAuthorizerRoleLookup(t *testing.T) {
	store := &fakeUserLister{users: []models.TelegramUser{
		{Username: "alpha", TelegramUserID: 111, Role: models.RoleShotCaller},
		{Username: "bravo", Role: models.RoleCaller},
	}}
	auth := NewAuthorizer(store)
	require.NoError(t, auth.Reload())

	assert.Equal(t, models.RoleShotCaller, auth.RoleFor(111, ""))
	assert.Equal(t, models.RoleShotCaller, auth.RoleFor(0, "Alpha"), "username match is case-insensitive")
	assert.Equal(t, models.RoleCaller, auth.RoleFor(0, "@bravo"))
	assert.Equal(t, "", auth.RoleFor(999, "charlie"))
}

func TestAuthorizerEmptyBeforeFirstReload(t *testing.T) {
	auth := NewAuthorizer(&fakeUserLister{})
	assert.Equal(t, "", auth.RoleFor(111, "alpha"))
}

func TestAuthorizerKeepsSnapshotOnReloadFailure(t *testing.T) {
	store := &fakeUserLister{users: []models.TelegramUser{
		{Username: "alpha", Role: models.RoleCaller},
	}}
	auth := NewAuthorizer(store)
	require.NoError(t, auth.Reload())

	store.err = errors.New("db down")
	require.Error(t, auth.Reload())
	assert.Equal(t, models.RoleCaller, auth.RoleFor(0, "alpha"), "stale roster beats no roster")
}

func TestAuthorizerReloadSwapsRoster(t *testing.T) {
	store := &fakeUserLister{users: []models.TelegramUser{
		{Username: "alpha", Role: models.RoleCaller},
	}}
	auth := NewAuthorizer(store)
	require.NoError(t, auth.Reload())

	store.users = []models.TelegramUser{
		{Username: "alpha", Role: models.RoleShotCaller},
		{Username: "delta", Role: models.RoleCaller},
	}
	require.NoError(t, auth.Reload())

	assert.Equal(t, models.RoleShotCaller, auth.RoleFor(0, "alpha"))
	assert.Equal(t, models.RoleCaller, auth.RoleFor(0, "delta"))
}
