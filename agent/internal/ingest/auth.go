package ingest

import (
	"strings"
	"sync/atomic"

	"call-tracker/agent/internal/models"
	"call-tracker/shared/logger"
)

// Snapshot is an immutable view of the caller roster. Readers never block
// the periodic reload; the whole snapshot swaps atomically.
type Snapshot struct {
	callersByID   map[int64]string
	callersByName map[string]string
}

// RoleFor returns the role for a user, checking ID first, then username.
// Empty string means unauthorized.
func (s *Snapshot) RoleFor(userID int64, username string) string {
	if role, ok := s.callersByID[userID]; ok {
		return role
	}
	username = strings.ToLower(strings.TrimPrefix(username, "@"))
	if username != "" {
		if role, ok := s.callersByName[username]; ok {
			return role
		}
	}
	return ""
}

// Size returns how many users the snapshot holds.
func (s *Snapshot) Size() int { return len(s.callersByID) + len(s.callersByName) }

// UserLister is the roster source, satisfied by the database user store.
type UserLister interface {
	ListUsers() ([]models.TelegramUser, error)
}

// Authorizer answers "may this user make calls, and at which tier". Backed
// by a snapshot rebuilt on a schedule so a mid-message roster edit never
// tears reads.
type Authorizer struct {
	store    UserLister
	snapshot atomic.Pointer[Snapshot]
}

func NewAuthorizer(store UserLister) *Authorizer {
	a := &Authorizer{store: store}
	a.snapshot.Store(&Snapshot{
		callersByID:   map[int64]string{},
		callersByName: map[string]string{},
	})
	return a
}

// Reload rebuilds the snapshot from the store and swaps it in.
func (a *Authorizer) Reload() error {
	users, err := a.store.ListUsers()
	if err != nil {
		logger.Log.Errorf("Caller roster reload failed, previous snapshot stays active: %v", err)
		return err
	}

	next := &Snapshot{
		callersByID:   make(map[int64]string, len(users)),
		callersByName: make(map[string]string, len(users)),
	}
	for _, u := range users {
		if u.TelegramUserID != 0 {
			next.callersByID[u.TelegramUserID] = u.Role
		}
		if u.Username != "" {
			next.callersByName[strings.ToLower(u.Username)] = u.Role
		}
	}
	a.snapshot.Store(next)
	logger.Log.Infof("Caller roster reloaded: %d users.", len(users))
	return nil
}

// Current returns the active snapshot.
func (a *Authorizer) Current() *Snapshot {
	return a.snapshot.Load()
}

// RoleFor is a convenience over the current snapshot.
func (a *Authorizer) RoleFor(userID int64, username string) string {
	return a.Current().RoleFor(userID, username)
}
