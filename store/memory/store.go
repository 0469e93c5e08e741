// Package memory is an in-process UserProvider for development and tests.
// Every write happens under one mutex, so the conditional operations are
// trivially atomic.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/skyAuth"
)

// Store keeps user records in a map keyed by user id.
type Store struct {
	mu           sync.RWMutex
	users        map[string]*skyAuth.UserRecord
	byIdentifier map[string]string
}

var _ skyAuth.UserProvider = (*Store)(nil)

func New() *Store {
	return &Store{
		users:        make(map[string]*skyAuth.UserRecord),
		byIdentifier: make(map[string]string),
	}
}

// AddUser inserts u and returns its id. An empty UserID is replaced with a
// random UUID. The identifier is stored lower-cased.
func (s *Store) AddUser(u skyAuth.UserRecord) (string, error) {
	if u.UserID == "" {
		u.UserID = uuid.NewString()
	}
	u.Identifier = normalize(u.Identifier)
	if u.Identifier == "" {
		return "", ErrEmptyIdentifier
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byIdentifier[u.Identifier]; ok {
		return "", ErrDuplicateIdentifier
	}
	if _, ok := s.users[u.UserID]; ok {
		return "", ErrDuplicateIdentifier
	}
	rec := clone(u)
	s.users[u.UserID] = &rec
	s.byIdentifier[u.Identifier] = u.UserID
	return u.UserID, nil
}

func (s *Store) GetUserByIdentifier(_ context.Context, identifier string) (skyAuth.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byIdentifier[normalize(identifier)]
	if !ok {
		return skyAuth.UserRecord{}, skyAuth.ErrUserNotFound
	}
	return clone(*s.users[id]), nil
}

func (s *Store) GetUserByID(_ context.Context, userID string) (skyAuth.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return skyAuth.UserRecord{}, skyAuth.ErrUserNotFound
	}
	return clone(*u), nil
}

func (s *Store) ConditionalUpdateSecondFactor(_ context.Context, userID string, expectedVersion uint32, next skyAuth.SecondFactor) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, skyAuth.ErrUserNotFound
	}
	if u.SecondFactor.Version != expectedVersion {
		return false, nil
	}
	next = next.Clone()
	next.Version = expectedVersion + 1
	u.SecondFactor = next
	return true, nil
}

func (s *Store) ConsumeBackupCode(_ context.Context, userID string, codeHash [32]byte, usedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return false, skyAuth.ErrUserNotFound
	}
	for i := range u.SecondFactor.BackupCodes {
		code := &u.SecondFactor.BackupCodes[i]
		if code.Used || code.Hash != codeHash {
			continue
		}
		code.Used = true
		code.UsedAt = usedAt
		return true, nil
	}
	return false, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID string, newHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return skyAuth.ErrUserNotFound
	}
	u.PasswordHash = newHash
	return nil
}

func (s *Store) UpdateAccountStatus(_ context.Context, userID string, status skyAuth.AccountStatus, locked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return skyAuth.ErrUserNotFound
	}
	u.Status = status
	u.Locked = locked
	return nil
}

func (s *Store) IncrementTokenVersion(_ context.Context, userID string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, skyAuth.ErrUserNotFound
	}
	u.TokenVersion++
	return u.TokenVersion, nil
}

func normalize(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func clone(u skyAuth.UserRecord) skyAuth.UserRecord {
	out := u
	out.Roles = append([]string(nil), u.Roles...)
	out.SecondFactor = u.SecondFactor.Clone()
	return out
}
