// Package user persists registered accounts.
package user

import (
	"context"
	"maps"
	"strings"
	"sync"

	"signup/internal/registration/models"
	id "signup/pkg/domain"
	"signup/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in insertion order. Lookups ignore case.
// Username is always unique; WithUniqueField adds more unique fields.
type InMemoryUserStore struct {
	mu     sync.RWMutex
	users  []*models.User
	nextID id.UserID
	unique []string

	// txMu serializes RunInTx units of work.
	txMu sync.Mutex
}

// Option configures a user store.
type Option func(*options)

type options struct {
	unique []string
}

// WithUniqueField makes Create reject a user whose field value (ignoring
// case) is already stored. Blank values never collide. Username is unique
// without this option.
func WithUniqueField(field string) Option {
	return func(o *options) {
		if field == "" || field == models.FieldUsername {
			return
		}
		for _, f := range o.unique {
			if f == field {
				return
			}
		}
		o.unique = append(o.unique, field)
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func New(opts ...Option) *InMemoryUserStore {
	o := applyOptions(opts)
	return &InMemoryUserStore{unique: append([]string{models.FieldUsername}, o.unique...)}
}

// Create assigns the next ID and stores a copy of user. A collision on a
// unique field returns a *models.ConflictError naming it.
func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, field := range s.unique {
		if v := user.Identifier(field); v != "" && s.findLocked(field, v) != nil {
			return &models.ConflictError{Field: field}
		}
	}
	s.nextID++
	user.ID = s.nextID
	s.users = append(s.users, clone(user))
	return nil
}

func (s *InMemoryUserStore) Exists(_ context.Context, field, value string) (bool, error) {
	if value == "" {
		return false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(field, value) != nil, nil
}

// FindByIdentifier returns the oldest user whose field matches value.
func (s *InMemoryUserStore) FindByIdentifier(_ context.Context, field, value string) (*models.User, error) {
	if value == "" {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u := s.findLocked(field, value); u != nil {
		return clone(u), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u := s.byIDLocked(userID); u != nil {
		return clone(u), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) SetUsername(_ context.Context, userID id.UserID, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.byIDLocked(userID)
	if u == nil {
		return sentinel.ErrNotFound
	}
	if other := s.findLocked(models.FieldUsername, username); other != nil && other.ID != userID {
		return &models.ConflictError{Field: models.FieldUsername}
	}
	u.Username = username
	return nil
}

func (s *InMemoryUserStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// RunInTx runs fn with other units of work excluded and restores the
// previous users when fn fails. IDs handed out meanwhile are not reused.
func (s *InMemoryUserStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	saved := make([]*models.User, len(s.users))
	for i, u := range s.users {
		saved[i] = clone(u)
	}
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.users = saved
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *InMemoryUserStore) findLocked(field, value string) *models.User {
	for _, u := range s.users {
		if v := u.Identifier(field); v != "" && strings.EqualFold(v, value) {
			return u
		}
	}
	return nil
}

func (s *InMemoryUserStore) byIDLocked(userID id.UserID) *models.User {
	for _, u := range s.users {
		if u.ID == userID {
			return u
		}
	}
	return nil
}

func clone(u *models.User) *models.User {
	c := *u
	c.Extra = maps.Clone(u.Extra)
	return &c
}
