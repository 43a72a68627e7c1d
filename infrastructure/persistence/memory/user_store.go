package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flowcanvas-backend/application/ports"
	"flowcanvas-backend/domain/core/entities"
	pkgerrors "flowcanvas-backend/pkg/errors"
)

// UserStore is a mutex-guarded map implementation of ports.UserRepository
type UserStore struct {
	mu    sync.RWMutex
	users map[string]*entities.UserProfile
}

// NewUserStore creates an empty in-memory user store
func NewUserStore() *UserStore {
	return &UserStore{
		users: make(map[string]*entities.UserProfile),
	}
}

var _ ports.UserRepository = (*UserStore)(nil)

// GetByID retrieves a profile by identity
func (s *UserStore) GetByID(ctx context.Context, id string) (*entities.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("user %s not found", id))
	}
	copied := *user
	return &copied, nil
}

// Put stores a profile, creating or fully replacing it
func (s *UserStore) Put(ctx context.Context, user *entities.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *user
	s.users[user.ID] = &copied
	return nil
}

// RecordLogin merge-sets the last login timestamp
func (s *UserStore) RecordLogin(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("user %s not found", id))
	}
	user.LastLogin = at
	return nil
}

// FindByEmail resolves one email to a profile
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*entities.UserProfile, error) {
	normalized := entities.NormalizeEmail(email)

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == normalized {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pkgerrors.NewNotFoundError(fmt.Sprintf("user with email %s not found", normalized))
}

// FindByEmails resolves a batch of emails, skipping unregistered addresses
func (s *UserStore) FindByEmails(ctx context.Context, emails []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byEmail := make(map[string]string, len(s.users))
	for _, user := range s.users {
		byEmail[user.Email] = user.ID
	}

	resolved := make(map[string]string, len(emails))
	for _, email := range emails {
		normalized := entities.NormalizeEmail(email)
		if id, ok := byEmail[normalized]; ok {
			resolved[normalized] = id
		}
	}
	return resolved, nil
}
