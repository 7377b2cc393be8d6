package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/alexmt/plus2flickr/internal/domain"
)

// MemoryUserRepository is an in-process user store for single-node runs and
// tests. All operations work on deep copies, and the mutex gives the same
// one-writer-at-a-time guarantee the Postgres store gets from its version
// column.
type MemoryUserRepository struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

// NewMemoryUserRepository creates an empty in-memory store.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: map[string]*domain.User{}}
}

// FindByID retrieves a user by id.
func (r *MemoryUserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return user.Clone(), nil
}

// FindByLinkedAccount retrieves the user owning the given provider account.
func (r *MemoryUserRepository) FindByLinkedAccount(ctx context.Context, accountID, providerCode string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if acct, ok := user.Accounts[providerCode]; ok && acct.ID == accountID {
			return user.Clone(), nil
		}
	}
	return nil, domain.ErrNotFound
}

// Add inserts a new user.
func (r *MemoryUserRepository) Add(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.ID]; exists {
		return fmt.Errorf("user %s already exists", user.ID)
	}
	user.Version = 1
	r.users[user.ID] = user.Clone()
	return nil
}

// Update writes the user back, enforcing the same optimistic version check
// as the Postgres store.
func (r *MemoryUserRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.users[user.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if current.Version != user.Version {
		return fmt.Errorf("%w: user %s", domain.ErrVersionConflict, user.ID)
	}
	user.Version++
	r.users[user.ID] = user.Clone()
	return nil
}

// Remove deletes the user. Removing an absent user is a no-op.
func (r *MemoryUserRepository) Remove(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, user.ID)
	return nil
}
