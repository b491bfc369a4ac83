package authkit

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryCredentialStore is an in-memory CredentialStore intended for tests
// and local development runs.
type MemoryCredentialStore struct {
	mutex sync.Mutex
	byID  map[string]*User
	clock Clock
}

// NewMemoryCredentialStore creates an empty in-memory store.
func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{
		byID:  make(map[string]*User),
		clock: NewSystemClock(),
	}
}

// FindByEmail returns the user with the given normalized email.
func (store *MemoryCredentialStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	normalized := NormalizeEmail(email)
	for _, record := range store.byID {
		if record.Email == normalized {
			return cloneUser(record), nil
		}
	}
	return nil, fmt.Errorf("credential_store.find_by_email: %w", ErrUserNotFound)
}

// FindByExternalID returns the user linked to the given Google subject.
func (store *MemoryCredentialStore) FindByExternalID(ctx context.Context, googleID string) (*User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if googleID != "" {
		for _, record := range store.byID {
			if record.GoogleID == googleID {
				return cloneUser(record), nil
			}
		}
	}
	return nil, fmt.Errorf("credential_store.find_by_external_id: %w", ErrUserNotFound)
}

// FindByID returns the user with the given identifier.
func (store *MemoryCredentialStore) FindByID(ctx context.Context, userID string) (*User, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	record, ok := store.byID[userID]
	if !ok {
		return nil, fmt.Errorf("credential_store.find_by_id: %w", ErrUserNotFound)
	}
	return cloneUser(record), nil
}

// Create inserts a new user, assigning an identifier when absent.
func (store *MemoryCredentialStore) Create(ctx context.Context, user *User) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = NormalizeEmail(user.Email)
	now := store.clock.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	for _, record := range store.byID {
		if record.Email == user.Email {
			return fmt.Errorf("credential_store.create: %w", ErrDuplicateEmail)
		}
		if user.GoogleID != "" && record.GoogleID == user.GoogleID {
			return fmt.Errorf("credential_store.create: %w", ErrDuplicateEmail)
		}
	}
	store.byID[user.ID] = cloneUser(user)
	return nil
}

// Save overwrites an existing user record.
func (store *MemoryCredentialStore) Save(ctx context.Context, user *User) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	if _, ok := store.byID[user.ID]; !ok {
		return fmt.Errorf("credential_store.save: %w", ErrUserNotFound)
	}
	user.UpdatedAt = store.clock.Now()
	store.byID[user.ID] = cloneUser(user)
	return nil
}

func cloneUser(user *User) *User {
	clone := *user
	return &clone
}

var _ CredentialStore = (*MemoryCredentialStore)(nil)

// WithClock overrides the timestamp source, for tests.
func (store *MemoryCredentialStore) WithClock(clock Clock) *MemoryCredentialStore {
	store.clock = clock
	return store
}
