package store

import (
	"context"
	"errors"
	"sync"

	errs "github.com/corebrain/go-session-service/internal/errors"
)

type memoryEntry struct {
	data             *Data
	redirectPath     string
	logoutReturnPath string
	processedCode    string
}

// InMemoryRepo is a thread-safe in-memory implementation of the Repo
// interface, for tests and single-process deployments.
type InMemoryRepo struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
}

// NewInMemoryRepo creates a new in-memory session store.
func NewInMemoryRepo() *InMemoryRepo {
	return &InMemoryRepo{
		entries: make(map[string]*memoryEntry),
	}
}

// SaveSession stores or updates a session record.
func (r *InMemoryRepo) SaveSession(_ context.Context, sessionID string, data *Data) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	if data == nil {
		return errors.New("data cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.entry(sessionID)
	// Copy to prevent external modifications
	copied := *data
	entry.data = &copied
	return nil
}

// GetSession retrieves a session record by ID.
func (r *InMemoryRepo) GetSession(_ context.Context, sessionID string) (*Data, error) {
	if sessionID == "" {
		return nil, errors.New("sessionID cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[sessionID]
	if !exists || entry.data == nil {
		return nil, errs.ErrSessionNotFound
	}

	copied := *entry.data
	return &copied, nil
}

// DeleteSession purges the session record and every marker tied to it.
func (r *InMemoryRepo) DeleteSession(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, sessionID)
	return nil
}

// SetRedirectPath persists the post-login intended destination.
func (r *InMemoryRepo) SetRedirectPath(_ context.Context, sessionID, path string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entry(sessionID).redirectPath = path
	return nil
}

// TakeRedirectPath reads and clears the intended destination.
func (r *InMemoryRepo) TakeRedirectPath(_ context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("sessionID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[sessionID]
	if !exists {
		return "", nil
	}
	path := entry.redirectPath
	entry.redirectPath = ""
	return path, nil
}

// SetLogoutReturnPath persists the post-logout round-trip destination.
func (r *InMemoryRepo) SetLogoutReturnPath(_ context.Context, sessionID, path string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entry(sessionID).logoutReturnPath = path
	return nil
}

// TakeLogoutReturnPath reads and clears the post-logout destination.
func (r *InMemoryRepo) TakeLogoutReturnPath(_ context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("sessionID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[sessionID]
	if !exists {
		return "", nil
	}
	path := entry.logoutReturnPath
	entry.logoutReturnPath = ""
	return path, nil
}

// MarkCodeProcessed records the last processed authorization code.
func (r *InMemoryRepo) MarkCodeProcessed(_ context.Context, sessionID, code string) error {
	if sessionID == "" {
		return errors.New("sessionID cannot be empty")
	}
	if code == "" {
		return errors.New("code cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entry(sessionID).processedCode = code
	return nil
}

// IsCodeProcessed reports whether the code was already processed for this
// session.
func (r *InMemoryRepo) IsCodeProcessed(_ context.Context, sessionID, code string) (bool, error) {
	if sessionID == "" || code == "" {
		return false, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[sessionID]
	if !exists {
		return false, nil
	}
	return entry.processedCode == code, nil
}

// entry returns the session's entry, creating it if needed. Callers must
// hold the write lock.
func (r *InMemoryRepo) entry(sessionID string) *memoryEntry {
	entry, exists := r.entries[sessionID]
	if !exists {
		entry = &memoryEntry{}
		r.entries[sessionID] = entry
	}
	return entry
}
