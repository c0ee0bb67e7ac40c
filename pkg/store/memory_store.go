package store

import (
	"sync"

	"readlater/pkg/domain"
)

// MemoryStore keeps profiles and content in-process. Used in tests and
// as a stand-in when no database is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.User    // key: profile ID
	email    map[string]string         // email -> profile ID
	content  map[string]domain.Content // key: content ID
	order    []string                  // content IDs in insertion order
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]domain.User),
		email:    make(map[string]string),
		content:  make(map[string]domain.Content),
	}
}

// SaveProfile stores or replaces a profile record.
func (m *MemoryStore) SaveProfile(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.profiles[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.profiles[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasProfileEmail checks if email exists.
func (m *MemoryStore) HasProfileEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetProfileByEmail looks up a profile by email.
func (m *MemoryStore) GetProfileByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.profiles[id]
	return u, ok, nil
}

// GetProfileByID returns a profile by ID.
func (m *MemoryStore) GetProfileByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.profiles[id]
	return u, ok, nil
}

// CreateContent stores a content row and tracks insertion order.
func (m *MemoryStore) CreateContent(c domain.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.content[c.ID]; !exists {
		m.order = append(m.order, c.ID)
	}
	m.content[c.ID] = c
	return nil
}

// ListContentByProfile returns content rows filtered by owner, in insertion order.
func (m *MemoryStore) ListContentByProfile(profileID string) ([]domain.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Content, 0, len(m.order))
	for _, id := range m.order {
		if c, ok := m.content[id]; ok && c.ProfileID == profileID {
			res = append(res, c)
		}
	}
	return res, nil
}

// SetContentChecked updates the checked flag of an owned row.
func (m *MemoryStore) SetContentChecked(id, profileID string, checked bool) (domain.Content, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.content[id]
	if !ok || c.ProfileID != profileID {
		return domain.Content{}, false, nil
	}
	c.Checked = checked
	m.content[id] = c
	return c, true, nil
}
