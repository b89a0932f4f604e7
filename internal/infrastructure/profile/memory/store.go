package memory

import (
	"sort"
	"sync"

	"github.com/kirillkom/broker-docs/internal/core/domain"
)

// Store keeps customer profiles and folder bindings for the lifetime of the
// process. Reads hand out deep copies.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*domain.CustomerProfile
	folders  map[string]string
}

func New() *Store {
	return &Store{
		profiles: make(map[string]*domain.CustomerProfile),
		folders:  make(map[string]string),
	}
}

func (s *Store) Update(customerID string, fn func(*domain.CustomerProfile)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, ok := s.profiles[customerID]
	if !ok {
		profile = &domain.CustomerProfile{}
		s.profiles[customerID] = profile
	}
	fn(profile)
}

func (s *Store) Get(customerID string) (domain.CustomerProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[customerID]
	if !ok {
		return domain.CustomerProfile{}, false
	}
	return profile.Clone(), true
}

func (s *Store) List() []domain.CustomerProfile {
	s.mu.RLock()
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]domain.CustomerProfile, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.profiles[id].Clone())
	}
	s.mu.RUnlock()
	return out
}

func (s *Store) BindFolder(folderID, customerID string) {
	if folderID == "" || customerID == "" {
		return
	}
	s.mu.Lock()
	s.folders[folderID] = customerID
	s.mu.Unlock()
}

func (s *Store) CustomerForFolder(folderID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.folders[folderID]
	return id, ok
}
