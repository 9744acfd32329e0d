package weights

import (
	"sync"

	"github.com/wonny/kabupicks/internal/scoring"
	"github.com/wonny/kabupicks/pkg/logger"
)

// Store caches the loaded weight configuration for the process. Get returns
// the same immutable instance until Refresh replaces it with a freshly
// loaded one; callers holding the old pointer keep a consistent view.
type Store struct {
	path string
	log  *logger.Logger

	mu      sync.RWMutex
	current *scoring.WeightConfig
}

// NewStore creates a store reading from the given path (empty means the
// default search path).
func NewStore(path string, log *logger.Logger) *Store {
	return &Store{path: path, log: log}
}

// Get returns the cached configuration, loading it on first use.
func (s *Store) Get() (*scoring.WeightConfig, error) {
	s.mu.RLock()
	cached := s.current
	s.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}
	return s.Refresh()
}

// Refresh forces a reload and atomically replaces the cache for subsequent
// callers. On failure the previous cache is kept.
func (s *Store) Refresh() (*scoring.WeightConfig, error) {
	cfg, err := Load(s.path, s.log)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.current = cfg
	s.mu.Unlock()

	return cfg, nil
}
