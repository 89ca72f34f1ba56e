package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is the registry of per-tenant flat indices. Each tenant (chatbot)
// owns exactly one index file under the store directory, created empty on
// first use, loaded lazily, and cached for the life of the process.
//
// Writes for a tenant are serialized: AppendWithOffset reads the current
// vector count, appends, and persists as one atomic unit under the tenant's
// lock, so concurrent ingestions can never be assigned overlapping offset
// ranges. Searches take a read lock and may run concurrently with each other.
type Store struct {
	// dir is the directory holding one index file per tenant.
	dir string
	// dim is the fixed vector dimensionality enforced across all tenants.
	dim int

	// mu guards the tenants map only; per-tenant state has its own lock.
	mu sync.Mutex
	// tenants caches loaded indices keyed by tenant ID.
	tenants map[string]*tenantIndex
}

// tenantIndex pairs a loaded flat index with the lock that serializes its
// mutations.
type tenantIndex struct {
	mu   sync.RWMutex
	flat *Flat
}

// NewStore constructs a Store rooted at dir, creating the directory if
// needed. dim is the embedding dimensionality every tenant index must carry.
func NewStore(dir string, dim int) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("index: store directory must not be empty")
	}
	if dim <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dim)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("index: create %s: %w", dir, err)
	}
	return &Store{dir: dir, dim: dim, tenants: make(map[string]*tenantIndex)}, nil
}

// Dim returns the vector dimensionality enforced by this store.
func (s *Store) Dim() int { return s.dim }

// ValidTenantID reports whether id is acceptable as a tenant identifier.
// Tenant IDs become part of the index file name, so they are restricted to
// a path-safe alphabet.
func ValidTenantID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return false
		}
	}
	return true
}

// Path returns the index file path for a tenant.
func (s *Store) Path(tenantID string) string {
	return filepath.Join(s.dir, "index_"+tenantID+".bin")
}

// get returns the cached tenant index, loading it from disk or creating an
// empty one (persisted immediately) on first use.
func (s *Store) get(tenantID string) (*tenantIndex, error) {
	if !ValidTenantID(tenantID) {
		return nil, fmt.Errorf("index: invalid tenant id %q", tenantID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tenants[tenantID]; ok {
		return t, nil
	}

	path := s.Path(tenantID)
	var flat *Flat
	if _, err := os.Stat(path); err == nil {
		flat, err = ReadFile(path, s.dim)
		if err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		flat, err = NewFlat(s.dim)
		if err != nil {
			return nil, err
		}
		if err := flat.WriteFile(path); err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("index: stat %s: %w", path, err)
	}

	t := &tenantIndex{flat: flat}
	s.tenants[tenantID] = t
	return t, nil
}

// AppendWithOffset appends vectors to the tenant's index and returns the
// offset of the first appended vector, i.e. the index's vector count before
// the append. The offset read, the append, and the file rewrite happen under
// the tenant's write lock so concurrent callers always receive disjoint,
// dense offset ranges.
//
// Appending zero vectors is allowed and returns the current count without
// touching the file.
func (s *Store) AppendWithOffset(tenantID string, vectors [][]float32) (int, error) {
	t, err := s.get(tenantID)
	if err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	start := t.flat.Len()
	if len(vectors) == 0 {
		return start, nil
	}
	if err := t.flat.Append(vectors); err != nil {
		return 0, err
	}
	if err := t.flat.WriteFile(s.Path(tenantID)); err != nil {
		return 0, err
	}
	return start, nil
}

// Search returns up to k nearest vectors for the tenant, ordered by
// ascending squared-L2 distance. A tenant with no vectors yields no hits.
func (s *Store) Search(tenantID string, query []float32, k int) ([]Hit, error) {
	t, err := s.get(tenantID)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.flat.Search(query, k)
}

// Len returns the tenant's total vector count, creating an empty index for
// a never-seen tenant.
func (s *Store) Len(tenantID string) (int, error) {
	t, err := s.get(tenantID)
	if err != nil {
		return 0, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.flat.Len(), nil
}
