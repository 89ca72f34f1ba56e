// Package metadata implements the durable document-record table that maps
// vector index positions back to document chunks. A single JSON file holds
// the records for all tenants; it is loaded once at startup and rewritten
// in full after every mutation.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

// Record describes one ingested document. The half-open range
// [StartIdx, StartIdx+NumVectors) identifies the document's vectors inside
// the owning tenant's index; ranges for a tenant's documents are dense and
// non-overlapping because offsets are assigned under the index store's
// per-tenant lock and never reused.
type Record struct {
	// FilePath locates the source file. Opaque to this package.
	FilePath string `json:"file_path"`
	// Chunks is the ordered chunk text; Chunks[i] was embedded as vector
	// StartIdx+i.
	Chunks []string `json:"chunks"`
	// NumVectors is the number of chunks (== embeddings appended).
	NumVectors int `json:"num_vectors"`
	// StartIdx is the tenant index's vector count at ingestion time.
	StartIdx int `json:"start_idx"`
	// ChatbotID is the owning tenant.
	ChatbotID string `json:"chatbot_id"`
	// AddedAt is the ingestion timestamp.
	AddedAt time.Time `json:"added_at"`
}

// Entry pairs a document ID with its record, used by list accessors.
type Entry struct {
	DocumentID string
	Record     Record
}

// Resolution is the result of mapping an index position back to its chunk.
type Resolution struct {
	// DocumentID is the owning document.
	DocumentID string
	// Chunk is the text of the chunk at the resolved position.
	Chunk string
	// FilePath is the owning document's source locator.
	FilePath string
}

// Store is the process-wide document-record table backed by one JSON file.
// It is safe for concurrent use.
type Store struct {
	path string

	mu      sync.RWMutex
	records map[string]Record
}

// Open loads the metadata table from path, or starts empty if the file does
// not exist yet.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("metadata: path must not be empty")
	}

	s := &Store{path: path, records: make(map[string]Record)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("metadata: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("metadata: parse %s: %w", path, err)
	}
	return s, nil
}

// Put inserts or overwrites the record for documentID and rewrites the whole
// table on disk. Overwriting an existing ID orphans its previous vectors in
// the tenant index; callers decide whether to allow that.
func (s *Store) Put(documentID string, rec Record) error {
	if documentID == "" {
		return fmt.Errorf("metadata: document id must not be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.records[documentID]
	s.records[documentID] = rec
	if err := s.saveLocked(); err != nil {
		// Roll back the in-memory change so memory and disk stay in step.
		if existed {
			s.records[documentID] = prev
		} else {
			delete(s.records, documentID)
		}
		return err
	}
	return nil
}

// Get returns the record for documentID, if present.
func (s *Store) Get(documentID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[documentID]
	return rec, ok
}

// Contains reports whether a record exists for documentID.
func (s *Store) Contains(documentID string) bool {
	_, ok := s.Get(documentID)
	return ok
}

// Resolve maps a tenant-relative vector position to the owning document and
// the chunk embedded at that position. At most one record can contain a
// given position, so scan order does not affect the result.
func (s *Store) Resolve(tenantID string, position int) (Resolution, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for id, rec := range s.records {
		if rec.ChatbotID != tenantID {
			continue
		}
		if position < rec.StartIdx || position >= rec.StartIdx+rec.NumVectors {
			continue
		}
		i := position - rec.StartIdx
		if i >= len(rec.Chunks) {
			// Corrupt record: NumVectors promises more chunks than stored.
			return Resolution{}, false
		}
		return Resolution{DocumentID: id, Chunk: rec.Chunks[i], FilePath: rec.FilePath}, true
	}
	return Resolution{}, false
}

// ListForTenant returns the tenant's records ordered by ingestion time, then
// by document ID for records sharing a timestamp.
func (s *Store) ListForTenant(tenantID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []Entry
	for id, rec := range s.records {
		if rec.ChatbotID == tenantID {
			entries = append(entries, Entry{DocumentID: id, Record: rec})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].Record.AddedAt.Equal(entries[j].Record.AddedAt) {
			return entries[i].Record.AddedAt.Before(entries[j].Record.AddedAt)
		}
		return entries[i].DocumentID < entries[j].DocumentID
	})
	return entries
}

// saveLocked rewrites the full table to disk via temp file + rename.
// Callers must hold s.mu.
func (s *Store) saveLocked() error {
	data, err := json.Marshal(s.records)
	if err != nil {
		return fmt.Errorf("metadata: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("metadata: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("metadata: rename %s: %w", s.path, err)
	}
	return nil
}
