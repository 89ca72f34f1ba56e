// Package index implements the per-tenant vector index layer: a flat,
// append-only, L2-distance nearest-neighbor index persisted to one file per
// tenant, plus a registry (Store) that owns lazy loading, caching, and
// per-tenant write serialization.
//
// Vector positions are absolute 0-based offsets within a tenant's index.
// Vectors are never removed or reordered, so a position is stable for the
// life of the index and can be used as a durable foreign key into the
// document metadata table.
package index

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sort"
)

// fileMagic identifies a serialized flat index file (format version 1).
var fileMagic = [8]byte{'C', 'K', 'B', 'I', 'D', 'X', '0', '1'}

// headerSize is the fixed on-disk header length: magic, dim, count.
const headerSize = 8 + 4 + 8

// Hit is a single nearest-neighbor search result.
type Hit struct {
	// Distance is the squared L2 distance between the query and the vector.
	Distance float32
	// Position is the vector's absolute 0-based offset within the index.
	Position int
}

// Flat is an in-memory flat vector index searched by exhaustive squared-L2
// scan. It is not safe for concurrent use; the Store serializes access.
type Flat struct {
	// dim is the fixed dimensionality of every vector in the index.
	dim int
	// data holds all vectors contiguously, len(data) == Len()*dim.
	data []float32
}

// NewFlat constructs an empty flat index of the given dimensionality.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dim)
	}
	return &Flat{dim: dim}, nil
}

// Dim returns the fixed vector dimensionality of the index.
func (f *Flat) Dim() int { return f.dim }

// Len returns the total number of vectors in the index.
func (f *Flat) Len() int { return len(f.data) / f.dim }

// Append adds vectors to the end of the index in the given order.
// Every vector must have the index's dimensionality; a mismatch indicates a
// misconfigured embedding provider and aborts the whole append.
func (f *Flat) Append(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != f.dim {
			return fmt.Errorf("index: vector %d has dimension %d, index expects %d", i, len(v), f.dim)
		}
	}
	for _, v := range vectors {
		f.data = append(f.data, v...)
	}
	return nil
}

// Search returns up to k hits ordered by ascending squared-L2 distance.
// If the index holds fewer than k vectors, all of them are returned.
func (f *Flat) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("index: query has dimension %d, index expects %d", len(query), f.dim)
	}
	if k <= 0 {
		return nil, fmt.Errorf("index: k must be positive, got %d", k)
	}

	total := f.Len()
	if total == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, total)
	for pos := 0; pos < total; pos++ {
		var sum float64
		row := f.data[pos*f.dim : (pos+1)*f.dim]
		for i, q := range query {
			d := float64(q) - float64(row[i])
			sum += d * d
		}
		hits = append(hits, Hit{Distance: float32(sum), Position: pos})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Position < hits[j].Position
	})

	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// WriteFile persists the whole index to path, replacing any previous file.
// The write goes through a temp file in the same directory followed by a
// rename, so readers never observe a torn index.
func (f *Flat) WriteFile(path string) error {
	buf := make([]byte, headerSize+len(f.data)*4)
	copy(buf[:8], fileMagic[:])
	binary.LittleEndian.PutUint32(buf[8:12], uint32(f.dim))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(f.Len()))
	for i, v := range f.data {
		binary.LittleEndian.PutUint32(buf[headerSize+i*4:], math.Float32bits(v))
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("index: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("index: rename %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a flat index previously written by WriteFile and validates
// its header against the expected dimensionality. A dimension mismatch is a
// fatal configuration error: it means the embedding provider changed after
// the index was built.
func ReadFile(path string, dim int) (*Flat, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("index: read %s: %w", path, err)
	}
	if len(buf) < headerSize {
		return nil, fmt.Errorf("index: %s is too small for a header (%d bytes)", path, len(buf))
	}

	var magic [8]byte
	copy(magic[:], buf[:8])
	if magic != fileMagic {
		return nil, fmt.Errorf("index: %s is not an index file (bad magic)", path)
	}

	onDiskDim := int(binary.LittleEndian.Uint32(buf[8:12]))
	if onDiskDim != dim {
		return nil, fmt.Errorf("index: %s has dimension %d, expected %d", path, onDiskDim, dim)
	}

	count := int(binary.LittleEndian.Uint64(buf[12:20]))
	want := headerSize + count*dim*4
	if len(buf) != want {
		return nil, fmt.Errorf("index: %s is truncated: have %d bytes, header promises %d", path, len(buf), want)
	}

	f := &Flat{dim: dim, data: make([]float32, count*dim)}
	for i := range f.data {
		f.data[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[headerSize+i*4:]))
	}
	return f, nil
}
