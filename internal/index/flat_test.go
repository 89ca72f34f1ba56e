package index

import (
	"path/filepath"
	"testing"
)

func Test_Flat_NewRejectsBadDimension(t *testing.T) {
	t.Parallel()

	if _, err := NewFlat(0); err == nil {
		t.Error("want error for dim=0")
	}
	if _, err := NewFlat(-3); err == nil {
		t.Error("want error for negative dim")
	}
}

func Test_Flat_AppendRejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	f, err := NewFlat(3)
	if err != nil {
		t.Fatal(err)
	}
	err = f.Append([][]float32{{1, 2, 3}, {1, 2}})
	if err == nil {
		t.Fatal("want dimension mismatch error")
	}
	if f.Len() != 0 {
		t.Errorf("failed append must not add vectors, got len %d", f.Len())
	}
}

func Test_Flat_SearchOrdersByDistance(t *testing.T) {
	t.Parallel()

	f, err := NewFlat(2)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Append([][]float32{
		{0, 0},  // position 0
		{10, 0}, // position 1
		{1, 1},  // position 2
	}); err != nil {
		t.Fatal(err)
	}

	hits, err := f.Search([]float32{1, 0}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 3 {
		t.Fatalf("want 3 hits, got %d", len(hits))
	}
	// Squared distances: pos0=1, pos1=81, pos2=1 — pos0 wins the tie on position.
	if hits[0].Position != 0 || hits[1].Position != 2 || hits[2].Position != 1 {
		t.Errorf("want positions [0 2 1], got [%d %d %d]",
			hits[0].Position, hits[1].Position, hits[2].Position)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Distance < hits[i-1].Distance {
			t.Errorf("hits not sorted: hit %d distance %f < hit %d distance %f",
				i, hits[i].Distance, i-1, hits[i-1].Distance)
		}
	}
}

func Test_Flat_SearchFewerVectorsThanK(t *testing.T) {
	t.Parallel()

	f, _ := NewFlat(2)
	if err := f.Append([][]float32{{1, 2}}); err != nil {
		t.Fatal(err)
	}

	hits, err := f.Search([]float32{0, 0}, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("want 1 hit, got %d", len(hits))
	}
}

func Test_Flat_SearchEmptyIndex(t *testing.T) {
	t.Parallel()

	f, _ := NewFlat(2)
	hits, err := f.Search([]float32{0, 0}, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 0 {
		t.Errorf("want 0 hits from empty index, got %d", len(hits))
	}
}

func Test_Flat_WriteAndReadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "idx.bin")

	f, _ := NewFlat(3)
	vecs := [][]float32{{1, 2, 3}, {4, 5, 6}, {-1, 0.5, 2.25}}
	if err := f.Append(vecs); err != nil {
		t.Fatal(err)
	}
	if err := f.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	got, err := ReadFile(path, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 3 {
		t.Fatalf("want 3 vectors after reload, got %d", got.Len())
	}

	// Exact-match search must find each original vector at distance 0.
	for i, v := range vecs {
		hits, err := got.Search(v, 1)
		if err != nil {
			t.Fatal(err)
		}
		if hits[0].Position != i || hits[0].Distance != 0 {
			t.Errorf("vector %d: want exact hit at position %d, got position %d distance %f",
				i, i, hits[0].Position, hits[0].Distance)
		}
	}
}

func Test_Flat_ReadRejectsDimensionMismatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "idx.bin")

	f, _ := NewFlat(4)
	if err := f.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadFile(path, 8); err == nil {
		t.Error("want error when on-disk dimension differs from expected")
	}
}
