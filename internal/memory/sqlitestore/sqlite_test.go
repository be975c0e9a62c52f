package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"

	"codenerd-cognitive/internal/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id string) *memory.Record {
	return &memory.Record{
		ID:          id,
		Type:        memory.TypeSemantic,
		Content:     "water boils at 100C",
		ContentHash: "hash-" + id,
		Importance:  0.6,
		Tags:        []string{"physics", "facts"},
		Semantic:    &memory.Semantic{Fact: "water boils at 100C", Category: "physics", Confidence: 0.9},
	}
}

func TestSaveAndLoadAllRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("mem-1")
	if err := s.Save(ctx, rec); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record, got %d", len(all))
	}
	if all[0].Content != rec.Content {
		t.Errorf("expected content to round-trip, got %q", all[0].Content)
	}
	if len(all[0].Tags) != 2 {
		t.Errorf("expected tags to round-trip, got %v", all[0].Tags)
	}
	if all[0].Semantic == nil || all[0].Semantic.Fact != "water boils at 100C" {
		t.Errorf("expected semantic payload to round-trip, got %+v", all[0].Semantic)
	}
}

func TestSaveUpsertsOnConflict(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("mem-1")
	s.Save(ctx, rec)

	rec.Importance = 0.9
	rec.AccessCount = 3
	s.Save(ctx, rec)

	all, _ := s.LoadAll(ctx)
	if len(all) != 1 {
		t.Fatalf("expected upsert to keep a single row, got %d", len(all))
	}
	if all[0].Importance != 0.9 || all[0].AccessCount != 3 {
		t.Errorf("expected updated fields to persist, got %+v", all[0])
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.Save(ctx, sampleRecord("mem-1"))
	if err := s.Delete(ctx, "mem-1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	all, _ := s.LoadAll(ctx)
	if len(all) != 0 {
		t.Errorf("expected no records after delete, got %d", len(all))
	}
}

func TestLoadAllIncludesTombstonedRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("mem-1")
	rec.Tombstoned = true
	s.Save(ctx, rec)

	all, _ := s.LoadAll(ctx)
	if len(all) != 1 || !all[0].Tombstoned {
		t.Error("expected repository LoadAll to surface tombstoned records for the in-process store to filter")
	}
}

func TestSaveWithEmbeddingRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("mem-1")
	rec.Embedding = []float32{0.1, 0.2, 0.3}
	s.Save(ctx, rec)

	all, _ := s.LoadAll(ctx)
	if len(all[0].Embedding) != 3 {
		t.Errorf("expected embedding to round-trip with 3 dims, got %v", all[0].Embedding)
	}
}

func TestReopenPersistsAcrossHandles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "memory.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	s1.Save(context.Background(), sampleRecord("mem-1"))
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer s2.Close()

	all, err := s2.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll error: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected record to persist across reopen, got %d", len(all))
	}
}
