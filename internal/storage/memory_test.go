package storage

import (
	"context"
	"testing"
)

func TestMemoryStore_SaveLoadRemove(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, ok := s.Load(ctx, "missing"); ok {
		t.Fatalf("expected miss for unknown key")
	}

	s.Save(ctx, "k", []byte("v1"))
	got, ok := s.Load(ctx, "k")
	if !ok || string(got) != "v1" {
		t.Fatalf("Load = (%q, %v), want (v1, true)", got, ok)
	}

	s.Save(ctx, "k", []byte("v2"))
	got, _ = s.Load(ctx, "k")
	if string(got) != "v2" {
		t.Fatalf("Load after overwrite = %q, want v2", got)
	}

	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1", s.Len())
	}

	s.Remove(ctx, "k")
	if _, ok := s.Load(ctx, "k"); ok {
		t.Fatalf("expected miss after Remove")
	}
	if s.Len() != 0 {
		t.Fatalf("Len = %d, want 0", s.Len())
	}
}

func TestMemoryStore_CopiesValues(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	original := []byte("value")
	s.Save(ctx, "k", original)
	original[0] = 'X'

	got, _ := s.Load(ctx, "k")
	if string(got) != "value" {
		t.Fatalf("stored value mutated through caller slice: %q", got)
	}

	got[0] = 'Y'
	again, _ := s.Load(ctx, "k")
	if string(again) != "value" {
		t.Fatalf("stored value mutated through loaded slice: %q", again)
	}
}
