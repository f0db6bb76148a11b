package storage

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

func TestSQLiteStore_SaveLoadRemove(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := NewSQLiteStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteStore error: %v", err)
	}
	defer s.Close()

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
		t.Fatalf("Load after upsert = %q, want v2", got)
	}

	s.Remove(ctx, "k")
	if _, ok := s.Load(ctx, "k"); ok {
		t.Fatalf("expected miss after Remove")
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := NewSQLiteStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSQLiteStore error: %v", err)
	}
	s.Save(ctx, "login:userLogin", []byte(`"team089-1"`))
	if err := s.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	reopened, err := NewSQLiteStore(path, zap.NewNop())
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer reopened.Close()

	got, ok := reopened.Load(ctx, "login:userLogin")
	if !ok || string(got) != `"team089-1"` {
		t.Fatalf("Load after reopen = (%q, %v)", got, ok)
	}
}
