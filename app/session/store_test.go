package session

import (
	"path/filepath"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()

	if _, ok, err := store.GetItem("missing"); ok || err != nil {
		t.Errorf("Expected absence without error, got ok=%v err=%v", ok, err)
	}

	if err := store.SetItem("key", "value"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	value, ok, err := store.GetItem("key")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !ok || value != "value" {
		t.Errorf("Expected value 'value', got: %q ok=%v", value, ok)
	}

	if err := store.RemoveItem("key"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, ok, _ := store.GetItem("key"); ok {
		t.Error("Expected key to be removed")
	}
}

func TestBoltStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	store, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer store.Close()

	if _, ok, err := store.GetItem("missing"); ok || err != nil {
		t.Errorf("Expected absence without error, got ok=%v err=%v", ok, err)
	}

	if err := store.SetItem(SnapshotKey, `{"filterMode":"all"}`); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	value, ok, err := store.GetItem(SnapshotKey)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !ok || value != `{"filterMode":"all"}` {
		t.Errorf("Expected stored snapshot payload, got: %q ok=%v", value, ok)
	}

	if err := store.SetItem(SnapshotKey, `{"filterMode":"unread"}`); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	value, _, _ = store.GetItem(SnapshotKey)
	if value != `{"filterMode":"unread"}` {
		t.Errorf("Expected overwrite to replace value, got: %q", value)
	}

	if err := store.RemoveItem(SnapshotKey); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if _, ok, _ := store.GetItem(SnapshotKey); ok {
		t.Error("Expected key to be removed")
	}
}

func TestBoltStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")

	store, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := store.SetItem("key", "survives"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	reopened, err := NewBoltStore(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.GetItem("key")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !ok || value != "survives" {
		t.Errorf("Expected value to survive reopen, got: %q ok=%v", value, ok)
	}
}
