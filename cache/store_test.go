package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	accounts := map[string]string{"PROJ-1": "4711", "PROJ-2": "4712"}
	if err := store.Set(KeyIssueAccountCache, accounts); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got map[string]string
	found, err := store.Get(KeyIssueAccountCache, &got)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatalf("expected entry to exist")
	}
	if got["PROJ-1"] != "4711" || got["PROJ-2"] != "4712" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestStore_GetAbsentKey(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	var out string
	found, err := store.Get("never-set", &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatalf("expected absent key")
	}
}

func TestStore_SetNilClearsKey(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	if err := store.Set(KeyDefaultValues, map[string]int{"activity": 3}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(KeyDefaultValues, nil); err != nil {
		t.Fatalf("clear via nil set: %v", err)
	}

	var out map[string]int
	found, err := store.Get(KeyDefaultValues, &out)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatalf("expected key to be cleared")
	}
}

func TestStore_ClearAll(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	for _, key := range KnownKeys() {
		if err := store.Set(key, "payload"); err != nil {
			t.Fatalf("set %s: %v", key, err)
		}
	}
	if err := store.ClearAll(); err != nil {
		t.Fatalf("clear all: %v", err)
	}

	for _, key := range KnownKeys() {
		var out string
		found, err := store.Get(key, &out)
		if err != nil {
			t.Fatalf("get %s: %v", key, err)
		}
		if found {
			t.Fatalf("expected %s to be cleared", key)
		}
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "cache.db")

	store, err := Open(path)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	lastTransfer := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if err := store.Set(KeyLastTransferDate, lastTransfer); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen cache: %v", err)
	}
	defer reopened.Close()

	var got time.Time
	found, err := reopened.Get(KeyLastTransferDate, &got)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if !found || !got.Equal(lastTransfer) {
		t.Fatalf("expected %v after reopen, got %v (found=%v)", lastTransfer, got, found)
	}
}

func TestStore_KeysSorted(t *testing.T) {
	t.Parallel()

	store := openTestStore(t)

	if err := store.Set("zeta", 1); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set("alpha", 2); err != nil {
		t.Fatalf("set: %v", err)
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	if len(keys) != 2 || keys[0] != "alpha" || keys[1] != "zeta" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}
