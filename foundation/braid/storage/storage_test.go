package storage_test

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/multiformats/go-multihash"

	"github.com/braidchain/pulse/foundation/braid/storage"
)

func newStore(t *testing.T) *storage.Store {
	t.Helper()

	store, err := storage.New(filepath.Join(t.TempDir(), "pulse.db"))
	if err != nil {
		t.Fatalf("Should be able to open the store: %s", err)
	}
	t.Cleanup(func() { store.Close() })

	return store
}

func hashOf(t *testing.T, data []byte) multihash.Multihash {
	t.Helper()

	hash, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		t.Fatalf("Should be able to hash test data: %s", err)
	}

	return hash
}

func Test_Header(t *testing.T) {
	store := newStore(t)

	if _, err := store.Header(); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Should report a missing header: got %v", err)
	}

	record := []byte(`{"hash_code":22}`)
	if err := store.WriteHeader(record); err != nil {
		t.Fatalf("Should be able to write the header: %s", err)
	}

	back, err := store.Header()
	if err != nil {
		t.Fatalf("Should be able to read the header back: %s", err)
	}
	if !bytes.Equal(back, record) {
		t.Fatalf("Should get back the same header record.")
	}
}

func Test_EntriesAndWalk(t *testing.T) {
	store := newStore(t)

	if _, _, err := store.Latest(); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Should report an empty chain: got %v", err)
	}

	var hashes []multihash.Multihash
	for i := 0; i < 5; i++ {
		record := fmt.Appendf(nil, `{"entry":%d}`, i)
		hash := hashOf(t, record)
		hashes = append(hashes, hash)

		if err := store.WriteEntry(hash, record); err != nil {
			t.Fatalf("Should be able to write entry %d: %s", i, err)
		}
	}

	pos, latest, err := store.Latest()
	if err != nil {
		t.Fatalf("Should be able to read the latest entry: %s", err)
	}
	if pos != 5 || !bytes.Equal(latest, hashes[4]) {
		t.Fatalf("Should report the last appended entry: got position %d", pos)
	}

	record, err := store.GetEntry(hashes[2])
	if err != nil {
		t.Fatalf("Should be able to read an entry by hash: %s", err)
	}
	if !bytes.Equal(record, []byte(`{"entry":2}`)) {
		t.Fatalf("Should get back the same entry record.")
	}

	var walked int
	for it := store.ForEach(); ; {
		hash, _, err := it.Next()
		if it.Done() {
			break
		}
		if err != nil {
			t.Fatalf("Should be able to walk the chain: %s", err)
		}

		if !bytes.Equal(hash, hashes[walked]) {
			t.Fatalf("Should walk entries in append order: position %d", walked)
		}
		walked++
	}

	if walked != 5 {
		t.Fatalf("Should walk all five entries: got %d", walked)
	}
}

func Test_GetEntryMissing(t *testing.T) {
	store := newStore(t)

	if _, err := store.GetEntry(hashOf(t, []byte("nope"))); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Should report a missing entry: got %v", err)
	}
}
