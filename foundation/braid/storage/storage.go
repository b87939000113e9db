// Package storage handles the lower level support for reading and writing
// chain records to disk. Records are stored in a bbolt database: one bucket
// maps an entry's content hash to its serialized record, a second keeps the
// append order so the chain can be walked from its first entry.
package storage

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/multiformats/go-multihash"
	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Bucket names inside the database file.
var (
	headerBucket  = []byte("header")
	entriesBucket = []byte("entries")
	indexBucket   = []byte("index")
)

// headerKey is the single key the header bucket holds.
var headerKey = []byte("header")

// Store provides persistent storage of one chain's records.
type Store struct {
	db *bolt.DB
}

// New opens or creates the database file at the specified path.
func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, err
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{headerBucket, entriesBucket, indexBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteHeader stores the chain's header record. A header is written once per
// database; rewriting with different contents is a caller error the chain
// layer detects when it re-verifies the record.
func (s *Store) WriteHeader(record []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(headerBucket).Put(headerKey, record)
	})
}

// Header retrieves the chain's header record.
func (s *Store) Header() ([]byte, error) {
	var record []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(headerBucket).Get(headerKey)
		if v == nil {
			return ErrNotFound
		}
		record = append([]byte(nil), v...)
		return nil
	})

	return record, err
}

// WriteEntry appends an entry record to the chain, keyed by its content
// hash and indexed by its position.
func (s *Store) WriteEntry(hash multihash.Multihash, record []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(entriesBucket).Put(hash, record); err != nil {
			return err
		}

		index := tx.Bucket(indexBucket)
		next, err := index.NextSequence()
		if err != nil {
			return err
		}

		return index.Put(itob(next), hash)
	})
}

// GetEntry retrieves an entry record by its content hash.
func (s *Store) GetEntry(hash multihash.Multihash) ([]byte, error) {
	var record []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(entriesBucket).Get(hash)
		if v == nil {
			return ErrNotFound
		}
		record = append([]byte(nil), v...)
		return nil
	})

	return record, err
}

// Latest returns the position and content hash of the most recently
// appended entry.
func (s *Store) Latest() (uint64, multihash.Multihash, error) {
	var pos uint64
	var hash multihash.Multihash

	err := s.db.View(func(tx *bolt.Tx) error {
		k, v := tx.Bucket(indexBucket).Cursor().Last()
		if k == nil {
			return ErrNotFound
		}
		pos = btoi(k)
		hash = append(multihash.Multihash(nil), v...)
		return nil
	})

	return pos, hash, err
}

// ForEach returns an iterator to walk through all the entries starting with
// the chain's first entry.
func (s *Store) ForEach() *Iterator {
	return &Iterator{store: s}
}

// =============================================================================

// Iterator walks the chain's entries in append order.
type Iterator struct {
	store   *Store
	current uint64
	eoc     bool
}

// Next retrieves the next entry record from the database.
func (it *Iterator) Next() (multihash.Multihash, []byte, error) {
	if it.eoc {
		return nil, nil, errors.New("end of chain")
	}

	it.current++

	var hash multihash.Multihash
	err := it.store.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(indexBucket).Get(itob(it.current))
		if v == nil {
			return ErrNotFound
		}
		hash = append(multihash.Multihash(nil), v...)
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		it.eoc = true
		return nil, nil, err
	}
	if err != nil {
		return nil, nil, err
	}

	record, err := it.store.GetEntry(hash)
	if err != nil {
		return nil, nil, err
	}

	return hash, record, nil
}

// Done returns the end of chain value.
func (it *Iterator) Done() bool {
	return it.eoc
}

// =============================================================================

// itob converts a position to its big-endian key form.
func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// btoi converts a big-endian key back to a position.
func btoi(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
