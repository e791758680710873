package stateManager

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"
)

// A set of digests
type Store interface {
	// Add the digest. Returns true if it was not in the set.
	Add(digest uint64) (bool, error)
	Len() int
	Close() error
}

type MemoryStore struct {
	sync.Mutex
	seen map[uint64]bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[uint64]bool)}
}

func (s *MemoryStore) Add(digest uint64) (bool, error) {
	s.Lock()
	defer s.Unlock()
	if s.seen[digest] {
		return false, nil
	}
	s.seen[digest] = true
	return true, nil
}

func (s *MemoryStore) Len() int {
	s.Lock()
	defer s.Unlock()
	return len(s.seen)
}

func (s *MemoryStore) Close() error {
	return nil
}

// A digest set kept in a badger database.
// Several stores can share one database by using different prefixes.
// Keeping the set on disk lets consecutive explorations of the same program skip states seen before.
type BadgerStore struct {
	db     *badger.DB
	prefix []byte
	count  atomic.Int64
	owned  bool
}

// Open a badger database in dir. An empty dir keeps the database in memory.
func OpenBadger(dir string) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.WithMessage(err, "stateManager: opening badger")
	}
	return db, nil
}

// Create a store over the digests with the prefix in db. Digests already in the database count as seen.
func NewBadgerStore(db *badger.DB, prefix string) (*BadgerStore, error) {
	s := &BadgerStore{db: db, prefix: []byte(prefix)}
	err := db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: s.prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			s.count.Add(1)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithMessage(err, "stateManager: counting stored digests")
	}
	return s, nil
}

// Open a store in its own database. Closing the store closes the database.
func OpenBadgerStore(dir, prefix string) (*BadgerStore, error) {
	db, err := OpenBadger(dir)
	if err != nil {
		return nil, err
	}
	s, err := NewBadgerStore(db, prefix)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

func (s *BadgerStore) key(digest uint64) []byte {
	key := make([]byte, len(s.prefix)+8)
	copy(key, s.prefix)
	binary.BigEndian.PutUint64(key[len(s.prefix):], digest)
	return key
}

func (s *BadgerStore) Add(digest uint64) (bool, error) {
	key := s.key(digest)
	for {
		added := false
		err := s.db.Update(func(txn *badger.Txn) error {
			_, err := txn.Get(key)
			if err == nil {
				return nil
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			added = true
			return txn.Set(key, []byte{})
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return false, errors.WithMessage(err, "stateManager: storing digest")
		}
		if added {
			s.count.Add(1)
		}
		return added, nil
	}
}

func (s *BadgerStore) Len() int {
	return int(s.count.Load())
}

func (s *BadgerStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
