package report

import (
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/tidwall/wal"
)

// An append-only log of counterexamples kept on disk
type Store struct {
	sync.Mutex
	log       *wal.Log
	nextIndex uint64
}

func OpenStore(path string) (*Store, error) {
	log, err := wal.Open(path, &wal.Options{
		NoSync: true,
		NoCopy: true,
	})
	if err != nil {
		return nil, errors.WithMessage(err, "could not open counterexample log")
	}
	lastIndex, err := log.LastIndex()
	if err != nil {
		log.Close()
		return nil, errors.WithMessage(err, "could not read last index")
	}
	return &Store{log: log, nextIndex: lastIndex + 1}, nil
}

// Append the counterexample and return its index
func (s *Store) Append(c *Counterexample) (uint64, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return 0, errors.WithMessage(err, "could not marshal counterexample")
	}

	s.Lock()
	defer s.Unlock()
	index := s.nextIndex
	if err := s.log.Write(index, data); err != nil {
		return 0, errors.WithMessagef(err, "could not write index %d", index)
	}
	if err := s.log.Sync(); err != nil {
		return 0, errors.WithMessage(err, "could not sync log to filesystem")
	}
	s.nextIndex++
	return index, nil
}

func (s *Store) Read(index uint64) (*Counterexample, error) {
	s.Lock()
	defer s.Unlock()
	data, err := s.log.Read(index)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not read index %d", index)
	}
	c := &Counterexample{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, errors.WithMessage(err, "error decoding counterexample, is the log corrupt?")
	}
	return c, nil
}

// Returns the index of the last counterexample. Zero if the store is empty.
func (s *Store) LastIndex() uint64 {
	s.Lock()
	defer s.Unlock()
	return s.nextIndex - 1
}

// Call fn with every counterexample in the store, in order
func (s *Store) LoadAll(fn func(index uint64, c *Counterexample)) error {
	last := s.LastIndex()
	for index := uint64(1); index <= last; index++ {
		c, err := s.Read(index)
		if err != nil {
			return err
		}
		fn(index, c)
	}
	return nil
}

func (s *Store) Close() error {
	s.Lock()
	defer s.Unlock()
	return s.log.Close()
}
