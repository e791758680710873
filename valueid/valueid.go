// Package valueid gives values moving through the engine an identity: equality, a stable hash and a deep copy.
//
// The engine clones every value that enters shared state so that no mutable memory is shared between tasks
// or leaks from one execution into the next. Hashes are used to digest the state at the end of an execution.
package valueid

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
)

var ErrUnsupportedType = errors.New("valueid: type has no identity capability")

// Types that carry their own identity implement Identity.
// Equal values must have the same hash and Clone must return a value equal to the receiver that shares no mutable memory with it.
type Identity interface {
	Equal(other any) bool
	Hash() uint64
	Clone() any
}

// The identity capability of a type registered with Register
type Capability[T any] struct {
	Equal func(a, b T) bool
	Hash  func(v T) uint64
	Clone func(v T) T
}

// Returned by Register when a capability breaks its contract on one of the samples
type ContractError struct {
	Type   string
	Reason string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("valueid: capability of %v is inconsistent: %v", e.Type, e.Reason)
}

type capability struct {
	equal func(a, b any) bool
	hash  func(v any) uint64
	clone func(v any) any
}

// A Registry resolves the identity capability of values.
// It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	caps map[reflect.Type]capability
}

func NewRegistry() *Registry {
	return &Registry{caps: make(map[reflect.Type]capability)}
}

// Register the identity capability of T.
//
// The capability is checked against the samples: every sample must be equal to its clone,
// and samples that are equal must have the same hash. A ContractError is returned if the check fails.
func Register[T any](r *Registry, c Capability[T], samples ...T) error {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if c.Equal == nil || c.Hash == nil || c.Clone == nil {
		return &ContractError{Type: typ.String(), Reason: "equal, hash and clone must all be provided"}
	}
	for i, s := range samples {
		if !c.Equal(c.Clone(s), s) {
			return &ContractError{Type: typ.String(), Reason: fmt.Sprintf("clone of sample %d is not equal to the original", i)}
		}
		for j := i + 1; j < len(samples); j++ {
			if c.Equal(s, samples[j]) && c.Hash(s) != c.Hash(samples[j]) {
				return &ContractError{Type: typ.String(), Reason: fmt.Sprintf("samples %d and %d are equal but hash differently", i, j)}
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps[typ] = capability{
		equal: func(a, b any) bool { return c.Equal(a.(T), b.(T)) },
		hash:  func(v any) uint64 { return c.Hash(v.(T)) },
		clone: func(v any) any { return c.Clone(v.(T)) },
	}
	return nil
}

// Returns an error if the value has no identity capability
func (r *Registry) Check(v any) error {
	_, err := r.resolve(v)
	return err
}

// Returns true if the two values are equal.
// Values of different types are never equal.
func (r *Registry) Equal(a, b any) (bool, error) {
	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false, nil
	}
	c, err := r.resolve(a)
	if err != nil {
		return false, err
	}
	return c.equal(a, b), nil
}

func (r *Registry) Hash(v any) (uint64, error) {
	c, err := r.resolve(v)
	if err != nil {
		return 0, err
	}
	return c.hash(v), nil
}

// Returns a deep copy of the value
func (r *Registry) Clone(v any) (any, error) {
	c, err := r.resolve(v)
	if err != nil {
		return nil, err
	}
	return c.clone(v), nil
}

// Returns a single digest of all the values, in order
func (r *Registry) Digest(values ...any) (uint64, error) {
	d := xxhash.New()
	buf := make([]byte, 8)
	for _, v := range values {
		h, err := r.Hash(v)
		if err != nil {
			return 0, err
		}
		binary.LittleEndian.PutUint64(buf, h)
		d.Write(buf)
	}
	return d.Sum64(), nil
}

func (r *Registry) resolve(v any) (capability, error) {
	if v == nil {
		return nilCapability, nil
	}
	typ := reflect.TypeOf(v)

	r.mu.RLock()
	c, ok := r.caps[typ]
	r.mu.RUnlock()
	if ok {
		return c, nil
	}

	if _, ok := v.(Identity); ok {
		return identityCapability, nil
	}
	if _, ok := v.([]byte); ok {
		return bytesCapability, nil
	}
	if plain(typ) {
		return reflectCapability, nil
	}
	return capability{}, errors.WithMessagef(ErrUnsupportedType, "%v", typ)
}

var (
	nilCapability = capability{
		equal: func(a, b any) bool { return a == nil && b == nil },
		hash:  func(any) uint64 { return 0 },
		clone: func(any) any { return nil },
	}

	identityCapability = capability{
		equal: func(a, b any) bool { return a.(Identity).Equal(b) },
		hash:  func(v any) uint64 { return v.(Identity).Hash() },
		clone: func(v any) any { return v.(Identity).Clone() },
	}

	bytesCapability = capability{
		equal: func(a, b any) bool { return bytes.Equal(a.([]byte), b.([]byte)) },
		hash:  func(v any) uint64 { return xxhash.Sum64(v.([]byte)) },
		clone: func(v any) any {
			b := v.([]byte)
			if b == nil {
				return b
			}
			return append([]byte{}, b...)
		},
	}

	reflectCapability = capability{
		equal: reflect.DeepEqual,
		hash:  hashPlain,
		clone: func(v any) any { return deepCopy(reflect.ValueOf(v)).Interface() },
	}
)

var dumper = spew.ConfigState{
	Indent:                  " ",
	DisableMethods:          true,
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Render the value for humans, e.g. in traces and replay diffs
func Render(v any) string {
	return dumper.Sprintf("%v", v)
}
