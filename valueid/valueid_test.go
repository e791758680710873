package valueid

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type point struct {
	X, Y int
}

type account struct {
	Owner   string
	History []int
}

type node struct {
	Next *node
}

type ledger struct {
	entries map[string]int
}

func (l *ledger) Equal(other any) bool {
	o, ok := other.(*ledger)
	if !ok || len(o.entries) != len(l.entries) {
		return false
	}
	for k, v := range l.entries {
		if o.entries[k] != v {
			return false
		}
	}
	return true
}

func (l *ledger) Hash() uint64 {
	var h uint64
	for k, v := range l.entries {
		h += uint64(len(k)) * 31 * uint64(v)
	}
	return h
}

func (l *ledger) Clone() any {
	c := &ledger{entries: make(map[string]int, len(l.entries))}
	for k, v := range l.entries {
		c.entries[k] = v
	}
	return c
}

func TestBuiltinScalars(t *testing.T) {
	r := NewRegistry()
	for _, v := range []any{1, "a", 2.5, true, point{1, 2}, [2]int{3, 4}, nil} {
		c, err := r.Clone(v)
		require.NoError(t, err)
		eq, err := r.Equal(v, c)
		require.NoError(t, err)
		require.True(t, eq, "clone of %v should be equal", v)

		h1, err := r.Hash(v)
		require.NoError(t, err)
		h2, err := r.Hash(c)
		require.NoError(t, err)
		require.Equal(t, h1, h2)
	}

	eq, err := r.Equal(1, "1")
	require.NoError(t, err)
	require.False(t, eq, "values of different types are never equal")
}

type reading struct {
	Celsius float64
	Phase   complex128
	Samples [2]float32
}

func TestEqualValuesHashAlike(t *testing.T) {
	r := NewRegistry()
	negZero := math.Copysign(0, -1)
	pairs := [][2]any{
		{0.0, negZero},
		{reading{Celsius: 0, Samples: [2]float32{0, 1}}, reading{Celsius: negZero, Phase: complex(negZero, 0), Samples: [2]float32{float32(negZero), 1}}},
		{map[string]int{"a": 1, "b": 2, "c": 3}, map[string]int{"c": 3, "a": 1, "b": 2}},
		{map[int][]float64{1: {0}, 2: {1.5}}, map[int][]float64{2: {1.5}, 1: {negZero}}},
	}
	for _, p := range pairs {
		eq, err := r.Equal(p[0], p[1])
		require.NoError(t, err)
		require.True(t, eq, "%v and %v should be equal", p[0], p[1])

		h1, err := r.Hash(p[0])
		require.NoError(t, err)
		h2, err := r.Hash(p[1])
		require.NoError(t, err)
		require.Equal(t, h1, h2, "%v and %v should hash alike", p[0], p[1])
	}

	h1, err := r.Hash(map[string]int{"a": 1, "b": 2})
	require.NoError(t, err)
	h2, err := r.Hash(map[string]int{"a": 2, "b": 1})
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestCloneSharesNoMemory(t *testing.T) {
	r := NewRegistry()

	s := []int{1, 2, 3}
	c, err := r.Clone(s)
	require.NoError(t, err)
	c.([]int)[0] = 9
	require.Equal(t, 1, s[0])

	m := map[string][]int{"a": {1}}
	cm, err := r.Clone(m)
	require.NoError(t, err)
	cm.(map[string][]int)["a"][0] = 9
	require.Equal(t, 1, m["a"][0])

	b := []byte("abc")
	cb, err := r.Clone(b)
	require.NoError(t, err)
	cb.([]byte)[0] = 'x'
	require.Equal(t, "abc", string(b))
}

func TestUnsupportedTypes(t *testing.T) {
	r := NewRegistry()
	_, err := r.Clone(&node{})
	require.True(t, errors.Is(err, ErrUnsupportedType))

	// Slices inside structs hold references
	require.Error(t, r.Check(account{Owner: "a"}))
	require.Error(t, r.Check(make(chan int)))
}

func TestIdentityInterface(t *testing.T) {
	r := NewRegistry()
	l := &ledger{entries: map[string]int{"a": 1}}
	c, err := r.Clone(l)
	require.NoError(t, err)
	c.(*ledger).entries["a"] = 2
	require.Equal(t, 1, l.entries["a"])

	eq, err := r.Equal(l, &ledger{entries: map[string]int{"a": 1}})
	require.NoError(t, err)
	require.True(t, eq)
}

func TestRegister(t *testing.T) {
	r := NewRegistry()
	err := Register(r, Capability[account]{
		Equal: func(a, b account) bool {
			if a.Owner != b.Owner || len(a.History) != len(b.History) {
				return false
			}
			for i := range a.History {
				if a.History[i] != b.History[i] {
					return false
				}
			}
			return true
		},
		Hash: func(v account) uint64 { return uint64(len(v.Owner) + len(v.History)) },
		Clone: func(v account) account {
			return account{Owner: v.Owner, History: append([]int{}, v.History...)}
		},
	}, account{Owner: "a", History: []int{1}}, account{Owner: "a", History: []int{1}})
	require.NoError(t, err)

	original := account{Owner: "b", History: []int{4}}
	c, err := r.Clone(original)
	require.NoError(t, err)
	c.(account).History[0] = 5
	require.Equal(t, 4, original.History[0])
}

func TestRegisterRejectsBrokenContract(t *testing.T) {
	r := NewRegistry()
	err := Register(r, Capability[point]{
		Equal: func(a, b point) bool { return a.X == b.X },
		Hash:  func(v point) uint64 { return uint64(v.Y) },
		Clone: func(v point) point { return v },
	}, point{1, 1}, point{1, 2})

	var contract *ContractError
	require.True(t, errors.As(err, &contract))
	require.Contains(t, contract.Error(), "hash differently")

	err = Register(r, Capability[point]{
		Equal: func(a, b point) bool { return a == b },
		Hash:  func(v point) uint64 { return 0 },
		Clone: func(v point) point { return point{} },
	}, point{1, 1})
	require.True(t, errors.As(err, &contract))
	require.Contains(t, contract.Error(), "clone")
}

func TestDigest(t *testing.T) {
	r := NewRegistry()
	a, err := r.Digest(1, "x", point{1, 2})
	require.NoError(t, err)
	b, err := r.Digest(1, "x", point{1, 2})
	require.NoError(t, err)
	c, err := r.Digest("x", 1, point{1, 2})
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)

	_, err = r.Digest(&node{})
	require.Error(t, err)
}
