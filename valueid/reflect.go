package valueid

import (
	"encoding/binary"
	"math"
	"reflect"

	"github.com/cespare/xxhash/v2"
)

// Returns true if a copy of a value of the type shares no memory with the original
func flat(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	case reflect.Array:
		return flat(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !flat(t.Field(i).Type) {
				return false
			}
		}
		return true
	}
	return false
}

// Returns true if values of the type can be compared, hashed and copied by reflection.
// Slices and maps are allowed as long as they contain no references beyond themselves.
func plain(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Slice:
		return plain(t.Elem())
	case reflect.Map:
		return flat(t.Key()) && plain(t.Elem())
	}
	return flat(t)
}

func deepCopy(v reflect.Value) reflect.Value {
	switch v.Kind() {
	case reflect.Slice:
		if v.IsNil() {
			return v
		}
		c := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		if flat(v.Type().Elem()) {
			reflect.Copy(c, v)
			return c
		}
		for i := 0; i < v.Len(); i++ {
			c.Index(i).Set(deepCopy(v.Index(i)))
		}
		return c
	case reflect.Map:
		if v.IsNil() {
			return v
		}
		c := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			c.SetMapIndex(iter.Key(), deepCopy(iter.Value()))
		}
		return c
	}
	return v
}

// Returns the hash of a plain value.
// Values that are equal under reflect.DeepEqual hash the same: -0 and +0 are one value and maps are hashed independently of their order.
func hashPlain(v any) uint64 {
	d := xxhash.New()
	writeValue(d, reflect.ValueOf(v))
	return d.Sum64()
}

func writeValue(d *xxhash.Digest, v reflect.Value) {
	var buf [8]byte
	put := func(u uint64) {
		binary.LittleEndian.PutUint64(buf[:], u)
		d.Write(buf[:])
	}
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			put(1)
		} else {
			put(0)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		put(uint64(v.Int()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		put(v.Uint())
	case reflect.Float32, reflect.Float64:
		put(floatBits(v.Float()))
	case reflect.Complex64, reflect.Complex128:
		c := v.Complex()
		put(floatBits(real(c)))
		put(floatBits(imag(c)))
	case reflect.String:
		put(uint64(v.Len()))
		d.WriteString(v.String())
	case reflect.Array, reflect.Slice:
		put(uint64(v.Len()))
		for i := 0; i < v.Len(); i++ {
			writeValue(d, v.Index(i))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			writeValue(d, v.Field(i))
		}
	case reflect.Map:
		put(uint64(v.Len()))
		// Entries are combined with a sum so that iteration order does not matter
		var sum uint64
		iter := v.MapRange()
		for iter.Next() {
			entry := xxhash.New()
			writeValue(entry, iter.Key())
			writeValue(entry, iter.Value())
			sum += entry.Sum64()
		}
		put(sum)
	}
}

func floatBits(f float64) uint64 {
	switch {
	case f == 0:
		return 0
	case math.IsNaN(f):
		return math.Float64bits(math.NaN())
	}
	return math.Float64bits(f)
}
