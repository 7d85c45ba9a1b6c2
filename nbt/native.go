package nbt

import (
	"fmt"
	"math"
	"reflect"
	"slices"
)

// Native values are the plain Go representation used by map-based tag libraries:
// uint8 for bytes, int16, int32 and int64 for the integer tags, float32 and float64,
// string, fixed-size arrays for the array tags, slices for lists and map[string]any for
// compounds.

// FromNative converts a native value into a tag. Compound keys are sorted since maps
// carry no order. Slices become lists; arrays of uint8, int32 and int64 become the
// corresponding array tags.
func FromNative(v any) (Tag, error) {
	switch v := v.(type) {
	case Tag:
		return Clone(v), nil
	case uint8:
		return Byte(int8(v)), nil
	case int8:
		return Byte(v), nil
	case bool:
		if v {
			return Byte(1), nil
		}
		return Byte(0), nil
	case int16:
		return Short(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return Long(v), nil
	case int:
		if v >= math.MinInt32 && v <= math.MaxInt32 {
			return Int(int32(v)), nil
		}
		return Long(int64(v)), nil
	case float32:
		return Float(v), nil
	case float64:
		return Double(v), nil
	case string:
		return String(v), nil
	case map[string]any:
		return CompoundFromMap(v)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array:
		switch rv.Type().Elem().Kind() {
		case reflect.Uint8:
			out := make(ByteArray, rv.Len())
			for i := range out {
				out[i] = byte(rv.Index(i).Uint())
			}
			return out, nil
		case reflect.Int32:
			out := make(IntArray, rv.Len())
			for i := range out {
				out[i] = int32(rv.Index(i).Int())
			}
			return out, nil
		case reflect.Int64:
			out := make(LongArray, rv.Len())
			for i := range out {
				out[i] = rv.Index(i).Int()
			}
			return out, nil
		}
	case reflect.Slice:
		l := &List{Elem: nativeElemType(rv.Type().Elem()), Items: make([]Tag, 0, rv.Len())}
		for i := range rv.Len() {
			t, err := FromNative(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			if i == 0 {
				l.Elem = t.Type()
			}
			if err := l.Append(t); err != nil {
				return nil, err
			}
		}
		return l, nil
	}
	return nil, fmt.Errorf("%w: no tag for %T", ErrMalformedTag, v)
}

func nativeElemType(t reflect.Type) Type {
	switch t.Kind() {
	case reflect.Uint8, reflect.Int8, reflect.Bool:
		return TypeByte
	case reflect.Int16:
		return TypeShort
	case reflect.Int32:
		return TypeInt
	case reflect.Int64:
		return TypeLong
	case reflect.Float32:
		return TypeFloat
	case reflect.Float64:
		return TypeDouble
	case reflect.String:
		return TypeString
	case reflect.Map:
		return TypeCompound
	}
	return TypeEnd
}

// CompoundFromMap converts a native compound, sorting its keys.
func CompoundFromMap(m map[string]any) (*Compound, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	c := NewCompound()
	for _, k := range keys {
		t, err := FromNative(m[k])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		c.Set(k, t)
	}
	return c, nil
}

// ToNative converts t into its native representation.
func ToNative(t Tag) any {
	switch t := t.(type) {
	case Byte:
		return uint8(t)
	case Short:
		return int16(t)
	case Int:
		return int32(t)
	case Long:
		return int64(t)
	case Float:
		return float32(t)
	case Double:
		return float64(t)
	case String:
		return string(t)
	case ByteArray:
		return nativeArray(reflect.TypeFor[uint8](), len(t), func(i int) any { return t[i] })
	case IntArray:
		return nativeArray(reflect.TypeFor[int32](), len(t), func(i int) any { return t[i] })
	case LongArray:
		return nativeArray(reflect.TypeFor[int64](), len(t), func(i int) any { return t[i] })
	case *List:
		return nativeList(t)
	case *Compound:
		return t.Map()
	}
	return nil
}

func nativeArray(elem reflect.Type, n int, at func(int) any) any {
	arr := reflect.New(reflect.ArrayOf(n, elem)).Elem()
	for i := range n {
		arr.Index(i).Set(reflect.ValueOf(at(i)))
	}
	return arr.Interface()
}

var nativeListTypes = map[Type]reflect.Type{
	TypeByte:     reflect.TypeFor[uint8](),
	TypeShort:    reflect.TypeFor[int16](),
	TypeInt:      reflect.TypeFor[int32](),
	TypeLong:     reflect.TypeFor[int64](),
	TypeFloat:    reflect.TypeFor[float32](),
	TypeDouble:   reflect.TypeFor[float64](),
	TypeString:   reflect.TypeFor[string](),
	TypeCompound: reflect.TypeFor[map[string]any](),
}

func nativeList(l *List) any {
	values := make([]any, len(l.Items))
	for i, it := range l.Items {
		values[i] = ToNative(it)
	}
	elem, ok := nativeListTypes[l.Elem]
	if !ok {
		// Nested lists and arrays take the type of their items when they agree.
		elem = reflect.TypeFor[any]()
		if len(values) > 0 {
			first := reflect.TypeOf(values[0])
			same := true
			for _, v := range values[1:] {
				same = same && reflect.TypeOf(v) == first
			}
			if same {
				elem = first
			}
		}
	}
	out := reflect.MakeSlice(reflect.SliceOf(elem), len(values), len(values))
	for i, v := range values {
		out.Index(i).Set(reflect.ValueOf(v))
	}
	return out.Interface()
}

// Map returns c as a native compound. A nil compound yields an empty map.
func (c *Compound) Map() map[string]any {
	m := make(map[string]any, c.Len())
	for k, v := range c.All() {
		m[k] = ToNative(v)
	}
	return m
}
