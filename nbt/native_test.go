package nbt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNativeRoundTrip(t *testing.T) {
	c := NewCompound()
	c.Set("b", Byte(1))
	c.Set("s", Short(-2))
	c.Set("i", Int(3))
	c.Set("l", Long(4))
	c.Set("f", Float(0.5))
	c.Set("d", Double(0.25))
	c.Set("str", String("x"))
	c.Set("ba", ByteArray{1, 2})
	c.Set("ia", IntArray{5, 6, 7})
	c.Set("la", LongArray{8})
	c.Set("ints", &List{Elem: TypeInt, Items: []Tag{Int(1), Int(2)}})
	c.Set("lists", &List{Elem: TypeList, Items: []Tag{&List{Elem: TypeString, Items: []Tag{String("a")}}}})
	c.Set("empty", &List{Elem: TypeEnd})
	inner := NewCompound()
	inner.Set("k", String("v"))
	c.Set("nested", &List{Elem: TypeCompound, Items: []Tag{inner}})

	m := c.Map()
	assert.Equal(t, uint8(1), m["b"])
	assert.Equal(t, [3]int32{5, 6, 7}, m["ia"])
	assert.Equal(t, []int32{1, 2}, m["ints"])
	assert.Equal(t, [2]byte{1, 2}, m["ba"])

	back, err := CompoundFromMap(m)
	require.NoError(t, err)
	assert.True(t, Equal(c, back), "got %s", Stringify(back))
	assert.Equal(t, []string{"b", "ba", "d", "empty", "f", "i", "ia", "ints", "l", "la", "lists", "nested", "s", "str"}, back.Keys())
}

func TestFromNativeRejectsUnknownTypes(t *testing.T) {
	_, err := FromNative(struct{}{})
	assert.ErrorIs(t, err, ErrMalformedTag)

	_, err = FromNative([]any{int32(1), "mixed"})
	assert.ErrorIs(t, err, ErrMalformedTag)
}

func TestFromNativeInt(t *testing.T) {
	v, err := FromNative(7)
	require.NoError(t, err)
	assert.Equal(t, Int(7), v)

	v, err = FromNative(1 << 40)
	require.NoError(t, err)
	assert.Equal(t, Long(1<<40), v)
}
