package model

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTuple_PackOrder(t *testing.T) {
	// 按期望顺序排列, 打包后的字节序必须一致;
	ordered := []Tuple{
		TupleOf(nil),
		TupleOf([]byte("a")),
		TupleOf("a"),
		TupleOf("a", int64(1)),
		TupleOf("a\x00b"),
		TupleOf("ab"),
		TupleOf("b"),
		TupleOf(TupleOf("x")),
		TupleOf(int64(math.MinInt64)),
		TupleOf(int64(-256)),
		TupleOf(int64(-255)),
		TupleOf(int64(-1)),
		TupleOf(int64(0)),
		TupleOf(int64(1)),
		TupleOf(int64(255)),
		TupleOf(int64(256)),
		TupleOf(int64(math.MaxInt64)),
		TupleOf(false),
		TupleOf(true),
	}
	for i := 1; i < len(ordered); i++ {
		a, b := ordered[i-1], ordered[i]
		assert.Negative(t, bytes.Compare(a.Pack(), b.Pack()), "%s < %s", a, b)
		assert.Equal(t, -1, Compare(a, b), "%s < %s", a, b)
		assert.Equal(t, 1, Compare(b, a))
	}

	shuffled := make([]Tuple, 0, len(ordered))
	for i := len(ordered) - 1; i >= 0; i-- {
		shuffled = append(shuffled, ordered[i])
	}
	sort.Slice(shuffled, func(i, j int) bool { return Compare(shuffled[i], shuffled[j]) < 0 })
	assert.Equal(t, ordered, shuffled)
}

func TestTuple_Unpack(t *testing.T) {
	in := TupleOf("a\x00b", []byte{0, 1}, int64(-42), int64(70000), nil, true, false,
		TupleOf("n", nil, int64(3)))
	out, err := Unpack(in.Pack())
	require.NoError(t, err)
	assert.True(t, Equal(in, out))
	assert.Equal(t, int64(-42), out[2])
	assert.Equal(t, "a\x00b", out[0])

	ints := TupleOf(1, int8(2), int16(3), int32(4), uint8(5), uint16(6), uint32(7), uint(8), uint64(9))
	out, err = Unpack(ints.Pack())
	require.NoError(t, err)
	for i, v := range out {
		assert.Equal(t, int64(i+1), v)
	}
}

func TestTuple_Invalid(t *testing.T) {
	err := TupleOf(3.14).Validate()
	assert.True(t, errors.Is(err, common.ErrUnknownTupleType))
	assert.Panics(t, func() { TupleOf(struct{}{}).Pack() })
	assert.Error(t, TupleOf(uint64(math.MaxUint64)).Validate())

	_, err = Unpack([]byte{stringCode, 'a'})
	assert.True(t, errors.Is(err, common.ErrBadTuple))
	_, err = Unpack([]byte{0x30})
	assert.True(t, errors.Is(err, common.ErrBadTuple))
}

func TestTuple_Helpers(t *testing.T) {
	tp := TupleOf("g", "tok", int64(7))
	assert.Equal(t, TupleOf("tok", int64(7)), tp.SubTuple(1, 10))
	assert.Equal(t, Tuple{}, tp.SubTuple(5, 10))
	assert.Equal(t, TupleOf("g", "tok", int64(7), "x"), tp.Append("x"))
	assert.Equal(t, 3, len(tp))
	assert.Equal(t, `("g", "tok", 7)`, tp.String())
}

func TestStrinc(t *testing.T) {
	out, err := Strinc([]byte{1, 2, 0xFF})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 3}, out)
	_, err = Strinc([]byte{0xFF, 0xFF})
	assert.True(t, errors.Is(err, common.ErrEmptyKey))
}
