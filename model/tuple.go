package model

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/kebukeYi/TrainRecord/common"
	"github.com/pkg/errors"
)

// Tuple is an ordered sequence of typed components. Supported components are
// nil, integers, string, []byte, bool and nested Tuple values.
type Tuple []interface{}

const (
	nilCode    byte = 0x00
	bytesCode  byte = 0x01
	stringCode byte = 0x02
	nestedCode byte = 0x05
	intZero    byte = 0x14
	falseCode  byte = 0x26
	trueCode   byte = 0x27
	escapeByte byte = 0xFF
)

func TupleOf(items ...interface{}) Tuple {
	return Tuple(items)
}

// Validate reports the first component that cannot be encoded.
func (t Tuple) Validate() error {
	_, err := appendTuple(nil, t, false)
	return err
}

// Pack returns the order-preserving encoding of t. It panics on components of
// unknown type; use Validate on untrusted input first.
func (t Tuple) Pack() []byte {
	out, err := appendTuple(nil, t, false)
	if err != nil {
		panic(err)
	}
	return out
}

func (t Tuple) Append(items ...interface{}) Tuple {
	out := make(Tuple, 0, len(t)+len(items))
	out = append(out, t...)
	return append(out, items...)
}

func (t Tuple) Concat(other Tuple) Tuple {
	return t.Append(other...)
}

// SubTuple returns the components in [from, to), clamped to the tuple length.
func (t Tuple) SubTuple(from, to int) Tuple {
	if to > len(t) {
		to = len(t)
	}
	if from > to {
		from = to
	}
	out := make(Tuple, to-from)
	copy(out, t[from:to])
	return out
}

func (t Tuple) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, item := range t {
		if i > 0 {
			sb.WriteString(", ")
		}
		switch v := item.(type) {
		case nil:
			sb.WriteString("null")
		case string:
			sb.WriteString(strconv.Quote(v))
		case []byte:
			sb.WriteString(fmt.Sprintf("b%q", v))
		case Tuple:
			sb.WriteString(v.String())
		default:
			sb.WriteString(fmt.Sprint(v))
		}
	}
	sb.WriteByte(')')
	return sb.String()
}

// Compare orders tuples component-wise by their packed encodings, which makes
// the result identical to comparing Pack() outputs byte-wise.
func Compare(a, b Tuple) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := bytes.Compare(packItem(a[i]), packItem(b[i])); c != 0 {
			return c
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

func Equal(a, b Tuple) bool {
	return Compare(a, b) == 0
}

func packItem(item interface{}) []byte {
	out, err := appendItem(nil, item, false)
	if err != nil {
		panic(err)
	}
	return out
}

func appendTuple(dst []byte, t Tuple, nested bool) ([]byte, error) {
	var err error
	for _, item := range t {
		if dst, err = appendItem(dst, item, nested); err != nil {
			return nil, err
		}
	}
	return dst, nil
}

func appendItem(dst []byte, item interface{}, nested bool) ([]byte, error) {
	switch v := item.(type) {
	case nil:
		if nested {
			return append(dst, nilCode, escapeByte), nil
		}
		return append(dst, nilCode), nil
	case []byte:
		dst = append(dst, bytesCode)
		return append(escape(dst, v), nilCode), nil
	case string:
		dst = append(dst, stringCode)
		return append(escape(dst, []byte(v)), nilCode), nil
	case Tuple:
		return appendNested(dst, v)
	case []interface{}:
		return appendNested(dst, Tuple(v))
	case bool:
		if v {
			return append(dst, trueCode), nil
		}
		return append(dst, falseCode), nil
	case int:
		return appendInt(dst, int64(v)), nil
	case int8:
		return appendInt(dst, int64(v)), nil
	case int16:
		return appendInt(dst, int64(v)), nil
	case int32:
		return appendInt(dst, int64(v)), nil
	case int64:
		return appendInt(dst, v), nil
	case uint8:
		return appendInt(dst, int64(v)), nil
	case uint16:
		return appendInt(dst, int64(v)), nil
	case uint32:
		return appendInt(dst, int64(v)), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, errors.Wrapf(common.ErrUnknownTupleType, "unsigned value %d overflows int64", v)
		}
		return appendInt(dst, int64(v)), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, errors.Wrapf(common.ErrUnknownTupleType, "unsigned value %d overflows int64", v)
		}
		return appendInt(dst, int64(v)), nil
	}
	return nil, errors.Wrapf(common.ErrUnknownTupleType, "%T", item)
}

func appendNested(dst []byte, t Tuple) ([]byte, error) {
	dst = append(dst, nestedCode)
	dst, err := appendTuple(dst, t, true)
	if err != nil {
		return nil, err
	}
	return append(dst, nilCode), nil
}

func escape(dst, src []byte) []byte {
	for _, b := range src {
		dst = append(dst, b)
		if b == nilCode {
			dst = append(dst, escapeByte)
		}
	}
	return dst
}

func byteLen(u uint64) int {
	n := 0
	for ; u > 0; u >>= 8 {
		n++
	}
	return n
}

func lenMask(n int) uint64 {
	if n >= 8 {
		return math.MaxUint64
	}
	return (uint64(1) << (8 * uint(n))) - 1
}

func appendInt(dst []byte, n int64) []byte {
	if n == 0 {
		return append(dst, intZero)
	}
	var scratch [8]byte
	if n > 0 {
		u := uint64(n)
		size := byteLen(u)
		binary.BigEndian.PutUint64(scratch[:], u)
		dst = append(dst, intZero+byte(size))
		return append(dst, scratch[8-size:]...)
	}
	// -MinInt64 wraps back to MinInt64, whose uint64 image is the right magnitude.
	u := uint64(-n)
	size := byteLen(u)
	binary.BigEndian.PutUint64(scratch[:], ^u&lenMask(size))
	dst = append(dst, intZero-byte(size))
	return append(dst, scratch[8-size:]...)
}

// Unpack decodes a packed tuple.
func Unpack(b []byte) (Tuple, error) {
	t := Tuple{}
	for pos := 0; pos < len(b); {
		item, next, err := decodeItem(b, pos, false)
		if err != nil {
			return nil, err
		}
		t = append(t, item)
		pos = next
	}
	return t, nil
}

func decodeItem(b []byte, pos int, nested bool) (interface{}, int, error) {
	code := b[pos]
	switch {
	case code == nilCode:
		if nested {
			if pos+1 < len(b) && b[pos+1] == escapeByte {
				return nil, pos + 2, nil
			}
			return nil, pos, errors.Wrapf(common.ErrBadTuple, "unexpected terminator at %d", pos)
		}
		return nil, pos + 1, nil
	case code == bytesCode:
		raw, next, err := decodeEscaped(b, pos+1)
		return raw, next, err
	case code == stringCode:
		raw, next, err := decodeEscaped(b, pos+1)
		return string(raw), next, err
	case code == nestedCode:
		t := Tuple{}
		p := pos + 1
		for {
			if p >= len(b) {
				return nil, p, errors.Wrap(common.ErrBadTuple, "unterminated nested tuple")
			}
			if b[p] == nilCode {
				if p+1 < len(b) && b[p+1] == escapeByte {
					t = append(t, nil)
					p += 2
					continue
				}
				return t, p + 1, nil
			}
			item, next, err := decodeItem(b, p, true)
			if err != nil {
				return nil, next, err
			}
			t = append(t, item)
			p = next
		}
	case code >= intZero-8 && code <= intZero+8:
		return decodeInt(b, pos)
	case code == falseCode:
		return false, pos + 1, nil
	case code == trueCode:
		return true, pos + 1, nil
	}
	return nil, pos, errors.Wrapf(common.ErrBadTuple, "unknown type code 0x%02x at %d", code, pos)
}

func decodeEscaped(b []byte, pos int) ([]byte, int, error) {
	out := make([]byte, 0, 16)
	for i := pos; i < len(b); i++ {
		if b[i] != nilCode {
			out = append(out, b[i])
			continue
		}
		if i+1 < len(b) && b[i+1] == escapeByte {
			out = append(out, nilCode)
			i++
			continue
		}
		return out, i + 1, nil
	}
	return nil, len(b), errors.Wrap(common.ErrBadTuple, "unterminated byte string")
}

func decodeInt(b []byte, pos int) (interface{}, int, error) {
	code := b[pos]
	if code == intZero {
		return int64(0), pos + 1, nil
	}
	negative := code < intZero
	size := int(code) - int(intZero)
	if negative {
		size = -size
	}
	end := pos + 1 + size
	if end > len(b) {
		return nil, pos, errors.Wrapf(common.ErrBadTuple, "truncated integer at %d", pos)
	}
	var scratch [8]byte
	copy(scratch[8-size:], b[pos+1:end])
	u := binary.BigEndian.Uint64(scratch[:])
	if !negative {
		if u > math.MaxInt64 {
			return nil, pos, errors.Wrapf(common.ErrBadTuple, "integer overflow at %d", pos)
		}
		return int64(u), end, nil
	}
	magnitude := ^u & lenMask(size)
	return -int64(magnitude), end, nil
}
