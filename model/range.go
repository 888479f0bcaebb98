package model

import (
	"github.com/cespare/xxhash/v2"
	"github.com/kebukeYi/TrainRecord/common"
	"github.com/pkg/errors"
)

// EndpointType says how one end of a TupleRange is interpreted.
type EndpointType uint8

const (
	TreeStart EndpointType = iota
	TreeEnd
	RangeInclusive
	RangeExclusive
	PrefixString
)

func (e EndpointType) String() string {
	switch e {
	case TreeStart:
		return "TREE_START"
	case TreeEnd:
		return "TREE_END"
	case RangeInclusive:
		return "RANGE_INCLUSIVE"
	case RangeExclusive:
		return "RANGE_EXCLUSIVE"
	case PrefixString:
		return "PREFIX_STRING"
	}
	return "UNKNOWN"
}

// TupleRange is an immutable interval over the tuple ordering.
type TupleRange struct {
	Low          Tuple
	High         Tuple
	LowEndpoint  EndpointType
	HighEndpoint EndpointType
}

// All covers the whole key space.
var All = TupleRange{LowEndpoint: TreeStart, HighEndpoint: TreeEnd}

// AllOf covers t and every tuple that has t as a prefix.
func AllOf(t Tuple) TupleRange {
	return TupleRange{Low: t, High: t, LowEndpoint: RangeInclusive, HighEndpoint: RangeInclusive}
}

// PrefixedBy covers every tuple whose first component is a string starting with prefix.
func PrefixedBy(prefix string) TupleRange {
	t := TupleOf(prefix)
	return TupleRange{Low: t, High: t, LowEndpoint: PrefixString, HighEndpoint: PrefixString}
}

func Between(low, high Tuple, lowEndpoint, highEndpoint EndpointType) TupleRange {
	return TupleRange{Low: low, High: high, LowEndpoint: lowEndpoint, HighEndpoint: highEndpoint}
}

// Prepend nests the range under prefix. Open ends become inclusive bounds on
// the prefix itself, so the result never escapes the prefix.
func (r TupleRange) Prepend(prefix Tuple) TupleRange {
	out := TupleRange{Low: prefix, High: prefix, LowEndpoint: RangeInclusive, HighEndpoint: RangeInclusive}
	if r.LowEndpoint != TreeStart {
		out.Low = prefix.Concat(r.Low)
		out.LowEndpoint = r.LowEndpoint
	}
	if r.HighEndpoint != TreeEnd {
		out.High = prefix.Concat(r.High)
		out.HighEndpoint = r.HighEndpoint
	}
	return out
}

// ToBytes converts the range to the half-open byte interval [low, high).
func (r TupleRange) ToBytes() (low, high []byte, err error) {
	switch r.LowEndpoint {
	case TreeStart:
		low = []byte{}
	case RangeInclusive:
		low = r.Low.Pack()
	case RangeExclusive:
		if low, err = Strinc(r.Low.Pack()); err != nil {
			return nil, nil, err
		}
	case PrefixString:
		if low, err = packPrefixString(r.Low); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, errors.Errorf("invalid low endpoint %s", r.LowEndpoint)
	}

	switch r.HighEndpoint {
	case TreeEnd:
		high = []byte{0xFF}
	case RangeInclusive:
		packed := r.High.Pack()
		if len(packed) == 0 {
			high = []byte{0xFF}
		} else if high, err = Strinc(packed); err != nil {
			return nil, nil, err
		}
	case RangeExclusive:
		high = r.High.Pack()
	case PrefixString:
		var prefix []byte
		if prefix, err = packPrefixString(r.High); err != nil {
			return nil, nil, err
		}
		if high, err = Strinc(prefix); err != nil {
			return nil, nil, err
		}
	default:
		return nil, nil, errors.Errorf("invalid high endpoint %s", r.HighEndpoint)
	}
	return low, high, nil
}

// packPrefixString packs t with its trailing string left unterminated, so the
// result is a byte prefix of every tuple whose last string extends it.
func packPrefixString(t Tuple) ([]byte, error) {
	if len(t) == 0 {
		return nil, errors.Wrap(common.ErrBadTuple, "prefix string range needs a string component")
	}
	if _, ok := t[len(t)-1].(string); !ok {
		return nil, errors.Wrapf(common.ErrBadTuple, "prefix string range ends with %T", t[len(t)-1])
	}
	packed := t.Pack()
	return packed[:len(packed)-1], nil
}

func (r TupleRange) Equals(other TupleRange) bool {
	return r.LowEndpoint == other.LowEndpoint && r.HighEndpoint == other.HighEndpoint &&
		Equal(r.Low, other.Low) && Equal(r.High, other.High)
}

// PlanHash is stable across processes; it only depends on the range contents.
func (r TupleRange) PlanHash() uint64 {
	d := xxhash.New()
	_, _ = d.Write([]byte{byte(r.LowEndpoint), byte(r.HighEndpoint)})
	_, _ = d.Write(r.Low.Pack())
	_, _ = d.Write([]byte{0xFF})
	_, _ = d.Write(r.High.Pack())
	return d.Sum64()
}

func (r TupleRange) String() string {
	var open, closing string
	switch r.LowEndpoint {
	case RangeInclusive:
		open = "["
	case PrefixString:
		open = "{"
	default:
		open = "("
	}
	switch r.HighEndpoint {
	case RangeInclusive:
		closing = "]"
	case PrefixString:
		closing = "}"
	default:
		closing = ")"
	}
	low, high := "-inf", "+inf"
	if r.LowEndpoint != TreeStart {
		low = r.Low.String()
	}
	if r.HighEndpoint != TreeEnd {
		high = r.High.String()
	}
	return open + low + "," + high + closing
}
