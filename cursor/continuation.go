package cursor

import (
	"github.com/kebukeYi/TrainRecord/common"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// childPosition is what a merge remembers about one child between runs.
//
//	message MergeContinuation { repeated Child children = 1; }
//	message Child {
//	    bytes continuation = 1;
//	    bool  exhausted    = 2;
//	    bool  started      = 3;
//	}
type childPosition struct {
	cont      []byte
	exhausted bool
}

func encodeMerge(children []childPosition) []byte {
	out := make([]byte, 0, 8*len(children))
	for _, c := range children {
		var msg []byte
		if c.cont != nil {
			msg = protowire.AppendTag(msg, common.ChildContinuationField, protowire.BytesType)
			msg = protowire.AppendBytes(msg, c.cont)
			msg = protowire.AppendTag(msg, common.ChildStartedField, protowire.VarintType)
			msg = protowire.AppendVarint(msg, protowire.EncodeBool(true))
		}
		if c.exhausted {
			msg = protowire.AppendTag(msg, common.ChildExhaustedField, protowire.VarintType)
			msg = protowire.AppendVarint(msg, protowire.EncodeBool(true))
		}
		out = protowire.AppendTag(out, common.ContinuationChildField, protowire.BytesType)
		out = protowire.AppendBytes(out, msg)
	}
	return out
}

// decodeMerge parses a merge continuation; nil means every child starts fresh.
func decodeMerge(b []byte, n int) ([]childPosition, error) {
	if b == nil {
		return make([]childPosition, n), nil
	}
	out := make([]childPosition, 0, n)
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return nil, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(tagLen).Error())
		}
		b = b[tagLen:]
		if num != common.ContinuationChildField || typ != protowire.BytesType {
			skip := protowire.ConsumeFieldValue(num, typ, b)
			if skip < 0 {
				return nil, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(skip).Error())
			}
			b = b[skip:]
			continue
		}
		msg, msgLen := protowire.ConsumeBytes(b)
		if msgLen < 0 {
			return nil, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(msgLen).Error())
		}
		b = b[msgLen:]
		child, err := decodeChild(msg)
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	if len(out) != n {
		return nil, errors.Wrapf(common.ErrInvalidContinuation, "continuation has %d children, cursor has %d", len(out), n)
	}
	return out, nil
}

func decodeChild(b []byte) (childPosition, error) {
	var c childPosition
	var started bool
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return c, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(tagLen).Error())
		}
		b = b[tagLen:]
		switch {
		case num == common.ChildContinuationField && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return c, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(m).Error())
			}
			c.cont = append([]byte{}, v...)
			b = b[m:]
		case (num == common.ChildExhaustedField || num == common.ChildStartedField) && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return c, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(m).Error())
			}
			if num == common.ChildExhaustedField {
				c.exhausted = protowire.DecodeBool(v)
			} else {
				started = protowire.DecodeBool(v)
			}
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return c, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(m).Error())
			}
			b = b[m:]
		}
	}
	if started && c.cont == nil {
		c.cont = []byte{}
	}
	if !started {
		c.cont = nil
	}
	return c, nil
}

func encodeIndex(i int) []byte {
	b := protowire.AppendTag(nil, common.ListContinuationIndexField, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(i))
}

func decodeIndex(b []byte) (int, error) {
	if b == nil {
		return 0, nil
	}
	idx := -1
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return 0, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(tagLen).Error())
		}
		b = b[tagLen:]
		if num == common.ListContinuationIndexField && typ == protowire.VarintType {
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return 0, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(m).Error())
			}
			idx = int(v)
			b = b[m:]
			continue
		}
		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return 0, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(m).Error())
		}
		b = b[m:]
	}
	if idx < 0 {
		return 0, errors.Wrap(common.ErrInvalidContinuation, "list continuation without index")
	}
	return idx, nil
}

// EncodeSkipContinuation wraps the continuation of a scan that stopped before
// its skip was used up. remaining is the skip still owed on resume.
//
//	message SkipContinuation {
//	    bytes  continuation = 1; // absent when the inner scan had not started
//	    uint64 remaining    = 2;
//	}
func EncodeSkipContinuation(inner []byte, remaining int) []byte {
	out := []byte{common.SkipContinuationMarker}
	if inner != nil {
		out = protowire.AppendTag(out, common.SkipContinuationInnerField, protowire.BytesType)
		out = protowire.AppendBytes(out, inner)
	}
	out = protowire.AppendTag(out, common.SkipContinuationRemainingField, protowire.VarintType)
	return protowire.AppendVarint(out, uint64(remaining))
}

// ResumeSkip splits continuation into the position to reopen from and the skip
// to apply there. A nil continuation owes the full skip, a plain one owes none.
func ResumeSkip(continuation []byte, skip int) ([]byte, int, error) {
	if continuation == nil {
		return nil, skip, nil
	}
	if len(continuation) == 0 || continuation[0] != common.SkipContinuationMarker {
		return continuation, 0, nil
	}
	var inner []byte
	remaining := 0
	b := continuation[1:]
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return nil, 0, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(tagLen).Error())
		}
		b = b[tagLen:]
		switch {
		case num == common.SkipContinuationInnerField && typ == protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, 0, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(m).Error())
			}
			inner = append([]byte{}, v...)
			b = b[m:]
		case num == common.SkipContinuationRemainingField && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, 0, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(m).Error())
			}
			remaining = int(v)
			b = b[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return nil, 0, errors.Wrap(common.ErrInvalidContinuation, protowire.ParseError(m).Error())
			}
			b = b[m:]
		}
	}
	return inner, remaining, nil
}
