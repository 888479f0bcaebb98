package model

import (
	"github.com/kebukeYi/TrainRecord/common"
	"github.com/pkg/errors"
)

// Strinc returns the first key that is greater than every key prefixed by key.
// Trailing 0xFF bytes are dropped before incrementing.
func Strinc(key []byte) ([]byte, error) {
	end := len(key)
	for end > 0 && key[end-1] == 0xFF {
		end--
	}
	if end == 0 {
		return nil, errors.Wrap(common.ErrEmptyKey, "key must contain at least one byte not equal to 0xFF")
	}
	out := SafeCopy(nil, key[:end])
	out[end-1]++
	return out, nil
}

func SafeCopy(dst, src []byte) []byte {
	dst = make([]byte, len(src))
	copy(dst, src)
	return dst
}
