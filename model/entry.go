package model

import "fmt"

// IndexEntry is one key/value pair produced by an index scan. Entries are
// treated as immutable once produced.
type IndexEntry struct {
	Index string
	Key   Tuple
	Value Tuple
}

func NewIndexEntry(index string, key, value Tuple) IndexEntry {
	return IndexEntry{Index: index, Key: key, Value: value}
}

// PrimaryKey returns the key components after the first prefixLen ones.
func (e IndexEntry) PrimaryKey(prefixLen int) Tuple {
	return e.Key.SubTuple(prefixLen, len(e.Key))
}

func (e IndexEntry) String() string {
	return fmt.Sprintf("%s%s -> %s", e.Index, e.Key, e.Value)
}
