package model

import (
	"fmt"
	"sort"
	"strings"
)

// Record is the unit index maintainers read fields from.
type Record struct {
	PrimaryKey Tuple
	Fields     map[string]interface{}
}

func NewRecord(primaryKey Tuple, fields map[string]interface{}) *Record {
	return &Record{PrimaryKey: primaryKey, Fields: fields}
}

func (r *Record) Field(name string) (interface{}, bool) {
	if r == nil {
		return nil, false
	}
	v, ok := r.Fields[name]
	return v, ok
}

func (r *Record) String() string {
	names := make([]string, 0, len(r.Fields))
	for name := range r.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	var sb strings.Builder
	sb.WriteString(r.PrimaryKey.String())
	sb.WriteByte('{')
	for i, name := range names {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%s: %v", name, r.Fields[name]))
	}
	sb.WriteByte('}')
	return sb.String()
}
