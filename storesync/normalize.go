package storesync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CanonicalRecord is the one internal shape every wire payload collapses
// into. Fields keeps every flattened attribute, so callers lose nothing
// they did not explicitly read.
type CanonicalRecord struct {
	ID       int
	StableID string
	Fields   map[string]any
}

func (r CanonicalRecord) StringField(name string) string {
	if v, ok := r.Fields[name].(string); ok {
		return v
	}
	return ""
}

func (r CanonicalRecord) IntField(name string) int {
	switch v := r.Fields[name].(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case float64:
		return int(v)
	}
	return 0
}

func (r CanonicalRecord) BoolField(name string) bool {
	if v, ok := r.Fields[name].(bool); ok {
		return v
	}
	return false
}

func (r CanonicalRecord) TimeField(name string) (time.Time, bool) {
	s, ok := r.Fields[name].(string)
	if !ok {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeOne absorbs every known wire shape for a single record: a plain
// object, an object wrapped in a data envelope, or an envelope whose record
// nests its display fields under an attributes block. This is the only place
// in the package that inspects raw wire shapes.
func NormalizeOne(raw json.RawMessage) (CanonicalRecord, error) {
	value, err := decodeAny(raw)
	if err != nil {
		return CanonicalRecord{}, err
	}
	value = unwrapData(value)

	obj, ok := value.(map[string]any)
	if !ok {
		if list, ok := value.([]any); ok && len(list) == 1 {
			if m, ok := list[0].(map[string]any); ok {
				return flattenObject(m), nil
			}
		}
		return CanonicalRecord{}, fmt.Errorf("expected a single record, got %T", value)
	}
	return flattenObject(obj), nil
}

// NormalizeList absorbs list shapes: bare arrays, data-array envelopes, and
// a single object (normalized to a one-element list).
func NormalizeList(raw json.RawMessage) ([]CanonicalRecord, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	value, err := decodeAny(raw)
	if err != nil {
		return nil, err
	}
	value = unwrapData(value)

	switch v := value.(type) {
	case []any:
		records := make([]CanonicalRecord, 0, len(v))
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, errors.New("list contains a non-object entry")
			}
			records = append(records, flattenObject(m))
		}
		return records, nil
	case map[string]any:
		return []CanonicalRecord{flattenObject(v)}, nil
	case nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("expected a record list, got %T", value)
	}
}

func decodeAny(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	// Preserve numeric precision; ids can exceed float53.
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	return value, nil
}

func unwrapData(value any) any {
	if obj, ok := value.(map[string]any); ok {
		if inner, ok := obj["data"]; ok {
			return inner
		}
	}
	return value
}

func flattenObject(obj map[string]any) CanonicalRecord {
	fields := make(map[string]any, len(obj))
	for k, v := range obj {
		if k == "attributes" {
			continue
		}
		fields[k] = v
	}
	if attrs, ok := obj["attributes"].(map[string]any); ok {
		for k, v := range attrs {
			fields[k] = v
		}
	}

	rec := CanonicalRecord{Fields: fields}
	rec.ID = rec.IntField("id")
	for _, key := range []string{"documentId", "stableId", "slug"} {
		if v, ok := fields[key].(string); ok && v != "" {
			rec.StableID = v
			break
		}
	}
	return rec
}
