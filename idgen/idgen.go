// Package idgen provides identifier generation and content-addressing
// helpers used across objectdb: record IDs, stable JSON encoding, and
// SHA-256 digests over that encoding.
package idgen

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// New returns a new random identifier.
func New() string {
	return uuid.NewString()
}

// StableJSON encodes v as JSON with every object's keys sorted
// recursively, so two structurally-equal values always produce byte
// identical output regardless of map iteration order.
func StableJSON(v any) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

// Digest returns the hex-encoded SHA-256 of v's stable JSON encoding.
func Digest(v any) (string, error) {
	data, err := StableJSON(v)
	if err != nil {
		return "", fmt.Errorf("idgen: digest: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// normalize walks v, turning every map into a sortedMap so json.Marshal
// emits keys in sorted order at every nesting level. It round-trips
// through json.Marshal/Unmarshal first so arbitrary Go structs are
// normalized the same way as decoded JSON.
func normalize(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("idgen: marshal: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("idgen: unmarshal: %w", err)
	}
	return sortValue(decoded), nil
}

func sortValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return sortedMapFrom(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = sortValue(item)
		}
		return out
	default:
		return t
	}
}

// sortedMap marshals as a JSON object with keys in sorted order.
type sortedMap struct {
	keys   []string
	values map[string]any
}

func (m sortedMap) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range m.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	buf = append(buf, '}')
	return buf, nil
}

func sortedMapFrom(raw map[string]any) sortedMap {
	keys := make([]string, 0, len(raw))
	values := make(map[string]any, len(raw))
	for k, v := range raw {
		keys = append(keys, k)
		values[k] = sortValue(v)
	}
	sort.Strings(keys)
	return sortedMap{keys: keys, values: values}
}
