package util

import (
	"encoding/base64"
	"fmt"
	"sort"
	"time"

	"golang.org/x/exp/constraints"
)

// JSONMap represents a JSON object as a map.
type JSONMap = map[string]interface{}

// TimeLayout is the UTC second precision layout of every timestamp on the wire.
const TimeLayout = "2006-01-02T15:04:05Z"

// FormatTime renders t in UTC with TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a wire timestamp. RFC3339 offsets are accepted and
// converted to UTC.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("time string is empty")
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}

	return t.UTC(), nil
}

// Now returns the current time truncated to whole seconds in UTC.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// EncodeBase64URL encodes data as unpadded base64url.
func EncodeBase64URL(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeBase64URL decodes unpadded base64url. Padded input is accepted too.
func DecodeBase64URL(s string) ([]byte, error) {
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}

	data, errPadded := base64.URLEncoding.DecodeString(s)
	if errPadded != nil {
		return nil, fmt.Errorf("failed to decode base64url: %w", err)
	}

	return data, nil
}

// SortedKeys returns the keys of m in ascending order.
func SortedKeys[K constraints.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	return keys
}

// MapSlice transforms a slice of type T to a slice of type U using a mapping function.
func MapSlice[T any, U any](slice []T, mapFn func(T) U) []U {
	result := make([]U, 0, len(slice))
	for _, v := range slice {
		result = append(result, mapFn(v))
	}
	return result
}

// ToInterfaces converts a string slice to a JSON array value.
func ToInterfaces(values []string) []interface{} {
	return MapSlice(values, func(s string) interface{} { return s })
}

// ParseStrings reads a JSON value that is either a string or an array of
// strings.
func ParseStrings(v interface{}) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []string:
		return val, nil
	case []interface{}:
		out := make([]string, 0, len(val))
		for i, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("array entry at index %d is %T, want string", i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value is %T, want string or array", v)
	}
}

// SerializeContexts validates and converts a slice of JSON-LD context entries.
func SerializeContexts(contexts []string) ([]interface{}, error) {
	validated := make([]interface{}, 0, len(contexts))
	for i, ctx := range contexts {
		if ctx == "" {
			return nil, fmt.Errorf("failed to validate context: context string at index %d is empty", i)
		}
		validated = append(validated, ctx)
	}
	return validated, nil
}
