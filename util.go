package x12elig

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// codeSet builds a lookup set from the given codes
func codeSet(codes ...string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[c] = true
	}
	return set
}

// sortedKeys returns the keys of the given set in ascending order
func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sliceContains returns true if the given value is present in the given slice
func sliceContains[V comparable](row []V, val V) bool {
	for _, v := range row {
		if v == val {
			return true
		}
	}
	return false
}

// removeTrailingEmptyElements removes trailing empty elements from a
// slice of elements. These are truncated in segments. For example,
// a segment which specifies 5 elements, where the latter two are optional,
// wouldn't look like `SEGID*A*B*C**~`, but rather `SEGID*A*B*C~`
func removeTrailingEmptyElements(elements []string) []string {
	for i := len(elements) - 1; i >= 0; i-- {
		if elements[i] != "" {
			newSlice := make([]string, i+1)
			copy(newSlice, elements)
			return newSlice
		}
	}
	return []string{}
}

// uniqueElements returns a slice containing each unique element in
// the given slice, ex: ["a", "b", "a", "c"] -> ["a", "b", "c"]
func uniqueElements[V comparable](elements []V) []V {
	keysSeen := make(map[V]bool)
	result := make([]V, 0, len(elements))

	for _, v := range elements {
		if _, seen := keysSeen[v]; !seen {
			keysSeen[v] = true
			result = append(result, v)
		}
	}
	return result
}

// padRight pads value with spaces to the given width. Values already at or
// over the width are returned as-is.
func padRight(value string, width int) string {
	return fmt.Sprintf("%-*s", width, value)
}

// zeroPad left-pads a numeric control number with zeros to the given
// width. An empty value is treated as "1".
func zeroPad(value string, width int) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		v = "1"
	}
	if len(v) > width {
		return "", fmt.Errorf(
			"%w: %q is longer than %d digits",
			ErrInvalidControlNumber, v, width,
		)
	}
	for _, c := range v {
		if c < '0' || c > '9' {
			return "", fmt.Errorf(
				"%w: %q is not numeric",
				ErrInvalidControlNumber, v,
			)
		}
	}
	return strings.Repeat("0", width-len(v)) + v, nil
}

// stringValue converts a JSON-origin scalar into its string form. nil
// becomes an empty string; numbers are formatted without exponents.
func stringValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// copyStringMap returns a copy of m. A nil map yields an empty map.
func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
