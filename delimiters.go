package x12elig

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

var ErrInvalidDelimiters = errors.New("invalid delimiters")

// Delimiters is the immutable set of separators used to split and join
// X12 text: the segment terminator, the element separator and the
// sub-element (component) separator.
//
// Invariants:
//   - all three are non-empty
//   - all three are distinct
//   - none of them contains whitespace, since content sanitization
//     collapses whitespace before tokenizing
//
// The zero value is not usable; obtain one from NewDelimiters or
// DefaultDelimiters.
type Delimiters struct {
	segment    string
	element    string
	subElement string
}

// NewDelimiters validates and returns a Delimiters value
func NewDelimiters(segment, element, subElement string) (Delimiters, error) {
	values := []string{segment, element, subElement}
	for _, v := range values {
		if v == "" {
			return Delimiters{}, fmt.Errorf(
				"%w: delimiters cannot be empty (got %q)",
				ErrInvalidDelimiters, values,
			)
		}
		if strings.IndexFunc(v, unicode.IsSpace) >= 0 {
			return Delimiters{}, fmt.Errorf(
				"%w: delimiter %q contains whitespace",
				ErrInvalidDelimiters, v,
			)
		}
	}
	if len(uniqueElements(values)) != len(values) {
		return Delimiters{}, fmt.Errorf(
			"%w: delimiters must be unique (got %q)",
			ErrInvalidDelimiters, values,
		)
	}
	return Delimiters{segment: segment, element: element, subElement: subElement}, nil
}

// MustDelimiters is like NewDelimiters, but panics on invalid input.
// Use only with constant values.
func MustDelimiters(segment, element, subElement string) Delimiters {
	d, err := NewDelimiters(segment, element, subElement)
	if err != nil {
		panic(err)
	}
	return d
}

// DefaultDelimiters returns `~`, `*` and `:`
func DefaultDelimiters() Delimiters {
	return Delimiters{segment: "~", element: "*", subElement: ":"}
}

func (d Delimiters) Segment() string    { return d.segment }
func (d Delimiters) Element() string    { return d.element }
func (d Delimiters) SubElement() string { return d.subElement }

// IsZero reports whether d is the unset zero value
func (d Delimiters) IsZero() bool {
	return d.segment == "" && d.element == "" && d.subElement == ""
}

func (d Delimiters) String() string {
	return fmt.Sprintf(
		"segment=%q element=%q sub_element=%q",
		d.segment, d.element, d.subElement,
	)
}

// characters returns every rune used by the delimiters
func (d Delimiters) characters() string {
	return d.segment + d.element + d.subElement
}

// DelimiterTable is a read-only lookup of the delimiters to use per
// transaction set code, with a fallback default.
type DelimiterTable struct {
	Default   Delimiters
	Overrides map[string]Delimiters
}

// NewDelimiterTable returns a table using the given default and a copy of
// the given overrides. A zero default is replaced by DefaultDelimiters.
func NewDelimiterTable(
	defaults Delimiters,
	overrides map[string]Delimiters,
) DelimiterTable {
	if defaults.IsZero() {
		defaults = DefaultDelimiters()
	}
	t := DelimiterTable{
		Default:   defaults,
		Overrides: make(map[string]Delimiters, len(overrides)),
	}
	for k, v := range overrides {
		t.Overrides[k] = v
	}
	return t
}

// For returns the override for the given transaction type, if any,
// otherwise the default
func (t DelimiterTable) For(transactionType string) Delimiters {
	if d, ok := t.Overrides[transactionType]; ok && !d.IsZero() {
		return d
	}
	if t.Default.IsZero() {
		return DefaultDelimiters()
	}
	return t.Default
}

// DetectDelimiters reads the delimiters from a fixed-width ISA header: the
// element separator is the fourth character, the component separator is
// ISA16 and the segment terminator is the character following it.
func DetectDelimiters(content string) (Delimiters, error) {
	runes := []rune(strings.TrimLeftFunc(content, unicode.IsSpace))
	if len(runes) < isaByteCount {
		return Delimiters{}, fmt.Errorf(
			"%w: message too short to accommodate ISA segment (expected at least %d characters, got %d)",
			ErrInvalidDelimiters, isaByteCount, len(runes),
		)
	}
	if string(runes[:3]) != isaSegmentId {
		return Delimiters{}, fmt.Errorf(
			"%w: content does not start with an ISA segment",
			ErrInvalidDelimiters,
		)
	}
	isaLine := runes[:isaByteCount]
	return NewDelimiters(
		string(isaLine[isaByteCount-1]),
		string(isaLine[isaElementSeparatorIndex]),
		string(isaLine[isaByteCount-2]),
	)
}
