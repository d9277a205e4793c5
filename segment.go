package x12elig

import "strings"

// Segment is one tokenized X12 segment. Element 0 is the segment
// identifier, the remaining entries are its data elements.
type Segment []string

// newSegment splits the given segment text on the element delimiter
func newSegment(text string, delimiters Delimiters) Segment {
	return Segment(strings.Split(text, delimiters.Element()))
}

// ID returns the segment identifier, ex: `NM1`
func (s Segment) ID() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// Element returns the element at the given index, or an empty string if
// the segment has no such element. Index 0 is the identifier.
func (s Segment) Element(index int) string {
	if index < 0 || index >= len(s) {
		return ""
	}
	return s[index]
}

// DataElements returns the number of elements following the identifier
func (s Segment) DataElements() int {
	if len(s) == 0 {
		return 0
	}
	return len(s) - 1
}

// Format joins the segment's elements with the given delimiters. Trailing
// empty elements are dropped. The segment terminator is not appended.
func (s Segment) Format(delimiters Delimiters) string {
	return strings.Join(removeTrailingEmptyElements(s), delimiters.Element())
}

// segmentsWithID returns every segment with the given identifier, in order
func segmentsWithID(segments []Segment, id string) []Segment {
	var found []Segment
	for _, seg := range segments {
		if seg.ID() == id {
			found = append(found, seg)
		}
	}
	return found
}

// firstSegment returns the index of the first segment with the given
// identifier, or -1
func firstSegment(segments []Segment, id string) int {
	for i, seg := range segments {
		if seg.ID() == id {
			return i
		}
	}
	return -1
}
