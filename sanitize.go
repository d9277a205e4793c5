package x12elig

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrUnsafeContent   = errors.New("content contains unsafe characters")
	ErrInvalidSegment  = errors.New("invalid segment")
	ErrElementTooLong  = errors.New("element exceeds maximum length")
	ErrContentEmpty    = errors.New("content is empty")
	ErrContentTooLarge = fmt.Errorf(
		"content exceeds maximum size of %d bytes",
		maxContentLength,
	)
)

var (
	segmentIdPattern = regexp.MustCompile(`^[A-Z0-9]{2,3}$`)
	whitespaceRun    = regexp.MustCompile(`\s+`)
	markupPolicy     = bluemonday.StrictPolicy()
	lineEndings      = strings.NewReplacer("\r\n", "\n", "\r", "\n")
)

// SegmentError is returned when a segment fails sanitization. It carries
// the offending text and the reason.
type SegmentError struct {
	Segment string
	Reason  string
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("%s: %s (segment: %q)", ErrInvalidSegment, e.Reason, e.Segment)
}

func (e *SegmentError) Unwrap() error {
	return ErrInvalidSegment
}

func newSegmentError(segment string, format string, args ...any) error {
	return &SegmentError{Segment: segment, Reason: fmt.Sprintf(format, args...)}
}

// isUnsafeRune reports whether r is a NUL or a control character other
// than tab, CR or LF. DEL and C1 controls count as unsafe.
func isUnsafeRune(r rune) bool {
	switch r {
	case '\t', '\r', '\n':
		return false
	}
	return r == 0 || unicode.IsControl(r)
}

// stripUnsafe drops NUL and control characters (keeping tab/CR/LF),
// normalizes line endings to `\n`, collapses whitespace runs to a single
// space and trims the result
func stripUnsafe(raw string) string {
	if !utf8.ValidString(raw) {
		raw = strings.ToValidUTF8(raw, "")
	}
	cleaned := strings.Map(
		func(r rune) rune {
			if isUnsafeRune(r) {
				return -1
			}
			return r
		}, raw,
	)
	cleaned = lineEndings.Replace(cleaned)
	cleaned = whitespaceRun.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// SanitizeContent cleans a raw document before tokenization
func SanitizeContent(raw string) string {
	return stripUnsafe(raw)
}

// IsContentSafe returns false if content holds a NUL byte or any control
// character outside of tab/CR/LF
func IsContentSafe(content string) bool {
	if !utf8.ValidString(content) {
		return false
	}
	return strings.IndexFunc(content, isUnsafeRune) < 0
}

// ContentErrors returns the human-readable reasons the given content may
// not proceed to tokenization. An empty result means the content is
// acceptable.
func ContentErrors(content string) []string {
	var reasons []string
	if strings.TrimSpace(content) == "" {
		reasons = append(reasons, ErrContentEmpty.Error())
	}
	if !IsContentSafe(content) {
		reasons = append(reasons, ErrUnsafeContent.Error())
	}
	if len(content) > maxContentLength {
		reasons = append(reasons, ErrContentTooLarge.Error())
	}
	return reasons
}

// SanitizeSegment cleans a single segment and checks it against the
// length ceiling, the identifier pattern and the character allowlist
// (extended with the given delimiters). Failures are returned as
// *SegmentError.
func SanitizeSegment(segment string, delimiters Delimiters) (string, error) {
	cleaned := stripUnsafe(segment)
	if cleaned == "" {
		return "", newSegmentError(segment, "segment is empty")
	}

	if n := utf8.RuneCountInString(cleaned); n > maxSegmentLength {
		return "", newSegmentError(
			cleaned,
			"segment length %d exceeds maximum of %d characters",
			n, maxSegmentLength,
		)
	}

	segmentId := cleaned
	if delimiters.Element() != "" {
		segmentId, _, _ = strings.Cut(cleaned, delimiters.Element())
	}
	if !segmentIdPattern.MatchString(segmentId) {
		return "", newSegmentError(
			cleaned,
			"invalid segment identifier %q",
			segmentId,
		)
	}

	allowed := segmentCharacterSet + delimiters.characters()
	for _, r := range cleaned {
		if !strings.ContainsRune(allowed, r) {
			return "", newSegmentError(
				cleaned,
				"character %q is not allowed",
				r,
			)
		}
	}
	return cleaned, nil
}

// SanitizeElement cleans a single element value, removing any markup, and
// rejects values longer than the element ceiling
func SanitizeElement(value string) (string, error) {
	cleaned := stripUnsafe(value)
	if strings.ContainsAny(cleaned, "<>&") {
		cleaned = html.UnescapeString(markupPolicy.Sanitize(cleaned))
		cleaned = strings.TrimSpace(cleaned)
	}
	if n := utf8.RuneCountInString(cleaned); n > maxElementLength {
		return "", fmt.Errorf(
			"%w: %d characters (maximum %d)",
			ErrElementTooLong, n, maxElementLength,
		)
	}
	return cleaned, nil
}

// SanitizeData returns a copy of data with every string value passed
// through SanitizeElement, descending into nested maps and slices.
// Values of other types are copied as-is. Every failing value is
// reported, joined with errors.Join.
func SanitizeData(data map[string]any) (map[string]any, error) {
	out, err := sanitizeValue("", data)
	if err != nil {
		return nil, err
	}
	m, _ := out.(map[string]any)
	return m, nil
}

func sanitizeValue(path string, value any) (any, error) {
	switch v := value.(type) {
	case string:
		cleaned, err := SanitizeElement(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return cleaned, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		var errs []error
		for key, child := range v {
			cleaned, err := sanitizeValue(joinPath(path, key), child)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out[key] = cleaned
		}
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(v))
		var errs []error
		for key, child := range v {
			cleaned, err := sanitizeValue(joinPath(path, key), child)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			out[key] = cleaned
		}
		if len(errs) > 0 {
			return nil, errors.Join(errs...)
		}
		return out, nil
	case []any:
		return sanitizeSlice(path, v)
	case []map[string]any:
		return sanitizeSlice(path, v)
	default:
		return v, nil
	}
}

// sanitizeSlice cleans every item, joining the errors of all items that
// fail
func sanitizeSlice[T any](path string, items []T) (any, error) {
	out := make([]any, len(items))
	var errs []error
	for i, child := range items {
		cleaned, err := sanitizeValue(fmt.Sprintf("%s[%d]", path, i), child)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[i] = cleaned
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}

func joinPath(parent string, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
