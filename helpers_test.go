package x12elig

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scenarioContent is a minimal 270 without a functional group
const scenarioContent = "ISA*00*..*...*>~ST*270*0001~BHT*0022*13*10001234*20240101*1200~" +
	"HL*1**20*1~NM1*IL*1*DOE*JOHN****MI*123456789~EQ*30~SE*5*0001~GE*1*1~" +
	"IEA*1*000000001~"

// x270Message test fixture data is adapted from:
// https://x12.org/examples/005010x279/example-1a-generic-request-by-clinic-for-patients-subscriber-eligibility
func x270Message(t *testing.T) string {
	t.Helper()
	file, err := os.ReadFile("testdata/270.txt")
	require.NoError(t, err)
	return string(file)
}

// replaceNewlines removes `\r` and `\n` from the given text, so test
// assets can remain human-readable (one segment per line)
func replaceNewlines(t *testing.T, text string) string {
	t.Helper()
	return strings.NewReplacer("\r\n", "", "\r", "", "\n", "").Replace(text)
}

// fixedClock returns a clock that always reports 2024-01-01 12:00 UTC
func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	}
}

func fixedReference() func() string {
	return func() string { return "10001234" }
}

func validParams() Eligibility270Params {
	return Eligibility270Params{
		SubscriberID:        "11122333301",
		SubscriberFirstName: "ROBERT",
		SubscriberLastName:  "SMITH",
		Inquiries:           []Inquiry{{ServiceTypeCode: "30"}},
	}
}

func newRecord(t *testing.T, params Eligibility270Params) *Eligibility270 {
	t.Helper()
	record, err := NewEligibility270(params)
	require.NoError(t, err)
	return record
}

func testBuilder(table DelimiterTable) *Builder {
	return NewBuilder(
		table,
		WithClock(fixedClock()),
		WithReferenceGenerator(fixedReference()),
	)
}

// parseSegments splits text into segments with the given delimiters,
// skipping sanitization
func parseSegments(t *testing.T, text string, d Delimiters) []Segment {
	t.Helper()
	var segments []Segment
	for _, s := range strings.Split(replaceNewlines(t, text), d.Segment()) {
		if s = strings.TrimSpace(s); s != "" {
			segments = append(segments, newSegment(s, d))
		}
	}
	return segments
}

// decode parses and validates content as a 270, requiring both steps to
// succeed
func decode(t *testing.T, content string, opts ...Option) *ParsedData {
	t.Helper()
	parsed := NewParser(DelimiterTable{}).Parse(content, opts...)
	require.NoError(t, parsed.Err())

	v := NewEligibilityValidator(DelimiterTable{})
	validated := v.Validate(parsed.Segments)
	require.NoError(t, validated.Err())
	require.NotNil(t, validated.Data)
	return validated.Data
}
