package x12elig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMissingSegments           = errors.New("missing required segments")
	ErrSegmentOrder              = errors.New("invalid segment order")
	ErrInvalidElementCount       = errors.New("invalid number of elements")
	ErrInvalidQualifier          = errors.New("invalid qualifier")
	ErrInvalidTransactionSetCode = errors.New("invalid transaction set code")
	ErrInvalidEntityCode         = errors.New("invalid entity identifier code")
	ErrProjection                = errors.New("error parsing segments")
)

const eligibilityTransactionType = "270"

var (
	eligibilityRequiredSegments = codeSet(
		isaSegmentId, gsSegmentId, stSegmentId, bhtSegmentId, hlSegmentId,
		nm1SegmentId, seSegmentId, geSegmentId, ieaSegmentId,
	)
	eligibilityOptionalSegments = codeSet(
		trnSegmentId, refSegmentId, dmgSegmentId, eqSegmentId,
		n3SegmentId, n4SegmentId,
	)
	// requiredSegmentOrder is the order missing segments are reported in
	requiredSegmentOrder = []string{
		isaSegmentId, gsSegmentId, stSegmentId, bhtSegmentId, hlSegmentId,
		nm1SegmentId, seSegmentId, geSegmentId, ieaSegmentId,
	}
)

// EligibilityValidator validates 270 eligibility inquiries
type EligibilityValidator struct {
	delimiters Delimiters
}

// NewEligibilityValidator returns a 270 validator using the delimiters
// the table holds for 270
func NewEligibilityValidator(table DelimiterTable) *EligibilityValidator {
	return &EligibilityValidator{delimiters: table.For(eligibilityTransactionType)}
}

func (v *EligibilityValidator) TransactionType() string {
	return eligibilityTransactionType
}

func (v *EligibilityValidator) RequiredSegments() []string {
	return sortedKeys(eligibilityRequiredSegments)
}

func (v *EligibilityValidator) OptionalSegments() []string {
	return sortedKeys(eligibilityOptionalSegments)
}

// Validate runs the presence, order and per-segment checks, and projects
// the segments into ParsedData when none of them report an error.
// Warnings are collected regardless of the outcome.
func (v *EligibilityValidator) Validate(segments []Segment) ValidationOutcome {
	outcome := ValidationOutcome{TransactionType: eligibilityTransactionType}

	outcome.Errors = append(outcome.Errors, checkPresence(segments)...)
	outcome.Errors = append(outcome.Errors, checkOrder(segments)...)
	outcome.Errors = append(outcome.Errors, checkSegments(segments)...)
	outcome.Warnings = append(outcome.Warnings, deprecationWarnings(segments)...)

	if len(outcome.Errors) > 0 {
		return outcome
	}

	data, warnings, err := v.project(segments)
	outcome.Warnings = append(outcome.Warnings, warnings...)
	if err != nil {
		outcome.Errors = append(outcome.Errors, err)
		return outcome
	}
	outcome.Warnings = append(outcome.Warnings, envelopeWarnings(segments)...)
	outcome.Data = data
	return outcome
}

// checkPresence reports every missing required segment in one error
func checkPresence(segments []Segment) []error {
	present := make(map[string]bool, len(segments))
	for _, seg := range segments {
		present[seg.ID()] = true
	}
	var missing []string
	for _, id := range requiredSegmentOrder {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return []error{
		fmt.Errorf("%w: %s", ErrMissingSegments, strings.Join(missing, ", ")),
	}
}

func checkOrder(segments []Segment) []error {
	var errs []error
	if len(segments) == 0 {
		return errs
	}
	if segments[0].ID() != isaSegmentId {
		errs = append(
			errs,
			fmt.Errorf("%w: ISA must be the first segment", ErrSegmentOrder),
		)
	}
	if segments[len(segments)-1].ID() != ieaSegmentId {
		errs = append(
			errs,
			fmt.Errorf("%w: IEA must be the last segment", ErrSegmentOrder),
		)
	}
	gsIndex := firstSegment(segments, gsSegmentId)
	stIndex := firstSegment(segments, stSegmentId)
	if gsIndex != -1 && stIndex != -1 && stIndex < gsIndex {
		errs = append(
			errs,
			fmt.Errorf(
				"%w: ST segment (position %d) appears before GS segment (position %d)",
				ErrSegmentOrder, stIndex+1, gsIndex+1,
			),
		)
	}
	return errs
}

func checkSegments(segments []Segment) []error {
	var errs []error
	for i, seg := range segments {
		position := i + 1
		switch seg.ID() {
		case isaSegmentId:
			errs = append(errs, checkInterchangeHeader(seg, position)...)
		case stSegmentId:
			errs = append(errs, checkTransactionHeader(seg, position)...)
		case nm1SegmentId:
			errs = append(errs, checkName(seg, position)...)
		}
	}
	return errs
}

func checkInterchangeHeader(seg Segment, position int) []error {
	var errs []error
	if n := seg.DataElements(); n != isaDataElementCount {
		errs = append(
			errs,
			fmt.Errorf(
				"%w: ISA segment (position %d) has %d elements, expected %d",
				ErrInvalidElementCount, position, n, isaDataElementCount,
			),
		)
	}
	if q := seg.Element(isaIndexAuthInfoQualifier); !isaAuthQualifiers[q] {
		errs = append(
			errs,
			fmt.Errorf(
				"%w: ISA01 authorization qualifier %q (expected one of %s)",
				ErrInvalidQualifier, q,
				strings.Join(sortedKeys(isaAuthQualifiers), ", "),
			),
		)
	}
	if q := seg.Element(isaIndexSecurityInfoQualifier); !isaSecurityQualifiers[q] {
		errs = append(
			errs,
			fmt.Errorf(
				"%w: ISA03 security qualifier %q (expected one of %s)",
				ErrInvalidQualifier, q,
				strings.Join(sortedKeys(isaSecurityQualifiers), ", "),
			),
		)
	}
	return errs
}

func checkTransactionHeader(seg Segment, position int) []error {
	var errs []error
	if n := seg.DataElements(); n < stMinDataElements {
		errs = append(
			errs,
			fmt.Errorf(
				"%w: ST segment (position %d) has %d elements, expected at least %d",
				ErrInvalidElementCount, position, n, stMinDataElements,
			),
		)
	}
	if code := seg.Element(stIndexTransactionSetCode); code != eligibilityTransactionType {
		errs = append(
			errs,
			fmt.Errorf(
				"%w: ST01 is %q, expected %q",
				ErrInvalidTransactionSetCode, code, eligibilityTransactionType,
			),
		)
	}
	return errs
}

func checkName(seg Segment, position int) []error {
	var errs []error
	if n := seg.DataElements(); n < nm1MinDataElements {
		errs = append(
			errs,
			fmt.Errorf(
				"%w: NM1 segment (position %d) has %d elements, expected at least %d",
				ErrInvalidElementCount, position, n, nm1MinDataElements,
			),
		)
	}
	if code := seg.Element(nm1IndexEntityIdentifierCode); !entityIdentifierCodes[code] {
		errs = append(
			errs,
			fmt.Errorf(
				"%w: NM101 %q (position %d)",
				ErrInvalidEntityCode, code, position,
			),
		)
	}
	return errs
}

func deprecationWarnings(segments []Segment) []string {
	var warnings []string
	for i, seg := range segments {
		if sliceContains(deprecatedSegments, seg.ID()) {
			warnings = append(
				warnings,
				fmt.Sprintf(
					"segment %s (position %d) is deprecated for 270 transactions",
					seg.ID(), i+1,
				),
			)
		}
	}
	return warnings
}

// namedElements maps the data elements of seg onto the given names,
// trimming whitespace. Missing elements map to empty strings.
func namedElements(seg Segment, names []string) map[string]string {
	m := make(map[string]string, len(names))
	for i, name := range names {
		m[name] = strings.TrimSpace(seg.Element(i + 1))
	}
	return m
}

func (v *EligibilityValidator) project(segments []Segment) (
	data *ParsedData,
	warnings []string,
	err error,
) {
	isa := segments[firstSegment(segments, isaSegmentId)]
	gs := segments[firstSegment(segments, gsSegmentId)]
	st := segments[firstSegment(segments, stSegmentId)]

	if n := gs.DataElements(); n < gsDataElementCount {
		return nil, nil, fmt.Errorf(
			"%w: GS segment has %d elements, expected %d",
			ErrProjection, n, gsDataElementCount,
		)
	}

	data = &ParsedData{
		Interchange:     namedElements(isa, interchangeFieldNames),
		FunctionalGroup: namedElements(gs, functionalGroupFieldNames),
		Transaction:     namedElements(st, transactionFieldNames),
		Subscriber:      map[string]string{},
	}

	subscribers := 0
	for _, seg := range segmentsWithID(segments, nm1SegmentId) {
		if seg.Element(nm1IndexEntityIdentifierCode) != subscriberEntityCode {
			continue
		}
		subscribers++
		if subscribers == 1 {
			data.Subscriber = namedElements(seg, subscriberFieldNames)
		}
	}
	if subscribers > 1 {
		warnings = append(
			warnings,
			fmt.Sprintf(
				"found %d subscriber (NM1*IL) segments, only the first was used",
				subscribers,
			),
		)
	}

	for _, seg := range segmentsWithID(segments, eqSegmentId) {
		inquiry := namedElements(seg, inquiryFieldNames)
		if proc := inquiry["procedure_identifier"]; proc != "" {
			if _, code, ok := strings.Cut(proc, v.delimiters.SubElement()); ok {
				inquiry["procedure_code"] = code
			}
		}
		data.Inquiries = append(data.Inquiries, inquiry)
	}

	if dmg := segmentsWithID(segments, dmgSegmentId); len(dmg) > 0 {
		data.Demographics = namedElements(
			dmg[0],
			[]string{"date_format_qualifier", "date_of_birth", "gender"},
		)
	}

	address := map[string]string{}
	if n3 := segmentsWithID(segments, n3SegmentId); len(n3) > 0 {
		address["street"] = strings.TrimSpace(n3[0].Element(1))
	}
	if n4 := segmentsWithID(segments, n4SegmentId); len(n4) > 0 {
		for k, val := range namedElements(n4[0], []string{"city", "state", "zip"}) {
			address[k] = val
		}
	}
	if len(address) > 0 {
		data.Address = address
	}

	identifiers := map[string]string{}
	if trn := segmentsWithID(segments, trnSegmentId); len(trn) > 0 {
		if memberId := strings.TrimSpace(trn[0].Element(2)); memberId != "" {
			identifiers["member_id"] = memberId
		}
	}
	for _, ref := range segmentsWithID(segments, refSegmentId) {
		if ref.Element(1) == groupNumberQualifier {
			identifiers["group_number"] = strings.TrimSpace(ref.Element(2))
			break
		}
	}
	if len(identifiers) > 0 {
		data.Identifiers = identifiers
	}
	return data, warnings, nil
}

// envelopeWarnings compares trailer counts and control numbers against
// their headers
func envelopeWarnings(segments []Segment) []string {
	var warnings []string

	stIndex := firstSegment(segments, stSegmentId)
	seIndex := firstSegment(segments, seSegmentId)
	if stIndex != -1 && seIndex > stIndex {
		st := segments[stIndex]
		se := segments[seIndex]
		actual := seIndex - stIndex + 1
		reported, err := strconv.Atoi(strings.TrimSpace(se.Element(seIndexNumberOfIncludedSegments)))
		if err != nil || reported != actual {
			warnings = append(
				warnings,
				fmt.Sprintf(
					"SE01 segment count %q does not match %d segments from ST to SE",
					se.Element(seIndexNumberOfIncludedSegments), actual,
				),
			)
		}
		warnings = append(
			warnings,
			controlNumberWarning(st, stIndexControlNumber, se, seIndexControlNumber)...,
		)
	}

	if gs, ge := firstSegment(segments, gsSegmentId), firstSegment(segments, geSegmentId); gs != -1 && ge != -1 {
		warnings = append(
			warnings,
			controlNumberWarning(segments[gs], gsIndexControlNumber, segments[ge], geIndexControlNumber)...,
		)
	}
	if isa, iea := firstSegment(segments, isaSegmentId), firstSegment(segments, ieaSegmentId); isa != -1 && iea != -1 {
		warnings = append(
			warnings,
			controlNumberWarning(segments[isa], isaIndexControlNumber, segments[iea], ieaIndexControlNumber)...,
		)
	}
	return warnings
}

func controlNumberWarning(header Segment, headerIndex int, trailer Segment, trailerIndex int) []string {
	h := normalizeControlNumber(header.Element(headerIndex))
	t := normalizeControlNumber(trailer.Element(trailerIndex))
	if h == t {
		return nil
	}
	return []string{
		fmt.Sprintf(
			"%s control number %q does not match %s control number %q",
			trailer.ID(), trailer.Element(trailerIndex),
			header.ID(), header.Element(headerIndex),
		),
	}
}

func normalizeControlNumber(v string) string {
	v = strings.TrimLeft(strings.TrimSpace(v), "0")
	if v == "" {
		return "0"
	}
	return v
}
