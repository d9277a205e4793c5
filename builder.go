package x12elig

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidControlNumber = errors.New("invalid control number")
	ErrInvalidEnvelope      = errors.New("invalid envelope value")
	ErrDelimiterInValue     = errors.New("value contains a delimiter")
)

const (
	defaultQualifier           = "00"
	defaultIdQualifier         = "ZZ"
	defaultRepetitionSeparator = "^"
	defaultInterchangeVersion  = "00501"
	defaultAckRequested        = "0"
	defaultUsageIndicator      = "P"
	defaultGroupControlNumber  = "1"
	defaultTxnControlNumber    = "0001"
	defaultResponsibleAgency   = "X"
	bhtStructureCode           = "0022"
	bhtPurposeCode             = "13"
	subscriberLevelCode        = "22"
	personEntityType           = "1"
	currentTraceType           = "1"
)

// Builder encodes eligibility records as X12 text. A Builder holds only
// read-only configuration and may be shared by concurrent callers.
type Builder struct {
	delimiters DelimiterTable
	now        func() time.Time
	reference  func() string
}

type BuilderOption func(b *Builder)

// WithClock sets the function used for default envelope dates and times
func WithClock(now func() time.Time) BuilderOption {
	return func(b *Builder) {
		b.now = now
	}
}

// WithReferenceGenerator sets the function used to generate BHT03
func WithReferenceGenerator(f func() string) BuilderOption {
	return func(b *Builder) {
		b.reference = f
	}
}

func defaultReference() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20]
}

// NewBuilder returns a Builder which selects delimiters from the given table
func NewBuilder(table DelimiterTable, opts ...BuilderOption) *Builder {
	b := &Builder{
		delimiters: NewDelimiterTable(table.Default, table.Overrides),
		now:        time.Now,
		reference:  defaultReference,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildFromData builds a record from flat key/value data (see
// Eligibility270FromData) and encodes it. Only 270 is supported.
func (b *Builder) BuildFromData(
	data map[string]any,
	txType string,
	opts ...Option,
) (string, error) {
	if txType != eligibilityTransactionType {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedTransaction, txType)
	}
	record, err := Eligibility270FromData(data)
	if err != nil {
		return "", err
	}
	return b.Build270(record, append([]Option{TransactionType(txType)}, opts...)...)
}

// Build270 encodes the record as a complete interchange: ISA, GS, ST,
// BHT, HL, NM1, TRN (with a member id), REF (with a group number), DMG
// (with demographics), one EQ per inquiry, SE, GE and IEA
func (b *Builder) Build270(record *Eligibility270, opts ...Option) (string, error) {
	call := newCallConfig(opts)
	delimiters := call.activeDelimiters(b.delimiters)

	if err := record.Validate(); err != nil {
		return "", err
	}

	now := b.now()
	p := record.params

	isa, err := b.interchangeHeader(p.Interchange, delimiters, now)
	if err != nil {
		return "", err
	}
	gs, err := functionalGroupHeader(p.FunctionalGroup, now)
	if err != nil {
		return "", err
	}
	// ST02 and GS06 keep their given width; only ISA13 is zero-padded
	// to 9 digits
	stControl, err := controlNumber(p.Transaction["control_number"], defaultTxnControlNumber)
	if err != nil {
		return "", fmt.Errorf("ST02: %w", err)
	}

	txn := []Segment{
		{stSegmentId, eligibilityTransactionType, stControl},
		{
			bhtSegmentId, bhtStructureCode, bhtPurposeCode, b.reference(),
			now.Format("20060102"), now.Format("1504"),
		},
		{hlSegmentId, "1", "", subscriberLevelCode, "0"},
		{
			nm1SegmentId, subscriberEntityCode, personEntityType,
			p.SubscriberLastName, p.SubscriberFirstName, p.SubscriberMiddleName,
			"", "", memberIdQualifier, p.SubscriberID,
		},
	}
	if p.MemberID != "" {
		txn = append(txn, Segment{trnSegmentId, currentTraceType, p.MemberID})
	}
	if p.GroupNumber != "" {
		txn = append(txn, Segment{refSegmentId, groupNumberQualifier, p.GroupNumber})
	}
	if record.HasDemographics() {
		dmg := Segment{dmgSegmentId, "", p.SubscriberDateOfBirth, strings.ToUpper(p.SubscriberGender)}
		if p.SubscriberDateOfBirth != "" {
			dmg[1] = dateFormatQualifier
		}
		txn = append(txn, dmg)
	}
	for _, inq := range p.Inquiries {
		txn = append(
			txn,
			Segment{
				eqSegmentId, inq.ServiceTypeCode, inq.ProcedureIdentifier,
				inq.CoverageLevelCode, inq.InsuranceTypeCode,
			},
		)
	}
	txn = append(
		txn,
		Segment{seSegmentId, fmt.Sprintf("%d", len(txn)+1), stControl},
	)

	segments := make([]Segment, 0, len(txn)+4)
	segments = append(segments, isa, gs)
	segments = append(segments, txn...)
	segments = append(
		segments,
		Segment{geSegmentId, "1", gs.Element(gsIndexControlNumber)},
		Segment{ieaSegmentId, "1", isa.Element(isaIndexControlNumber)},
	)
	return formatSegments(segments, delimiters)
}

// formatSegments joins the segments, appending the segment terminator
// to each one. Every segment must pass SanitizeSegment, so the output
// is always accepted by Parser.Parse.
func formatSegments(segments []Segment, delimiters Delimiters) (string, error) {
	var b strings.Builder
	for _, seg := range segments {
		for i, v := range seg {
			if seg.ID() == isaSegmentId && i == isaIndexComponentElementSeparator {
				continue
			}
			if strings.Contains(v, delimiters.Segment()) || strings.Contains(v, delimiters.Element()) {
				return "", fmt.Errorf(
					"%w: %s%02d %q (delimiters: %s)",
					ErrDelimiterInValue, seg.ID(), i, v, delimiters,
				)
			}
		}
		text := seg.Format(delimiters)
		if _, err := SanitizeSegment(text, delimiters); err != nil {
			return "", fmt.Errorf("%s: %w", seg.ID(), err)
		}
		b.WriteString(text)
		b.WriteString(delimiters.Segment())
	}
	return b.String(), nil
}

func valueOr(m map[string]string, key string, defaultValue string) string {
	if v := strings.TrimSpace(m[key]); v != "" {
		return v
	}
	return defaultValue
}

// fixedWidth right-pads value to width, and returns an error if it's
// already longer
func fixedWidth(name string, value string, width int) (string, error) {
	if len(value) > width {
		return "", fmt.Errorf(
			"%w: %s %q exceeds %d characters",
			ErrInvalidEnvelope, name, value, width,
		)
	}
	return padRight(value, width), nil
}

// controlNumber checks that value is 1-9 digits, returning defaultValue
// when value is empty
func controlNumber(value string, defaultValue string) (string, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return defaultValue, nil
	}
	if _, err := zeroPad(v, isaLenControlNumber); err != nil {
		return "", err
	}
	return v, nil
}

func (b *Builder) interchangeHeader(
	m map[string]string,
	delimiters Delimiters,
	now time.Time,
) (Segment, error) {
	isa := make(Segment, isaDataElementCount+1)
	isa[isaIndexSegmentId] = isaSegmentId
	isa[isaIndexAuthInfoQualifier] = valueOr(m, "authorization_qualifier", defaultQualifier)
	isa[isaIndexSecurityInfoQualifier] = valueOr(m, "security_qualifier", defaultQualifier)
	isa[isaIndexSenderIdQualifier] = padRight(valueOr(m, "sender_id_qualifier", defaultIdQualifier), 2)
	isa[isaIndexReceiverIdQualifier] = padRight(valueOr(m, "receiver_id_qualifier", defaultIdQualifier), 2)
	isa[isaIndexDate] = valueOr(m, "date", now.Format("060102"))
	isa[isaIndexTime] = valueOr(m, "time", now.Format("1504"))
	isa[isaIndexRepetitionSeparator] = valueOr(m, "repetition_separator", defaultRepetitionSeparator)
	isa[isaIndexVersion] = valueOr(m, "version", defaultInterchangeVersion)
	isa[isaIndexAckRequested] = valueOr(m, "acknowledgment_requested", defaultAckRequested)
	isa[isaIndexUsageIndicator] = valueOr(m, "usage_indicator", defaultUsageIndicator)
	isa[isaIndexComponentElementSeparator] = delimiters.SubElement()

	fixed := []struct {
		index int
		key   string
		width int
	}{
		{isaIndexAuthInfo, "authorization_information", isaLenAuthInfo},
		{isaIndexSecurityInfo, "security_information", isaLenSecurityInfo},
		{isaIndexSenderId, "sender_id", isaLenSenderId},
		{isaIndexReceiverId, "receiver_id", isaLenReceiverId},
	}
	for _, f := range fixed {
		v, err := fixedWidth(f.key, strings.TrimSpace(m[f.key]), f.width)
		if err != nil {
			return nil, err
		}
		isa[f.index] = v
	}

	control, err := zeroPad(m["control_number"], isaLenControlNumber)
	if err != nil {
		return nil, fmt.Errorf("ISA13: %w", err)
	}
	isa[isaIndexControlNumber] = control
	return isa, nil
}

func functionalGroupHeader(m map[string]string, now time.Time) (Segment, error) {
	// not padded, unlike ISA13
	control, err := controlNumber(m["control_number"], defaultGroupControlNumber)
	if err != nil {
		return nil, fmt.Errorf("GS06: %w", err)
	}
	return Segment{
		gsSegmentId,
		valueOr(m, "functional_id_code", functionalIdentifierCodes[eligibilityTransactionType]),
		valueOr(m, "sender_code", ""),
		valueOr(m, "receiver_code", ""),
		valueOr(m, "date", now.Format("20060102")),
		valueOr(m, "time", now.Format("1504")),
		control,
		valueOr(m, "responsible_agency_code", defaultResponsibleAgency),
		valueOr(m, "version", implementationReferences[eligibilityTransactionType]),
	}, nil
}
