package x12elig

const (
	isaSegmentId = "ISA"
	ieaSegmentId = "IEA"
	gsSegmentId  = "GS"
	geSegmentId  = "GE"
	stSegmentId  = "ST"
	seSegmentId  = "SE"
	bhtSegmentId = "BHT"
	hlSegmentId  = "HL"
	nm1SegmentId = "NM1"
	trnSegmentId = "TRN"
	refSegmentId = "REF"
	dmgSegmentId = "DMG"
	eqSegmentId  = "EQ"
	n3SegmentId  = "N3"
	n4SegmentId  = "N4"

	// segmentCharacterSet is the fixed allowlist for segment text. The
	// active delimiters are added to it per call.
	segmentCharacterSet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789 !\"&'()+,-./:;?=%@[]_{}\\<>^#$"

	maxContentLength = 10 * 1024
	maxSegmentLength = 105
	maxElementLength = 80

	isaDataElementCount      = 16
	isaByteCount             = 106
	isaElementSeparatorIndex = 3
	gsDataElementCount       = 8
	stMinDataElements        = 2
	nm1MinDataElements       = 3

	subscriberEntityCode = "IL"
	groupNumberQualifier = "6P"
	memberIdQualifier    = "MI"
	dateFormatQualifier  = "D8"
)

const (
	isaIndexSegmentId = iota
	isaIndexAuthInfoQualifier
	isaIndexAuthInfo
	isaIndexSecurityInfoQualifier
	isaIndexSecurityInfo
	isaIndexSenderIdQualifier
	isaIndexSenderId
	isaIndexReceiverIdQualifier
	isaIndexReceiverId
	isaIndexDate
	isaIndexTime
	isaIndexRepetitionSeparator
	isaIndexVersion
	isaIndexControlNumber
	isaIndexAckRequested
	isaIndexUsageIndicator
	isaIndexComponentElementSeparator
)

const (
	ieaIndexFunctionalGroupCount = iota + 1
	ieaIndexControlNumber
)

const (
	gsIndexControlNumber            = 6
	geIndexControlNumber            = 2
	stIndexTransactionSetCode       = 1
	stIndexControlNumber            = 2
	seIndexNumberOfIncludedSegments = 1
	seIndexControlNumber            = 2
	nm1IndexEntityIdentifierCode    = 1
)

// isaLen* consts indicate the fixed width of elements in the ISA
// header (whitespace padded on the right)
const (
	isaLenAuthInfo      = 10
	isaLenSecurityInfo  = 10
	isaLenSenderId      = 15
	isaLenReceiverId    = 15
	isaLenControlNumber = 9
)

// Field names used when projecting envelope and subscriber segments into
// maps. The position in each slice is the data element index minus one.
var (
	interchangeFieldNames = []string{
		"authorization_qualifier",
		"authorization_information",
		"security_qualifier",
		"security_information",
		"sender_id_qualifier",
		"sender_id",
		"receiver_id_qualifier",
		"receiver_id",
		"date",
		"time",
		"repetition_separator",
		"version",
		"control_number",
		"acknowledgment_requested",
		"usage_indicator",
		"component_separator",
	}
	functionalGroupFieldNames = []string{
		"functional_id_code",
		"sender_code",
		"receiver_code",
		"date",
		"time",
		"control_number",
		"responsible_agency_code",
		"version",
	}
	transactionFieldNames = []string{
		"transaction_set_code",
		"control_number",
	}
	subscriberFieldNames = []string{
		"entity_identifier_code",
		"entity_type_qualifier",
		"last_name",
		"first_name",
		"middle_name",
		"name_prefix",
		"name_suffix",
		"id_code_qualifier",
		"id",
	}
	inquiryFieldNames = []string{
		"service_type_code",
		"procedure_identifier",
		"coverage_level_code",
		"insurance_type_code",
	}
)

// functionalIdentifierCodes maps a transaction set code to GS01
var functionalIdentifierCodes = map[string]string{
	"270": "HS",
	"271": "HB",
	"276": "HR",
	"277": "HN",
	"278": "HI",
	"820": "RA",
	"834": "BE",
	"835": "HP",
	"837": "HC",
	"997": "FA",
	"999": "FA",
}

// implementationReferences maps a transaction set code to the GS08
// version/release/industry identifier
var implementationReferences = map[string]string{
	"270": "005010X279A1",
	"271": "005010X279A1",
	"835": "005010X221A1",
	"837": "005010X222A1",
}

// defaultSupportedTransactions are the transaction set codes the Parser
// recognizes. Recognition is independent of whether a validator exists.
var defaultSupportedTransactions = []string{"270", "271", "835", "837"}

// entityIdentifierCodes is the closed set of NM101 codes accepted on a 270:
// the subscriber (IL), information source and receiver roles, and the
// payer/provider roles that can appear in the 2100A/2100B loops.
var entityIdentifierCodes = codeSet(
	"IL", "30", "31", "36", "03", "13", "1I", "1P", "2B", "40",
	"41", "71", "72", "73", "77", "80", "82", "85", "87", "DK",
	"DN", "DQ", "FA", "GP", "GW", "HH", "I3", "LR", "P3", "P4",
	"P5", "PR", "PRP", "QC", "QV", "SEP", "TTP", "TV", "X3", "Y2",
	"ZZ", "VN", "CN", "BY", "SJ",
)

var (
	isaAuthQualifiers     = codeSet("00", "03")
	isaSecurityQualifiers = codeSet("00", "01")
	deprecatedSegments    = []string{n3SegmentId, n4SegmentId}
)
