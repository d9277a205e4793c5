package x12elig

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoTransactionSet        = errors.New("no ST segment found")
	ErrUnsupportedTransaction  = errors.New("unsupported transaction type")
	ErrTransactionTypeMismatch = errors.New("transaction type mismatch")
)

// Parser tokenizes X12 documents and detects their transaction type.
// A Parser holds only read-only configuration, so a single instance
// may be shared by concurrent callers.
type Parser struct {
	delimiters DelimiterTable
	supported  map[string]bool
}

type ParserOption func(p *Parser)

// WithSupportedTransactionTypes replaces the set of transaction set codes
// the Parser will accept
func WithSupportedTransactionTypes(txTypes ...string) ParserOption {
	return func(p *Parser) {
		p.supported = codeSet(txTypes...)
	}
}

// NewParser returns a Parser which selects delimiters from the given table
func NewParser(table DelimiterTable, opts ...ParserOption) *Parser {
	p := &Parser{
		delimiters: NewDelimiterTable(table.Default, table.Overrides),
		supported:  codeSet(defaultSupportedTransactions...),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SupportedTransactionTypes returns the accepted transaction set codes,
// sorted
func (p *Parser) SupportedTransactionTypes() []string {
	return sortedKeys(p.supported)
}

// Option adjusts a single Parse or Build call
type Option func(c *callConfig)

type callConfig struct {
	transactionType string
	delimiters      Delimiters
}

// TransactionType sets the expected transaction type. Its delimiter
// override (if any) is applied, and parsing fails if the detected type
// differs.
func TransactionType(txType string) Option {
	return func(c *callConfig) {
		c.transactionType = txType
	}
}

// UsingDelimiters sets the delimiters explicitly, taking precedence over
// any transaction override
func UsingDelimiters(d Delimiters) Option {
	return func(c *callConfig) {
		c.delimiters = d
	}
}

func newCallConfig(opts []Option) callConfig {
	var c callConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// activeDelimiters resolves the delimiters for a call: explicit, then
// the override for the expected transaction type, then the default
func (c callConfig) activeDelimiters(table DelimiterTable) Delimiters {
	if !c.delimiters.IsZero() {
		return c.delimiters
	}
	return table.For(c.transactionType)
}

// Parse sanitizes and tokenizes content, and detects its transaction
// type from the first ST segment
func (p *Parser) Parse(content string, opts ...Option) ParseOutcome {
	call := newCallConfig(opts)
	delimiters := call.activeDelimiters(p.delimiters)

	if reasons := ContentErrors(content); len(reasons) > 0 {
		errs := make([]error, 0, len(reasons))
		for _, r := range reasons {
			errs = append(errs, contentError(r))
		}
		return parseFailure(delimiters, errs...)
	}

	cleaned := SanitizeContent(content)
	var segments []Segment
	for _, fragment := range strings.Split(cleaned, delimiters.Segment()) {
		fragment = strings.TrimSpace(fragment)
		if fragment == "" {
			continue
		}
		text, err := SanitizeSegment(fragment, delimiters)
		if err != nil {
			return parseFailure(delimiters, err)
		}
		segments = append(segments, newSegment(text, delimiters))
	}

	stIndex := firstSegment(segments, stSegmentId)
	if stIndex == -1 {
		return parseFailure(delimiters, ErrNoTransactionSet)
	}
	detected := strings.TrimSpace(segments[stIndex].Element(stIndexTransactionSetCode))
	if !p.supported[detected] {
		return parseFailure(
			delimiters,
			fmt.Errorf("%w: %q", ErrUnsupportedTransaction, detected),
		)
	}
	if call.transactionType != "" && call.transactionType != detected {
		return parseFailure(
			delimiters,
			fmt.Errorf(
				"%w: expected %q, detected %q",
				ErrTransactionTypeMismatch,
				call.transactionType,
				detected,
			),
		)
	}

	return ParseOutcome{
		Segments:        segments,
		TransactionType: detected,
		Delimiters:      delimiters,
	}
}

// contentError maps a ContentErrors reason back onto its sentinel
func contentError(reason string) error {
	for _, sentinel := range []error{
		ErrContentEmpty,
		ErrUnsafeContent,
		ErrContentTooLarge,
	} {
		if sentinel.Error() == reason {
			return sentinel
		}
	}
	return errors.New(reason)
}
