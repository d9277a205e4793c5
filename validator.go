package x12elig

import (
	"errors"
	"fmt"
)

var ErrNoValidator = errors.New("no validator registered for transaction type")

// TransactionValidator checks a tokenized segment sequence against the
// rules of one transaction type and projects it into ParsedData
type TransactionValidator interface {
	// Validate checks the segments, accumulating every error found
	Validate(segments []Segment) ValidationOutcome
	// TransactionType is the transaction set code handled, ex: `270`
	TransactionType() string
	// RequiredSegments returns the identifiers which must be present, sorted
	RequiredSegments() []string
	// OptionalSegments returns the identifiers which may be present, sorted
	OptionalSegments() []string
}

// ValidatorFactory creates a TransactionValidator using the delimiters
// configured for its transaction type
type ValidatorFactory func(table DelimiterTable) TransactionValidator

// validatorFactories maps names used in configuration to factories
var validatorFactories = map[string]ValidatorFactory{
	"eligibility270": func(table DelimiterTable) TransactionValidator {
		return NewEligibilityValidator(table)
	},
}

// ValidatorFactoryByName resolves a configured validator name
func ValidatorFactoryByName(name string) (ValidatorFactory, error) {
	f, ok := validatorFactories[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown validator %q", ErrNoValidator, name)
	}
	return f, nil
}

// Registry is a static lookup from transaction set code to validator
type Registry struct {
	table     DelimiterTable
	factories map[string]ValidatorFactory
}

// NewRegistry returns a Registry holding a copy of the given factories
func NewRegistry(
	table DelimiterTable,
	factories map[string]ValidatorFactory,
) *Registry {
	r := &Registry{
		table:     NewDelimiterTable(table.Default, table.Overrides),
		factories: make(map[string]ValidatorFactory, len(factories)),
	}
	for k, f := range factories {
		r.factories[k] = f
	}
	return r
}

// DefaultRegistry returns a Registry with the 270 validator registered
func DefaultRegistry(table DelimiterTable) *Registry {
	return NewRegistry(
		table,
		map[string]ValidatorFactory{"270": validatorFactories["eligibility270"]},
	)
}

// Validator returns a validator for the given transaction type
func (r *Registry) Validator(txType string) (TransactionValidator, error) {
	f, ok := r.factories[txType]
	if !ok || f == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoValidator, txType)
	}
	return f(r.table), nil
}

// ValidatorFor is like Validator, but builds the validator with the
// delimiters a document was parsed with rather than the table's entry
func (r *Registry) ValidatorFor(txType string, d Delimiters) (TransactionValidator, error) {
	if d.IsZero() {
		return r.Validator(txType)
	}
	f, ok := r.factories[txType]
	if !ok || f == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoValidator, txType)
	}
	return f(NewDelimiterTable(d, nil)), nil
}

// TransactionTypes returns the registered transaction set codes, sorted
func (r *Registry) TransactionTypes() []string {
	set := make(map[string]bool, len(r.factories))
	for k := range r.factories {
		set[k] = true
	}
	return sortedKeys(set)
}

// ParsedData is the structured projection of a validated 270
type ParsedData struct {
	Interchange     map[string]string   `json:"interchange"`
	FunctionalGroup map[string]string   `json:"functional_group"`
	Transaction     map[string]string   `json:"transaction"`
	Subscriber      map[string]string   `json:"subscriber"`
	Inquiries       []map[string]string `json:"inquiries,omitempty"`
	Demographics    map[string]string   `json:"demographics,omitempty"`
	Address         map[string]string   `json:"address,omitempty"`
	Identifiers     map[string]string   `json:"identifiers,omitempty"`
}
