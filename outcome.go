package x12elig

import (
	"errors"
	"strings"
)

// OutcomeError collapses the errors accumulated by a parse or validation
// into a single error. errors.Is and errors.As see every member.
type OutcomeError struct {
	TransactionType string
	Errs            []error
}

func (e *OutcomeError) Error() string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

func (e *OutcomeError) Unwrap() []error {
	return e.Errs
}

func outcomeErr(txType string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &OutcomeError{TransactionType: txType, Errs: errs}
}

func errorMessages(errs []error) []string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// ParseOutcome is the result of tokenizing a document. It is a success
// when Errors is empty, in which case Segments and TransactionType are
// set. A failure never carries segments.
type ParseOutcome struct {
	Segments        []Segment
	TransactionType string
	Delimiters      Delimiters
	Errors          []error
	Warnings        []string
}

func (o ParseOutcome) OK() bool {
	return len(o.Errors) == 0
}

// Err returns nil on success, otherwise an *OutcomeError holding every
// error
func (o ParseOutcome) Err() error {
	return outcomeErr(o.TransactionType, o.Errors)
}

// Messages returns the error messages as strings
func (o ParseOutcome) Messages() []string {
	return errorMessages(o.Errors)
}

func parseFailure(d Delimiters, errs ...error) ParseOutcome {
	return ParseOutcome{Delimiters: d, Errors: errs}
}

// ValidationOutcome is the result of validating a segment sequence. Data
// is only set when Errors is empty.
type ValidationOutcome struct {
	TransactionType string
	Data            *ParsedData
	Errors          []error
	Warnings        []string
}

func (o ValidationOutcome) OK() bool {
	return len(o.Errors) == 0
}

func (o ValidationOutcome) Err() error {
	return outcomeErr(o.TransactionType, o.Errors)
}

func (o ValidationOutcome) Messages() []string {
	return errorMessages(o.Errors)
}

// HasError reports whether any accumulated error matches target
func (o ValidationOutcome) HasError(target error) bool {
	for _, err := range o.Errors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
