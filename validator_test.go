package x12elig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := DefaultRegistry(DelimiterTable{})
	assert.Equal(t, []string{"270"}, r.TransactionTypes())

	v, err := r.Validator("270")
	require.NoError(t, err)
	assert.Equal(t, "270", v.TransactionType())

	_, err = r.Validator("835")
	assert.ErrorIs(t, err, ErrNoValidator)
}

func TestValidatorFactoryByName(t *testing.T) {
	f, err := ValidatorFactoryByName("eligibility270")
	require.NoError(t, err)

	alt := MustDelimiters("'", "+", "<")
	table := NewDelimiterTable(Delimiters{}, map[string]Delimiters{"270": alt})
	r := NewRegistry(table, map[string]ValidatorFactory{"270": f})
	v, err := r.Validator("270")
	require.NoError(t, err)

	ev, ok := v.(*EligibilityValidator)
	require.True(t, ok)
	assert.Equal(t, alt, ev.delimiters)

	_, err = ValidatorFactoryByName("eligibility999")
	assert.ErrorIs(t, err, ErrNoValidator)
}

func TestRegistry_ValidatorFor(t *testing.T) {
	r := DefaultRegistry(DelimiterTable{})
	parsed := MustDelimiters("~", "*", ">")

	v, err := r.ValidatorFor("270", parsed)
	require.NoError(t, err)
	ev, ok := v.(*EligibilityValidator)
	require.True(t, ok)
	assert.Equal(t, parsed, ev.delimiters)

	v, err = r.ValidatorFor("270", Delimiters{})
	require.NoError(t, err)
	assert.Equal(t, DefaultDelimiters(), v.(*EligibilityValidator).delimiters)

	_, err = r.ValidatorFor("835", parsed)
	assert.ErrorIs(t, err, ErrNoValidator)
}

func TestEligibilityValidator_ProcedureCode(t *testing.T) {
	segments := []Segment{
		{"ISA", "00", "", "00", "", "ZZ", "S", "ZZ", "R", "240101", "1200", "^", "00501", "000000001", "0", "P", ":"},
		{"GS", "HS", "S", "R", "20240101", "1200", "1", "X", "005010X279A1"},
		{"ST", "270", "0001"},
		{"BHT", "0022", "13", "1", "20240101", "1200"},
		{"HL", "1", "", "22", "0"},
		{"NM1", "IL", "1", "DOE", "JOHN", "", "", "", "MI", "1"},
		{"EQ", "", "HC:99213"},
		{"SE", "6", "0001"},
		{"GE", "1", "1"},
		{"IEA", "1", "000000001"},
	}
	outcome := NewEligibilityValidator(DelimiterTable{}).Validate(segments)
	require.NoError(t, outcome.Err())
	require.Len(t, outcome.Data.Inquiries, 1)
	assert.Equal(t, "HC:99213", outcome.Data.Inquiries[0]["procedure_identifier"])
	assert.Equal(t, "99213", outcome.Data.Inquiries[0]["procedure_code"])
	assert.Empty(t, outcome.Warnings)
}
