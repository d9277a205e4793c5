package x12elig

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEligibility270FromData_Scenario(t *testing.T) {
	record, err := Eligibility270FromData(
		map[string]any{
			"subscriber_id":         "1",
			"subscriber_first_name": "A",
			"subscriber_last_name":  "B",
			"inquiries":             []any{map[string]any{"service_type_code": "30"}},
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "1", record.SubscriberID())
	assert.Equal(t, "A B", record.FullName())
	assert.Equal(t, []Inquiry{{ServiceTypeCode: "30"}}, record.Inquiries())
}

func TestEligibility270_FailFast(t *testing.T) {
	base := func() Eligibility270Params {
		p := validParams()
		p.SubscriberDateOfBirth = "19430519"
		p.SubscriberGender = "M"
		p.SubscriberState = "IL"
		p.SubscriberZip = "62701-1234"
		return p
	}

	testCases := []struct {
		name     string
		modify   func(p *Eligibility270Params)
		expected error
		field    string
	}{
		{"missing id", func(p *Eligibility270Params) { p.SubscriberID = "" }, ErrSubscriberIDRequired, "subscriber_id"},
		{"blank id", func(p *Eligibility270Params) { p.SubscriberID = "   " }, ErrSubscriberIDRequired, "subscriber_id"},
		{"missing first name", func(p *Eligibility270Params) { p.SubscriberFirstName = "" }, ErrFirstNameRequired, "subscriber_first_name"},
		{"missing last name", func(p *Eligibility270Params) { p.SubscriberLastName = "" }, ErrLastNameRequired, "subscriber_last_name"},
		{"short dob", func(p *Eligibility270Params) { p.SubscriberDateOfBirth = "1943051" }, ErrInvalidDateOfBirth, "subscriber_date_of_birth"},
		{"formatted dob", func(p *Eligibility270Params) { p.SubscriberDateOfBirth = "1943-05-19" }, ErrInvalidDateOfBirth, "subscriber_date_of_birth"},
		{"gender", func(p *Eligibility270Params) { p.SubscriberGender = "X" }, ErrInvalidGender, "subscriber_gender"},
		{"state length", func(p *Eligibility270Params) { p.SubscriberState = "ILL" }, ErrInvalidState, "subscriber_state"},
		{"state digits", func(p *Eligibility270Params) { p.SubscriberState = "I1" }, ErrInvalidState, "subscriber_state"},
		{"zip", func(p *Eligibility270Params) { p.SubscriberZip = "6270" }, ErrInvalidZip, "subscriber_zip"},
		{"zip suffix", func(p *Eligibility270Params) { p.SubscriberZip = "62701-12" }, ErrInvalidZip, "subscriber_zip"},
		{"no inquiries", func(p *Eligibility270Params) { p.Inquiries = nil }, ErrInquiriesRequired, "inquiries"},
		{"empty inquiries", func(p *Eligibility270Params) { p.Inquiries = []Inquiry{} }, ErrInquiriesRequired, "inquiries"},
		{
			"service type code",
			func(p *Eligibility270Params) { p.Inquiries = []Inquiry{{ServiceTypeCode: "30"}, {ServiceTypeCode: "3"}} },
			ErrInvalidServiceTypeCode,
			"inquiries[1].service_type_code",
		},
		{
			"gender before zip",
			func(p *Eligibility270Params) {
				p.SubscriberGender = "X"
				p.SubscriberZip = "bad"
				p.Inquiries = nil
			},
			ErrInvalidGender,
			"subscriber_gender",
		},
		{
			"id before everything",
			func(p *Eligibility270Params) {
				p.SubscriberID = ""
				p.SubscriberLastName = ""
				p.SubscriberDateOfBirth = "x"
			},
			ErrSubscriberIDRequired,
			"subscriber_id",
		},
	}
	for _, tc := range testCases {
		t.Run(
			tc.name, func(t *testing.T) {
				p := base()
				tc.modify(&p)
				_, err := NewEligibility270(p)
				require.ErrorIs(t, err, tc.expected)

				var fieldErr *FieldError
				require.ErrorAs(t, err, &fieldErr)
				assert.Equal(t, tc.field, fieldErr.Field)
			},
		)
	}
}

func TestEligibility270FromData_GenderFailsFirst(t *testing.T) {
	_, err := Eligibility270FromData(
		map[string]any{
			"subscriber_id":         "1",
			"subscriber_first_name": "A",
			"subscriber_last_name":  "B",
			"subscriber_gender":     "X",
			"subscriber_zip":        "1",
		},
	)
	require.ErrorIs(t, err, ErrInvalidGender)
	assert.NotErrorIs(t, err, ErrInvalidZip)
	assert.NotErrorIs(t, err, ErrInquiriesRequired)
}

func TestEligibility270_Gender(t *testing.T) {
	for _, g := range []string{"M", "F", "m", "f"} {
		p := validParams()
		p.SubscriberGender = g
		_, err := NewEligibility270(p)
		assert.NoError(t, err, g)
	}
}

func TestEligibility270FromData_Conversions(t *testing.T) {
	record, err := Eligibility270FromData(
		map[string]any{
			"subscriber_id":            float64(123456789),
			"subscriber_first_name":    " JOHN ",
			"subscriber_last_name":     "DOE",
			"subscriber_date_of_birth": float64(19800101),
			"member_id":                "M1",
			"group_number":             "G1",
			"inquiries": []map[string]string{
				{"service_type_code": "30", "coverage_level_code": "IND"},
			},
			"interchange": map[string]any{"sender_id": "SENDER", "control_number": float64(42)},
		},
	)
	require.NoError(t, err)
	assert.Equal(t, "123456789", record.SubscriberID())
	assert.Equal(t, "JOHN", record.SubscriberFirstName())
	assert.Equal(t, "19800101", record.SubscriberDateOfBirth())
	assert.Equal(t, "M1", record.MemberID())
	assert.Equal(t, "G1", record.GroupNumber())
	assert.Equal(t, "IND", record.Inquiries()[0].CoverageLevelCode)
	assert.Equal(t, "42", record.Interchange()["control_number"])
}

func TestEligibility270_Data(t *testing.T) {
	p := validParams()
	p.SubscriberMiddleName = "Q"
	p.SubscriberGender = "F"
	p.Inquiries = []Inquiry{{ServiceTypeCode: "30"}, {ServiceTypeCode: "AL", InsuranceTypeCode: "HM"}}
	p.Transaction = map[string]string{"control_number": "0005"}
	record := newRecord(t, p)

	data := record.Data()
	assert.Equal(t, "Q", data["subscriber_middle_name"])
	assert.NotContains(t, data, "subscriber_zip")

	again, err := Eligibility270FromData(data)
	require.NoError(t, err)
	assert.Equal(t, record.Params(), again.Params())
}

func TestEligibility270_Helpers(t *testing.T) {
	p := validParams()
	record := newRecord(t, p)
	assert.Equal(t, "ROBERT SMITH", record.FullName())
	assert.Equal(t, "", record.FullAddress())
	assert.False(t, record.HasCompleteAddress())
	assert.False(t, record.HasDemographics())

	p.SubscriberMiddleName = "  B "
	p.SubscriberAddress = "1 MAIN ST"
	p.SubscriberCity = "SPRINGFIELD"
	p.SubscriberState = "IL"
	p.SubscriberZip = "62701"
	p.SubscriberGender = "M"
	record = newRecord(t, p)
	assert.Equal(t, "ROBERT B SMITH", record.FullName())
	assert.Equal(t, "1 MAIN ST, SPRINGFIELD, IL 62701", record.FullAddress())
	assert.True(t, record.HasCompleteAddress())
	assert.True(t, record.HasDemographics())

	p.SubscriberAddress = ""
	p.SubscriberState = ""
	record = newRecord(t, p)
	assert.Equal(t, "SPRINGFIELD 62701", record.FullAddress())
	assert.False(t, record.HasCompleteAddress())
}

func TestEligibility270_Immutable(t *testing.T) {
	p := validParams()
	p.Interchange = map[string]string{"sender_id": "SENDER"}
	record := newRecord(t, p)

	p.Inquiries[0].ServiceTypeCode = "XX"
	p.Interchange["sender_id"] = "CHANGED"
	assert.Equal(t, "30", record.Inquiries()[0].ServiceTypeCode)
	assert.Equal(t, "SENDER", record.Interchange()["sender_id"])

	inquiries := record.Inquiries()
	inquiries[0].ServiceTypeCode = "YY"
	interchange := record.Interchange()
	interchange["sender_id"] = "CHANGED"
	assert.Equal(t, "30", record.Inquiries()[0].ServiceTypeCode)
	assert.Equal(t, "SENDER", record.Interchange()["sender_id"])
}

func TestEligibility270_With(t *testing.T) {
	record := newRecord(t, validParams())

	updated, err := record.WithFirstName("JANE")
	require.NoError(t, err)
	assert.Equal(t, "JANE", updated.SubscriberFirstName())
	assert.Equal(t, "ROBERT", record.SubscriberFirstName())
	assert.Equal(t, record.SubscriberID(), updated.SubscriberID())

	_, err = record.WithGender("X")
	assert.ErrorIs(t, err, ErrInvalidGender)
	_, err = record.WithSubscriberID("")
	assert.ErrorIs(t, err, ErrSubscriberIDRequired)
	_, err = record.WithLastName(" ")
	assert.ErrorIs(t, err, ErrLastNameRequired)
	_, err = record.WithDateOfBirth("2020")
	assert.ErrorIs(t, err, ErrInvalidDateOfBirth)
	_, err = record.WithInquiries()
	assert.ErrorIs(t, err, ErrInquiriesRequired)

	updated, err = record.WithMiddleName("Q")
	require.NoError(t, err)
	updated, err = updated.WithMemberID("M1")
	require.NoError(t, err)
	updated, err = updated.WithGroupNumber("G1")
	require.NoError(t, err)
	updated, err = updated.WithInquiries(Inquiry{ServiceTypeCode: "AL"})
	require.NoError(t, err)
	assert.Equal(t, "Q", updated.SubscriberMiddleName())
	assert.Equal(t, "M1", updated.MemberID())
	assert.Equal(t, "G1", updated.GroupNumber())
	assert.Equal(t, "AL", updated.Inquiries()[0].ServiceTypeCode)
	assert.Equal(t, "", record.MemberID())
}

func TestEligibility270_Validate(t *testing.T) {
	record := newRecord(t, validParams())
	assert.NoError(t, record.Validate())

	var zero Eligibility270
	assert.ErrorIs(t, zero.Validate(), ErrSubscriberIDRequired)

	var nilRecord *Eligibility270
	assert.ErrorIs(t, nilRecord.Validate(), ErrInvalidRecord)
}

func TestEligibility270_JSON(t *testing.T) {
	p := validParams()
	p.SubscriberDateOfBirth = "19430519"
	record := newRecord(t, p)

	b, err := json.Marshal(record)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"subscriber_date_of_birth":"19430519"`)

	var decoded Eligibility270
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, record.Params(), decoded.Params())

	err = json.Unmarshal(
		[]byte(`{"subscriber_id":"1","subscriber_first_name":"A","subscriber_last_name":"B","subscriber_gender":"Q","inquiries":[{"service_type_code":"30"}]}`),
		&decoded,
	)
	assert.ErrorIs(t, err, ErrInvalidGender)
	assert.Equal(t, record.Params(), decoded.Params())

	err = json.Unmarshal([]byte(`{"subscriber_id":1`), &decoded)
	assert.Error(t, err)
}

func TestEligibility270FromParsed(t *testing.T) {
	data := decode(t, x270Message(t))
	record, err := Eligibility270FromParsed(data)
	require.NoError(t, err)
	assert.Equal(t, "11122333301", record.SubscriberID())
	assert.Equal(t, "ROBERT B SMITH", record.FullName())
	assert.Equal(t, "19430519", record.SubscriberDateOfBirth())
	assert.Equal(t, "M", record.SubscriberGender())
	assert.Equal(t, "930000000000", record.MemberID())
	assert.Equal(t, "GRP12345", record.GroupNumber())
	assert.Equal(t, "SUBMITTERID", record.Interchange()["sender_id"])

	_, err = Eligibility270FromParsed(nil)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}
