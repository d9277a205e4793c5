package x12elig

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/goccy/go-json"
)

var (
	ErrInvalidRecord          = errors.New("invalid eligibility record")
	ErrSubscriberIDRequired   = errors.New("subscriber id is required")
	ErrFirstNameRequired      = errors.New("subscriber first name is required")
	ErrLastNameRequired       = errors.New("subscriber last name is required")
	ErrInvalidDateOfBirth     = errors.New("subscriber date of birth must be 8 digits (YYYYMMDD)")
	ErrInvalidGender          = errors.New("subscriber gender must be M or F")
	ErrInvalidState           = errors.New("subscriber state must be 2 letters")
	ErrInvalidZip             = errors.New("subscriber zip must be 5 digits, optionally followed by -4 digits")
	ErrInquiriesRequired      = errors.New("at least one inquiry is required")
	ErrInvalidServiceTypeCode = errors.New("inquiry service type code must be 2 characters")
)

var (
	dateOfBirthPattern = regexp.MustCompile(`^\d{8}$`)
	zipPattern         = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

// fieldErrors maps struct fields to the error reported when their
// validation fails
var fieldErrors = map[string]error{
	"SubscriberID":          ErrSubscriberIDRequired,
	"SubscriberFirstName":   ErrFirstNameRequired,
	"SubscriberLastName":    ErrLastNameRequired,
	"SubscriberDateOfBirth": ErrInvalidDateOfBirth,
	"SubscriberGender":      ErrInvalidGender,
	"SubscriberState":       ErrInvalidState,
	"SubscriberZip":         ErrInvalidZip,
	"Inquiries":             ErrInquiriesRequired,
	"ServiceTypeCode":       ErrInvalidServiceTypeCode,
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	_ = validate.RegisterValidation("notblank", validators.NotBlank)
	_ = validate.RegisterValidation(
		"x12date", func(fl validator.FieldLevel) bool {
			return dateOfBirthPattern.MatchString(fl.Field().String())
		},
	)
	_ = validate.RegisterValidation(
		"zipcode", func(fl validator.FieldLevel) bool {
			return zipPattern.MatchString(fl.Field().String())
		},
	)
	validate.RegisterTagNameFunc(
		func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		},
	)
}

// FieldError identifies the single rule an Eligibility270 failed
type FieldError struct {
	Field string
	Value any
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s (got %q)", e.Field, e.Err, fmt.Sprint(e.Value))
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// Inquiry is one EQ segment: the benefit being asked about
type Inquiry struct {
	ServiceTypeCode     string `json:"service_type_code" validate:"len=2"`
	ProcedureIdentifier string `json:"procedure_identifier,omitempty"`
	CoverageLevelCode   string `json:"coverage_level_code,omitempty"`
	InsuranceTypeCode   string `json:"insurance_type_code,omitempty"`
}

// Eligibility270Params holds the fields of an Eligibility270. Fields are
// validated in declaration order, and only the first failure is reported.
type Eligibility270Params struct {
	SubscriberID          string `json:"subscriber_id" validate:"notblank"`
	SubscriberFirstName   string `json:"subscriber_first_name" validate:"notblank"`
	SubscriberLastName    string `json:"subscriber_last_name" validate:"notblank"`
	SubscriberMiddleName  string `json:"subscriber_middle_name,omitempty"`
	SubscriberDateOfBirth string `json:"subscriber_date_of_birth,omitempty" validate:"omitempty,x12date"`
	SubscriberGender      string `json:"subscriber_gender,omitempty" validate:"omitempty,oneof=M F m f"`
	SubscriberAddress     string `json:"subscriber_address,omitempty"`
	SubscriberCity        string `json:"subscriber_city,omitempty"`
	SubscriberState       string `json:"subscriber_state,omitempty" validate:"omitempty,len=2,alpha"`
	SubscriberZip         string `json:"subscriber_zip,omitempty" validate:"omitempty,zipcode"`
	GroupNumber           string `json:"group_number,omitempty"`
	MemberID              string `json:"member_id,omitempty"`

	Inquiries []Inquiry `json:"inquiries" validate:"required,min=1,dive"`

	Interchange     map[string]string `json:"interchange,omitempty"`
	FunctionalGroup map[string]string `json:"functional_group,omitempty"`
	Transaction     map[string]string `json:"transaction,omitempty"`
}

// clone returns a deep copy of p
func (p Eligibility270Params) clone() Eligibility270Params {
	c := p
	c.Inquiries = append([]Inquiry(nil), p.Inquiries...)
	c.Interchange = copyStringMap(p.Interchange)
	c.FunctionalGroup = copyStringMap(p.FunctionalGroup)
	c.Transaction = copyStringMap(p.Transaction)
	return c
}

func validateParams(p Eligibility270Params) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	first := validationErrs[0]
	sentinel, ok := fieldErrors[first.StructField()]
	if !ok {
		sentinel = ErrInvalidRecord
	}
	field := first.Field()
	if ns := first.Namespace(); ns != "" {
		if _, rest, found := strings.Cut(ns, "."); found {
			field = rest
		}
	}
	return &FieldError{Field: field, Value: first.Value(), Err: sentinel}
}

// Eligibility270 is a validated 270 eligibility inquiry. It can only be
// obtained through one of its constructors, and is never modified after
// construction.
type Eligibility270 struct {
	params Eligibility270Params
}

// NewEligibility270 validates params and returns a record holding a deep
// copy of them
func NewEligibility270(params Eligibility270Params) (*Eligibility270, error) {
	p := params.clone()
	if err := validateParams(p); err != nil {
		return nil, err
	}
	return &Eligibility270{params: p}, nil
}

// Eligibility270FromData builds a record from flat key/value data, using
// `subscriber_*` keys for the subscriber, `inquiries` for the list of
// inquiries and `interchange`/`functional_group`/`transaction` for
// envelope values
func Eligibility270FromData(data map[string]any) (*Eligibility270, error) {
	str := func(key string) string {
		return strings.TrimSpace(stringValue(data[key]))
	}
	params := Eligibility270Params{
		SubscriberID:          str("subscriber_id"),
		SubscriberFirstName:   str("subscriber_first_name"),
		SubscriberLastName:    str("subscriber_last_name"),
		SubscriberMiddleName:  str("subscriber_middle_name"),
		SubscriberDateOfBirth: str("subscriber_date_of_birth"),
		SubscriberGender:      str("subscriber_gender"),
		SubscriberAddress:     str("subscriber_address"),
		SubscriberCity:        str("subscriber_city"),
		SubscriberState:       str("subscriber_state"),
		SubscriberZip:         str("subscriber_zip"),
		GroupNumber:           str("group_number"),
		MemberID:              str("member_id"),
		Inquiries:             inquiriesFromData(data["inquiries"]),
		Interchange:           stringMap(data["interchange"]),
		FunctionalGroup:       stringMap(data["functional_group"]),
		Transaction:           stringMap(data["transaction"]),
	}
	return NewEligibility270(params)
}

func inquiriesFromData(v any) []Inquiry {
	var rows []map[string]string
	switch val := v.(type) {
	case []any:
		for _, row := range val {
			rows = append(rows, stringMap(row))
		}
	case []map[string]any:
		for _, row := range val {
			rows = append(rows, stringMap(row))
		}
	case []map[string]string:
		rows = val
	case []Inquiry:
		return append([]Inquiry(nil), val...)
	}
	if rows == nil {
		return nil
	}
	inquiries := make([]Inquiry, 0, len(rows))
	for _, row := range rows {
		inquiries = append(inquiries, inquiryFromMap(row))
	}
	return inquiries
}

func inquiryFromMap(m map[string]string) Inquiry {
	return Inquiry{
		ServiceTypeCode:     strings.TrimSpace(m["service_type_code"]),
		ProcedureIdentifier: strings.TrimSpace(m["procedure_identifier"]),
		CoverageLevelCode:   strings.TrimSpace(m["coverage_level_code"]),
		InsuranceTypeCode:   strings.TrimSpace(m["insurance_type_code"]),
	}
}

// stringMap converts a JSON-origin object into a map of strings. Anything
// that isn't an object yields nil.
func stringMap(v any) map[string]string {
	switch val := v.(type) {
	case map[string]string:
		return copyStringMap(val)
	case map[string]any:
		m := make(map[string]string, len(val))
		for k, item := range val {
			m[k] = stringValue(item)
		}
		return m
	}
	return nil
}

// Eligibility270FromParsed builds a record from the projection produced
// by the 270 validator
func Eligibility270FromParsed(data *ParsedData) (*Eligibility270, error) {
	if data == nil {
		return nil, fmt.Errorf("%w: no parsed data", ErrInvalidRecord)
	}
	params := Eligibility270Params{
		SubscriberID:          data.Subscriber["id"],
		SubscriberFirstName:   data.Subscriber["first_name"],
		SubscriberLastName:    data.Subscriber["last_name"],
		SubscriberMiddleName:  data.Subscriber["middle_name"],
		SubscriberDateOfBirth: data.Demographics["date_of_birth"],
		SubscriberGender:      data.Demographics["gender"],
		SubscriberAddress:     data.Address["street"],
		SubscriberCity:        data.Address["city"],
		SubscriberState:       data.Address["state"],
		SubscriberZip:         data.Address["zip"],
		GroupNumber:           data.Identifiers["group_number"],
		MemberID:              data.Identifiers["member_id"],
		Interchange:           data.Interchange,
		FunctionalGroup:       data.FunctionalGroup,
		Transaction:           data.Transaction,
	}
	for _, row := range data.Inquiries {
		params.Inquiries = append(params.Inquiries, inquiryFromMap(row))
	}
	return NewEligibility270(params)
}

// Params returns a deep copy of the record's fields
func (e *Eligibility270) Params() Eligibility270Params {
	return e.params.clone()
}

func (e *Eligibility270) SubscriberID() string          { return e.params.SubscriberID }
func (e *Eligibility270) SubscriberFirstName() string   { return e.params.SubscriberFirstName }
func (e *Eligibility270) SubscriberLastName() string    { return e.params.SubscriberLastName }
func (e *Eligibility270) SubscriberMiddleName() string  { return e.params.SubscriberMiddleName }
func (e *Eligibility270) SubscriberDateOfBirth() string { return e.params.SubscriberDateOfBirth }
func (e *Eligibility270) SubscriberGender() string      { return e.params.SubscriberGender }
func (e *Eligibility270) SubscriberAddress() string     { return e.params.SubscriberAddress }
func (e *Eligibility270) SubscriberCity() string        { return e.params.SubscriberCity }
func (e *Eligibility270) SubscriberState() string       { return e.params.SubscriberState }
func (e *Eligibility270) SubscriberZip() string         { return e.params.SubscriberZip }
func (e *Eligibility270) GroupNumber() string           { return e.params.GroupNumber }
func (e *Eligibility270) MemberID() string              { return e.params.MemberID }

func (e *Eligibility270) Inquiries() []Inquiry {
	return append([]Inquiry(nil), e.params.Inquiries...)
}

func (e *Eligibility270) Interchange() map[string]string {
	return copyStringMap(e.params.Interchange)
}

func (e *Eligibility270) FunctionalGroup() map[string]string {
	return copyStringMap(e.params.FunctionalGroup)
}

func (e *Eligibility270) Transaction() map[string]string {
	return copyStringMap(e.params.Transaction)
}

// FullName returns the first, middle (if any) and last name, single-spaced
func (e *Eligibility270) FullName() string {
	return strings.Join(
		strings.Fields(
			strings.Join(
				[]string{
					e.params.SubscriberFirstName,
					e.params.SubscriberMiddleName,
					e.params.SubscriberLastName,
				}, " ",
			),
		), " ",
	)
}

// FullAddress returns the street address followed by whichever of city,
// state and zip are present, ex: `1 Main St, Springfield, IL 62701`
func (e *Eligibility270) FullAddress() string {
	var b strings.Builder
	b.WriteString(e.params.SubscriberAddress)
	if e.params.SubscriberCity != "" {
		b.WriteString(", " + e.params.SubscriberCity)
	}
	if e.params.SubscriberState != "" {
		b.WriteString(", " + e.params.SubscriberState)
	}
	if e.params.SubscriberZip != "" {
		b.WriteString(" " + e.params.SubscriberZip)
	}
	return strings.TrimSpace(strings.TrimLeft(b.String(), ", "))
}

func (e *Eligibility270) HasCompleteAddress() bool {
	return e.params.SubscriberAddress != "" &&
		e.params.SubscriberCity != "" &&
		e.params.SubscriberState != "" &&
		e.params.SubscriberZip != ""
}

func (e *Eligibility270) HasDemographics() bool {
	return e.params.SubscriberDateOfBirth != "" || e.params.SubscriberGender != ""
}

// Validate re-checks the record. A record obtained from a constructor
// always passes; a zero value never does.
func (e *Eligibility270) Validate() error {
	if e == nil {
		return fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	return validateParams(e.params)
}

// Data returns the record as flat key/value data, in the form accepted
// by Eligibility270FromData
func (e *Eligibility270) Data() map[string]any {
	p := e.params
	data := map[string]any{
		"subscriber_id":         p.SubscriberID,
		"subscriber_first_name": p.SubscriberFirstName,
		"subscriber_last_name":  p.SubscriberLastName,
	}
	optional := map[string]string{
		"subscriber_middle_name":   p.SubscriberMiddleName,
		"subscriber_date_of_birth": p.SubscriberDateOfBirth,
		"subscriber_gender":        p.SubscriberGender,
		"subscriber_address":       p.SubscriberAddress,
		"subscriber_city":          p.SubscriberCity,
		"subscriber_state":         p.SubscriberState,
		"subscriber_zip":           p.SubscriberZip,
		"group_number":             p.GroupNumber,
		"member_id":                p.MemberID,
	}
	for k, v := range optional {
		if v != "" {
			data[k] = v
		}
	}

	inquiries := make([]any, 0, len(p.Inquiries))
	for _, inq := range p.Inquiries {
		row := map[string]any{"service_type_code": inq.ServiceTypeCode}
		if inq.ProcedureIdentifier != "" {
			row["procedure_identifier"] = inq.ProcedureIdentifier
		}
		if inq.CoverageLevelCode != "" {
			row["coverage_level_code"] = inq.CoverageLevelCode
		}
		if inq.InsuranceTypeCode != "" {
			row["insurance_type_code"] = inq.InsuranceTypeCode
		}
		inquiries = append(inquiries, row)
	}
	data["inquiries"] = inquiries

	for key, m := range map[string]map[string]string{
		"interchange":      p.Interchange,
		"functional_group": p.FunctionalGroup,
		"transaction":      p.Transaction,
	} {
		if len(m) > 0 {
			data[key] = copyStringMap(m)
		}
	}
	return data
}

// With returns a new validated record with the changes made by fn
// applied to a copy of this record's fields
func (e *Eligibility270) With(fn func(p *Eligibility270Params)) (*Eligibility270, error) {
	p := e.params.clone()
	fn(&p)
	return NewEligibility270(p)
}

func (e *Eligibility270) WithSubscriberID(v string) (*Eligibility270, error) {
	return e.With(func(p *Eligibility270Params) { p.SubscriberID = v })
}

func (e *Eligibility270) WithFirstName(v string) (*Eligibility270, error) {
	return e.With(func(p *Eligibility270Params) { p.SubscriberFirstName = v })
}

func (e *Eligibility270) WithMiddleName(v string) (*Eligibility270, error) {
	return e.With(func(p *Eligibility270Params) { p.SubscriberMiddleName = v })
}

func (e *Eligibility270) WithLastName(v string) (*Eligibility270, error) {
	return e.With(func(p *Eligibility270Params) { p.SubscriberLastName = v })
}

func (e *Eligibility270) WithDateOfBirth(v string) (*Eligibility270, error) {
	return e.With(func(p *Eligibility270Params) { p.SubscriberDateOfBirth = v })
}

func (e *Eligibility270) WithGender(v string) (*Eligibility270, error) {
	return e.With(func(p *Eligibility270Params) { p.SubscriberGender = v })
}

func (e *Eligibility270) WithMemberID(v string) (*Eligibility270, error) {
	return e.With(func(p *Eligibility270Params) { p.MemberID = v })
}

func (e *Eligibility270) WithGroupNumber(v string) (*Eligibility270, error) {
	return e.With(func(p *Eligibility270Params) { p.GroupNumber = v })
}

func (e *Eligibility270) WithInquiries(inquiries ...Inquiry) (*Eligibility270, error) {
	return e.With(func(p *Eligibility270Params) { p.Inquiries = inquiries })
}

func (e *Eligibility270) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.params)
}

// UnmarshalJSON decodes and validates the record. On failure the
// receiver is left unchanged.
func (e *Eligibility270) UnmarshalJSON(b []byte) error {
	var p Eligibility270Params
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	if err := validateParams(p); err != nil {
		return err
	}
	e.params = p.clone()
	return nil
}
