// Package service composes parsing, validation, record construction and
// encoding with storage, naming, logging, metrics and tracing.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/arcward/x12elig"
	"github.com/arcward/x12elig/internal/metrics"
	"github.com/arcward/x12elig/internal/naming"
	"github.com/arcward/x12elig/internal/storage"
)

const tracerName = "github.com/arcward/x12elig/internal/service"

// Decode outcome labels
const (
	OutcomeOK              = "ok"
	OutcomeParseError      = "parse_error"
	OutcomeValidationError = "validation_error"
	OutcomeRecordError     = "record_error"
	OutcomeEncodeError     = "encode_error"
	OutcomeStorageError    = "storage_error"
)

var (
	ErrNoStore    = errors.New("no store configured")
	ErrInvalidDir = errors.New("invalid store directory")
	// ErrStorage wraps failures of the configured store
	ErrStorage = errors.New("storage failure")
)

// DecodeResult holds every stage of a decode. Validation is nil when
// parsing failed, and Record is nil unless validation succeeded.
type DecodeResult struct {
	Parse      x12elig.ParseOutcome
	Validation *x12elig.ValidationOutcome
	Record     *x12elig.Eligibility270
}

// OK reports whether every stage succeeded
func (r DecodeResult) OK() bool {
	return r.Parse.OK() && r.Validation != nil && r.Validation.OK() && r.Record != nil
}

// Err returns the first failing stage's error
func (r DecodeResult) Err() error {
	if err := r.Parse.Err(); err != nil {
		return err
	}
	if r.Validation != nil {
		return r.Validation.Err()
	}
	return nil
}

// Warnings returns parse and validation warnings together
func (r DecodeResult) Warnings() []string {
	warnings := append([]string{}, r.Parse.Warnings...)
	if r.Validation != nil {
		warnings = append(warnings, r.Validation.Warnings...)
	}
	return warnings
}

// Report is the JSON form of a DecodeResult
type Report struct {
	Success         bool                    `json:"success"`
	TransactionType string                  `json:"transaction_type,omitempty"`
	Errors          []string                `json:"errors,omitempty"`
	Warnings        []string                `json:"warnings,omitempty"`
	Data            *x12elig.ParsedData     `json:"data,omitempty"`
	Record          *x12elig.Eligibility270 `json:"record,omitempty"`
}

func (r DecodeResult) Report() Report {
	report := Report{
		Success:         r.OK(),
		TransactionType: r.Parse.TransactionType,
		Warnings:        r.Warnings(),
		Record:          r.Record,
	}
	if r.Validation != nil {
		report.Data = r.Validation.Data
	}
	if err := r.Err(); err != nil {
		report.Errors = ErrorStrings(err)
	}
	return report
}

// ErrorStrings flattens joined and outcome errors into messages
func ErrorStrings(err error) []string {
	if err == nil {
		return nil
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range multi.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}

// Processor runs decode and encode requests. It holds no per-request
// state and is safe for concurrent use.
type Processor struct {
	parser   *x12elig.Parser
	registry *x12elig.Registry
	builder  *x12elig.Builder
	store    storage.Store
	namer    *naming.Namer
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(p *Processor)

// WithStore sets the store used by DecodeFile and EncodeToStore
func WithStore(s storage.Store) Option {
	return func(p *Processor) {
		p.store = s
	}
}

// WithNamer sets the namer used by EncodeToStore
func WithNamer(n *naming.Namer) Option {
	return func(p *Processor) {
		p.namer = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = l
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(p *Processor) {
		p.tracer = t
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Processor) {
		p.now = now
	}
}

func New(
	parser *x12elig.Parser,
	registry *x12elig.Registry,
	builder *x12elig.Builder,
	opts ...Option,
) *Processor {
	p := &Processor{
		parser:   parser,
		registry: registry,
		builder:  builder,
		namer:    naming.New(""),
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Decode parses content, validates it with the registered validator for
// its transaction type and builds the domain record. A non-empty expected
// transaction type must match the document's ST01.
func (p *Processor) Decode(
	ctx context.Context,
	content string,
	expected string,
	opts ...x12elig.Option,
) DecodeResult {
	start := time.Now()
	defer metrics.ObserveDuration("decode", start)

	ctx, span := p.tracer.Start(ctx, "Processor.Decode")
	defer span.End()

	if expected != "" {
		opts = append([]x12elig.Option{x12elig.TransactionType(expected)}, opts...)
	}
	result := DecodeResult{Parse: p.parser.Parse(content, opts...)}
	txType := result.Parse.TransactionType
	span.SetAttributes(
		attribute.String("x12.expected_type", expected),
		attribute.String("x12.transaction_type", txType),
		attribute.Int("x12.segments", len(result.Parse.Segments)),
	)

	if !result.Parse.OK() {
		p.decodeFailed(ctx, span, txType, OutcomeParseError, result.Parse.Err())
		return result
	}

	validator, err := p.registry.ValidatorFor(txType, result.Parse.Delimiters)
	if err != nil {
		result.Validation = &x12elig.ValidationOutcome{
			TransactionType: txType,
			Errors:          []error{err},
		}
		p.decodeFailed(ctx, span, txType, OutcomeValidationError, err)
		return result
	}
	validation := validator.Validate(result.Parse.Segments)
	result.Validation = &validation
	metrics.ValidationErrors.WithLabelValues(txType).Add(float64(len(validation.Errors)))
	metrics.ValidationWarnings.WithLabelValues(txType).Add(float64(len(validation.Warnings)))
	for _, w := range validation.Warnings {
		p.logger.WarnContext(ctx, "validation warning", "transaction_type", txType, "warning", w)
	}
	if !validation.OK() {
		p.decodeFailed(ctx, span, txType, OutcomeValidationError, validation.Err())
		return result
	}

	record, err := x12elig.Eligibility270FromParsed(validation.Data)
	if err != nil {
		result.Validation.Errors = append(result.Validation.Errors, err)
		result.Validation.Data = nil
		p.decodeFailed(ctx, span, txType, OutcomeRecordError, err)
		return result
	}
	result.Record = record

	metrics.DocumentsDecoded.WithLabelValues(txType, OutcomeOK).Inc()
	p.logger.DebugContext(
		ctx,
		"decoded document",
		"transaction_type", txType,
		"segments", len(result.Parse.Segments),
		"warnings", len(validation.Warnings),
	)
	return result
}

func (p *Processor) decodeFailed(
	ctx context.Context,
	span trace.Span,
	txType string,
	outcome string,
	err error,
) {
	label := txType
	if label == "" {
		label = "unknown"
	}
	metrics.DocumentsDecoded.WithLabelValues(label, outcome).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome)
	p.logger.InfoContext(
		ctx,
		"decode failed",
		"transaction_type", txType,
		"outcome", outcome,
		"error", err,
	)
}

// DecodeFile loads a document from the store and decodes it
func (p *Processor) DecodeFile(
	ctx context.Context,
	name string,
	expected string,
	opts ...x12elig.Option,
) (DecodeResult, error) {
	if p.store == nil {
		return DecodeResult{}, ErrNoStore
	}
	content, err := p.store.Load(ctx, name)
	if err != nil {
		return DecodeResult{}, fmt.Errorf("loading %s: %w", name, err)
	}
	return p.Decode(ctx, content, expected, opts...), nil
}

// Encode builds an X12 document from flat record data
func (p *Processor) Encode(
	ctx context.Context,
	data map[string]any,
	txType string,
	opts ...x12elig.Option,
) (string, error) {
	content, err := p.encode(ctx, data, txType, opts...)
	if err != nil {
		return "", err
	}
	metrics.DocumentsEncoded.WithLabelValues(txType, OutcomeOK).Inc()
	return content, nil
}

// encode builds the document, recording failures. Success is counted by
// the caller once the document is delivered.
func (p *Processor) encode(
	ctx context.Context,
	data map[string]any,
	txType string,
	opts ...x12elig.Option,
) (string, error) {
	start := time.Now()
	defer metrics.ObserveDuration("encode", start)

	ctx, span := p.tracer.Start(
		ctx,
		"Processor.Encode",
		trace.WithAttributes(attribute.String("x12.transaction_type", txType)),
	)
	defer span.End()

	content, err := p.builder.BuildFromData(data, txType, opts...)
	if err != nil {
		metrics.DocumentsEncoded.WithLabelValues(txType, OutcomeEncodeError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, OutcomeEncodeError)
		p.logger.InfoContext(ctx, "encode failed", "transaction_type", txType, "error", err)
		return "", err
	}
	return content, nil
}

// EncodeToStore encodes data and saves it under dir with a generated
// name. dir is relative to the store root and may not leave it. A
// document already at that name is backed up first. The name is only
// generated after a successful encode.
func (p *Processor) EncodeToStore(
	ctx context.Context,
	data map[string]any,
	txType string,
	dir string,
	opts ...x12elig.Option,
) (string, error) {
	if p.store == nil {
		return "", ErrNoStore
	}
	dir, err := storeDir(dir)
	if err != nil {
		return "", err
	}
	content, err := p.encode(ctx, data, txType, opts...)
	if err != nil {
		return "", err
	}

	name := path.Join(dir, p.namer.Next(txType, p.now()))
	exists, err := p.store.Exists(ctx, name)
	if err != nil {
		return "", p.storageFailed(txType, "checking", name, err)
	}
	if exists {
		backup, err := p.store.Backup(ctx, name)
		if err != nil {
			return "", p.storageFailed(txType, "backing up", name, err)
		}
		p.logger.InfoContext(ctx, "backed up existing document", "path", name, "backup", backup)
	}
	if err := p.store.Save(ctx, content, name); err != nil {
		return "", p.storageFailed(txType, "saving", name, err)
	}
	metrics.DocumentsEncoded.WithLabelValues(txType, OutcomeOK).Inc()
	p.logger.InfoContext(ctx, "saved document", "path", name, "transaction_type", txType)
	return name, nil
}

func (p *Processor) storageFailed(txType string, action string, name string, err error) error {
	metrics.DocumentsEncoded.WithLabelValues(txType, OutcomeStorageError).Inc()
	return fmt.Errorf("%w: %s %s: %w", ErrStorage, action, name, err)
}

// storeDir cleans dir, rejecting absolute paths and paths that climb
// above the store root
func storeDir(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	if path.IsAbs(dir) || filepath.IsAbs(dir) {
		return "", fmt.Errorf("%w: %q is absolute", ErrInvalidDir, dir)
	}
	cleaned := path.Clean(filepath.ToSlash(dir))
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q is outside the store", ErrInvalidDir, dir)
	}
	return cleaned, nil
}

// TransactionTypes returns the transaction types with a registered
// validator
func (p *Processor) TransactionTypes() []string {
	return p.registry.TransactionTypes()
}
