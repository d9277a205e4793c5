// Command x12elig decodes and encodes X12 270 eligibility inquiries, and
// serves the same operations over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"github.com/arcward/x12elig"
	"github.com/arcward/x12elig/internal/config"
	"github.com/arcward/x12elig/internal/naming"
	"github.com/arcward/x12elig/internal/platform/logger"
	"github.com/arcward/x12elig/internal/service"
	"github.com/arcward/x12elig/internal/storage"
	httptransport "github.com/arcward/x12elig/internal/transport/http"
)

// Exit codes
const (
	exitOK         = 0
	exitValidation = 1
	exitUsage      = 2
	exitIO         = 3
)

const usage = `usage: x12elig <command> [flags] [file]

commands:
  decode   parse and validate an X12 document (file or - for stdin)
  encode   build an X12 document from a JSON record (file or - for stdin)
  serve    run the HTTP API
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	switch args[0] {
	case "decode":
		return runDecode(args[1:], stdin, stdout, stderr)
	case "encode":
		return runEncode(args[1:], stdin, stdout, stderr)
	case "serve":
		return runServe(args[1:], stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return exitUsage
	}
}

// app holds the collaborators built from configuration
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	processor *service.Processor
}

func newApp(configPath string, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}, stderr)

	table, err := cfg.DelimiterTable()
	if err != nil {
		return nil, err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	processor := service.New(
		x12elig.NewParser(table, cfg.ParserOptions()...),
		registry,
		x12elig.NewBuilder(table),
		service.WithStore(newStore(cfg.Storage)),
		service.WithNamer(naming.New(cfg.Naming.Prefix)),
		service.WithLogger(log),
	)
	return &app{cfg: cfg, logger: log, processor: processor}, nil
}

func newStore(cfg config.StorageConfig) storage.Store {
	if cfg.Driver == "s3" {
		return storage.NewS3Store(
			storage.S3Config{
				Bucket:          cfg.Bucket,
				Region:          cfg.Region,
				Endpoint:        cfg.Endpoint,
				UseSSL:          cfg.UseSSL,
				AccessKeyID:     cfg.AccessKeyID,
				SecretAccessKey: cfg.SecretAccessKey,
				BackupPrefix:    cfg.BackupDir,
			},
		)
	}
	return storage.NewFileStore(cfg.Dir, cfg.BackupDir)
}

// readInput reads the named file, or stdin for `-`
func readInput(name string, stdin io.Reader) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(name)
}

func runDecode(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("decode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	expected := fs.String("type", "", "expected transaction type, ex: 270")
	detect := fs.Bool("detect", false, "detect delimiters from the ISA segment")
	fromStore := fs.Bool("store", false, "load the document from the configured store")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "decode: expected exactly one file argument")
		return exitUsage
	}
	name := fs.Arg(0)

	a, err := newApp(*configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "decode: %v\n", err)
		return exitUsage
	}
	ctx := context.Background()

	var result service.DecodeResult
	if *fromStore {
		if *detect {
			fmt.Fprintln(stderr, "decode: -detect cannot be combined with -store")
			return exitUsage
		}
		result, err = a.processor.DecodeFile(ctx, name, *expected)
		if err != nil {
			fmt.Fprintf(stderr, "decode: %v\n", err)
			return exitIO
		}
	} else {
		b, err := readInput(name, stdin)
		if err != nil {
			fmt.Fprintf(stderr, "decode: %v\n", err)
			return exitIO
		}
		content := string(b)
		var opts []x12elig.Option
		if *detect {
			d, err := x12elig.DetectDelimiters(content)
			if err != nil {
				fmt.Fprintf(stderr, "decode: %v\n", err)
				return exitValidation
			}
			a.logger.Debug("detected delimiters", "delimiters", d.String())
			opts = append(opts, x12elig.UsingDelimiters(d))
		}
		result = a.processor.Decode(ctx, content, *expected, opts...)
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result.Report()); err != nil {
		fmt.Fprintf(stderr, "decode: %v\n", err)
		return exitIO
	}
	if !result.OK() {
		return exitValidation
	}
	return exitOK
}

func runEncode(args []string, stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("encode", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	txType := fs.String("type", "270", "transaction type to encode")
	save := fs.Bool("save", false, "save to the configured store with a generated name")
	dir := fs.String("dir", "", "directory within the store when saving")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "encode: expected exactly one file argument")
		return exitUsage
	}

	a, err := newApp(*configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "encode: %v\n", err)
		return exitUsage
	}

	b, err := readInput(fs.Arg(0), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "encode: %v\n", err)
		return exitIO
	}
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil {
		fmt.Fprintf(stderr, "encode: invalid JSON: %v\n", err)
		return exitValidation
	}
	data, err = x12elig.SanitizeData(data)
	if err != nil {
		fmt.Fprintf(stderr, "encode: %v\n", err)
		return exitValidation
	}

	ctx := context.Background()
	if *save {
		name, err := a.processor.EncodeToStore(ctx, data, *txType, *dir)
		if err != nil {
			fmt.Fprintf(stderr, "encode: %v\n", err)
			return encodeExitCode(err)
		}
		fmt.Fprintln(stdout, name)
		return exitOK
	}

	content, err := a.processor.Encode(ctx, data, *txType)
	if err != nil {
		fmt.Fprintf(stderr, "encode: %v\n", err)
		return exitValidation
	}
	fmt.Fprintln(stdout, content)
	return exitOK
}

// encodeExitCode separates storage failures from invalid input
func encodeExitCode(err error) int {
	var fieldErr *x12elig.FieldError
	switch {
	case errors.As(err, &fieldErr),
		errors.Is(err, x12elig.ErrInvalidRecord),
		errors.Is(err, x12elig.ErrUnsupportedTransaction),
		errors.Is(err, x12elig.ErrInvalidEnvelope),
		errors.Is(err, x12elig.ErrInvalidControlNumber),
		errors.Is(err, x12elig.ErrDelimiterInValue),
		errors.Is(err, x12elig.ErrInvalidSegment),
		errors.Is(err, service.ErrInvalidDir):
		return exitValidation
	}
	return exitIO
}

func runServe(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to a YAML config file")
	addr := fs.String("addr", "", "listen address, overrides http.addr")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	a, err := newApp(*configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "serve: %v\n", err)
		return exitUsage
	}
	listen := a.cfg.HTTP.Addr
	if *addr != "" {
		listen = *addr
	}

	srv := &http.Server{
		Addr:              listen,
		Handler:           httptransport.NewRouter(httptransport.NewHandler(a.processor, a.logger)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting x12elig", "addr", listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server error", "error", err)
			return exitIO
		}
		return exitOK
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("graceful shutdown failed", "error", err)
		return exitIO
	}
	a.logger.Info("server stopped")
	return exitOK
}
