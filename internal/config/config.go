// Package config loads the YAML configuration used to wire the parser,
// builder, validators and their I/O collaborators.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arcward/x12elig"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Delimiters is a delimiter triple as written in YAML
type Delimiters struct {
	Segment    string `yaml:"segment"`
	Element    string `yaml:"element"`
	SubElement string `yaml:"sub_element"`
}

// DelimiterConfig holds the default delimiters and per-transaction
// overrides
type DelimiterConfig struct {
	Default   Delimiters            `yaml:"default"`
	Overrides map[string]Delimiters `yaml:"overrides"`
}

type StorageConfig struct {
	// Driver is `file` or `s3`
	Driver    string `yaml:"driver"`
	Dir       string `yaml:"dir"`
	BackupDir string `yaml:"backup_dir"`

	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	UseSSL          bool   `yaml:"use_ssl"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type NamingConfig struct {
	Prefix string `yaml:"prefix"`
}

// Config is the complete application configuration
type Config struct {
	Delimiters            DelimiterConfig   `yaml:"delimiters"`
	Validators            map[string]string `yaml:"validators"`
	SupportedTransactions []string          `yaml:"supported_transactions"`
	Storage               StorageConfig     `yaml:"storage"`
	HTTP                  HTTPConfig        `yaml:"http"`
	Log                   LogConfig         `yaml:"log"`
	Naming                NamingConfig      `yaml:"naming"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		Delimiters: DelimiterConfig{
			Default: Delimiters{Segment: "~", Element: "*", SubElement: ":"},
		},
		Validators:            map[string]string{"270": "eligibility270"},
		SupportedTransactions: []string{"270", "271", "835", "837"},
		Storage:               StorageConfig{Driver: "file", Dir: ".", Region: "us-east-1"},
		HTTP:                  HTTPConfig{Addr: ":8080"},
		Log:                   LogConfig{Level: "info", Format: "text"},
		Naming:                NamingConfig{Prefix: "x12"},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overrides values from X12ELIG_* environment variables
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(key string, dst *string) {
		if v := getenv("X12ELIG_" + key); v != "" {
			*dst = v
		}
	}
	set("HTTP_ADDR", &c.HTTP.Addr)
	set("LOG_LEVEL", &c.Log.Level)
	set("LOG_FORMAT", &c.Log.Format)
	set("NAMING_PREFIX", &c.Naming.Prefix)
	set("STORAGE_DRIVER", &c.Storage.Driver)
	set("STORAGE_DIR", &c.Storage.Dir)
	set("STORAGE_BACKUP_DIR", &c.Storage.BackupDir)
	set("S3_BUCKET", &c.Storage.Bucket)
	set("S3_REGION", &c.Storage.Region)
	set("S3_ENDPOINT", &c.Storage.Endpoint)
	set("S3_ACCESS_KEY_ID", &c.Storage.AccessKeyID)
	set("S3_SECRET_ACCESS_KEY", &c.Storage.SecretAccessKey)
	if v := getenv("X12ELIG_S3_USE_SSL"); v != "" {
		c.Storage.UseSSL = v == "true"
	}
	if v := getenv("X12ELIG_SUPPORTED_TRANSACTIONS"); v != "" {
		var txTypes []string
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				txTypes = append(txTypes, t)
			}
		}
		c.SupportedTransactions = txTypes
	}
}

// Validate checks that every delimiter set and validator name resolves
func (c Config) Validate() error {
	var errs []error
	if _, err := c.DelimiterTable(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Registry(); err != nil {
		errs = append(errs, err)
	}
	switch c.Storage.Driver {
	case "file", "":
	case "s3":
		if c.Storage.Bucket == "" {
			errs = append(errs, fmt.Errorf("%w: storage.bucket is required for s3", ErrInvalidConfig))
		}
	default:
		errs = append(
			errs,
			fmt.Errorf("%w: unknown storage driver %q", ErrInvalidConfig, c.Storage.Driver),
		)
	}
	return errors.Join(errs...)
}

func (d Delimiters) toCore() (x12elig.Delimiters, error) {
	return x12elig.NewDelimiters(d.Segment, d.Element, d.SubElement)
}

// DelimiterTable converts the delimiter section to the table used by the
// parser and builder
func (c Config) DelimiterTable() (x12elig.DelimiterTable, error) {
	defaults := x12elig.DefaultDelimiters()
	if c.Delimiters.Default != (Delimiters{}) {
		d, err := c.Delimiters.Default.toCore()
		if err != nil {
			return x12elig.DelimiterTable{}, fmt.Errorf("delimiters.default: %w", err)
		}
		defaults = d
	}

	overrides := make(map[string]x12elig.Delimiters, len(c.Delimiters.Overrides))
	for _, txType := range sortedKeys(c.Delimiters.Overrides) {
		d, err := c.Delimiters.Overrides[txType].toCore()
		if err != nil {
			return x12elig.DelimiterTable{}, fmt.Errorf("delimiters.overrides.%s: %w", txType, err)
		}
		overrides[txType] = d
	}
	return x12elig.NewDelimiterTable(defaults, overrides), nil
}

// Registry resolves the configured validator names
func (c Config) Registry() (*x12elig.Registry, error) {
	table, err := c.DelimiterTable()
	if err != nil {
		return nil, err
	}
	factories := make(map[string]x12elig.ValidatorFactory, len(c.Validators))
	for _, txType := range sortedKeys(c.Validators) {
		f, err := x12elig.ValidatorFactoryByName(c.Validators[txType])
		if err != nil {
			return nil, fmt.Errorf("validators.%s: %w", txType, err)
		}
		factories[txType] = f
	}
	return x12elig.NewRegistry(table, factories), nil
}

// ParserOptions returns the options for the configured supported
// transactions
func (c Config) ParserOptions() []x12elig.ParserOption {
	if len(c.SupportedTransactions) == 0 {
		return nil
	}
	return []x12elig.ParserOption{
		x12elig.WithSupportedTransactionTypes(c.SupportedTransactions...),
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
