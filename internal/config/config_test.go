package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arcward/x12elig"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)

	table, err := cfg.DelimiterTable()
	require.NoError(t, err)
	assert.Equal(t, x12elig.DefaultDelimiters(), table.For("270"))

	registry, err := cfg.Registry()
	require.NoError(t, err)
	assert.Equal(t, []string{"270"}, registry.TransactionTypes())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(
		t, `
delimiters:
  overrides:
    "270":
      segment: "'"
      element: "+"
      sub_element: ":"
supported_transactions: ["270"]
storage:
  driver: s3
  bucket: edi
log:
  level: debug
naming:
  prefix: elig
`,
	)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "elig", cfg.Naming.Prefix)
	assert.Equal(t, "s3", cfg.Storage.Driver)

	table, err := cfg.DelimiterTable()
	require.NoError(t, err)
	assert.Equal(t, x12elig.MustDelimiters("'", "+", ":"), table.For("270"))
	assert.Equal(t, x12elig.DefaultDelimiters(), table.For("835"))

	// the override flows into parsing
	parser := x12elig.NewParser(table, cfg.ParserOptions()...)
	outcome := parser.Parse("ISA+00'ST+270+0001'SE+2+0001'", x12elig.TransactionType("270"))
	require.NoError(t, outcome.Err())
	assert.Equal(t, []string{"270"}, parser.SupportedTransactionTypes())
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("X12ELIG_HTTP_ADDR", ":9999")
	t.Setenv("X12ELIG_SUPPORTED_TRANSACTIONS", "270, 271")
	t.Setenv("X12ELIG_LOG_FORMAT", "json")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.HTTP.Addr)
	assert.Equal(t, []string{"270", "271"}, cfg.SupportedTransactions)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadInvalid(t *testing.T) {
	testCases := map[string]string{
		"duplicate delimiters": `
delimiters:
  default: {segment: "~", element: "~", sub_element: ":"}
`,
		"unknown validator": `
validators:
  "270": nope
`,
		"unknown driver": `
storage:
  driver: ftp
`,
		"s3 without bucket": `
storage:
  driver: s3
`,
		"malformed": "delimiters: [",
	}
	for name, content := range testCases {
		t.Run(
			name, func(t *testing.T) {
				_, err := Load(writeConfig(t, content))
				assert.Error(t, err)
			},
		)
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
