// CLAUDE:SUMMARY Configuration struct, defaults and YAML loader for the docparse pipeline.
package docparse

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Config configures the Pipeline and the default options of each parser.
type Config struct {
	// MaxFileSize is the largest PDF accepted and the largest HTTP upload
	// (default: 100 MB). CSV files on disk are streamed and not capped.
	MaxFileSize int64 `json:"max_file_size" yaml:"max_file_size"`

	// PathRoot confines path-based requests arriving through the transport
	// endpoints (HTTP, MCP, RPC) to files under this directory. Empty means
	// any path. Uploads are exempt.
	PathRoot string `json:"-" yaml:"path_root"`

	// DenyPaths rejects every path-based endpoint request; only uploads
	// are parsed. It takes precedence over PathRoot.
	DenyPaths bool `json:"-" yaml:"deny_paths"`

	CSV CSVConfig `json:"csv" yaml:"csv"`
	PDF PDFConfig `json:"pdf" yaml:"pdf"`

	// Logger for debug/error messages.
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// CSVConfig is the file-facing form of CSVOptions.
type CSVConfig struct {
	HasHeaders *bool  `json:"has_headers,omitempty" yaml:"has_headers"` // default true
	Delimiter  string `json:"delimiter,omitempty" yaml:"delimiter"`     // one byte, or "tab"; default ","
	Strict     bool   `json:"strict,omitempty" yaml:"strict"`
	BatchSize  int    `json:"batch_size,omitempty" yaml:"batch_size"`
}

// PDFConfig is the file-facing form of PDFOptions.
type PDFConfig struct {
	ExtractMetadata *bool  `json:"extract_metadata,omitempty" yaml:"extract_metadata"` // default true
	Password        string `json:"-" yaml:"password"`
	BatchSize       int    `json:"batch_size,omitempty" yaml:"batch_size"`
}

func (c *Config) defaults() {
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = 100 * 1024 * 1024
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Validate checks values that defaults cannot repair.
func (c *Config) Validate() error {
	if _, err := ParseDelimiter(c.CSV.Delimiter); err != nil {
		return err
	}
	if c.CSV.BatchSize < 0 {
		return fmt.Errorf("csv.batch_size must be >= 0, got %d", c.CSV.BatchSize)
	}
	if c.PDF.BatchSize < 0 {
		return fmt.Errorf("pdf.batch_size must be >= 0, got %d", c.PDF.BatchSize)
	}
	return nil
}

// ParseDelimiter accepts "" (comma), "tab", "\t" or any single ASCII byte.
func ParseDelimiter(s string) (byte, error) {
	switch s {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	if len(s) != 1 || !validDelimiter(s[0]) {
		return 0, fmt.Errorf("invalid delimiter %q: want a single ASCII byte", s)
	}
	return s[0], nil
}

// CSVOptions returns the configured tabular parser options.
func (c *Config) CSVOptions() CSVOptions {
	opts := DefaultCSVOptions()
	if c.CSV.HasHeaders != nil {
		opts.HasHeaders = *c.CSV.HasHeaders
	}
	if d, err := ParseDelimiter(c.CSV.Delimiter); err != nil {
		opts.delimiterErr = err
	} else {
		opts.Delimiter = d
	}
	opts.Strict = c.CSV.Strict
	opts.BatchSize = c.CSV.BatchSize
	opts.Logger = c.Logger
	return opts
}

// PDFOptions returns the configured paginated parser options.
func (c *Config) PDFOptions() PDFOptions {
	opts := DefaultPDFOptions()
	if c.PDF.ExtractMetadata != nil {
		opts.ExtractMetadata = *c.PDF.ExtractMetadata
	}
	opts.Password = c.PDF.Password
	opts.BatchSize = c.PDF.BatchSize
	opts.Logger = c.Logger
	return opts
}

// LoadConfigFile reads a YAML config file and validates it.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}
