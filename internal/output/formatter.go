// internal/output/formatter.go - Report formatting implementation
package output

import (
	"fmt"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format selects the report encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Formatter turns run reports into bytes
type Formatter interface {
	Format(v interface{}) ([]byte, error)
	ContentType() string
}

// JSONFormatter formats reports as JSON
type JSONFormatter struct {
	pretty bool
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(pretty bool) *JSONFormatter {
	return &JSONFormatter{pretty: pretty}
}

// Format encodes v using its json tags
func (f *JSONFormatter) Format(v interface{}) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if f.pretty {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return append(data, '\n'), nil
}

// ContentType returns the MIME type for JSON
func (f *JSONFormatter) ContentType() string {
	return "application/json"
}

// YAMLFormatter formats reports as YAML. Field names follow the json tags so
// both encodings describe a run with the same keys.
type YAMLFormatter struct{}

// Format encodes v as YAML
func (f *YAMLFormatter) Format(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}

	out, err := yaml.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return out, nil
}

// ContentType returns the MIME type for YAML
func (f *YAMLFormatter) ContentType() string {
	return "application/yaml"
}

// NewFormatter creates a formatter for format
func NewFormatter(format Format, pretty bool) (Formatter, error) {
	switch format {
	case FormatJSON:
		return NewJSONFormatter(pretty), nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// FormatFor picks the report format from a file extension; JSON unless the
// path ends in .yaml or .yml
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(TrimCompression(path))) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// WriteReport formats v for path and writes it, replacing any earlier report.
// "-" writes to stdout.
func WriteReport(path string, v interface{}, pretty bool) error {
	formatter, err := NewFormatter(FormatFor(path), pretty)
	if err != nil {
		return err
	}

	data, err := formatter.Format(v)
	if err != nil {
		return err
	}

	dest, err := NewDestination(path, Options{Overwrite: true})
	if err != nil {
		return err
	}
	if _, err := dest.Write(data); err != nil {
		dest.Close()
		return fmt.Errorf("failed to write report %s: %w", dest.Name(), err)
	}
	return dest.Close()
}
