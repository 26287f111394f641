// Package formatting renders scale results and cluster state for the CLI
// in table, JSON or YAML form.
package formatting

import (
	"fmt"
	"io"
)

// OutputFormat selects how reports are written.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// Formats lists the accepted output formats.
var Formats = []OutputFormat{FormatTable, FormatJSON, FormatYAML}

// ParseFormat validates a user supplied format name.
func ParseFormat(s string) (OutputFormat, error) {
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported output format %q (expected table, json or yaml)", s)
}

// Options configures a Formatter.
type Options struct {
	Format OutputFormat
	// Quiet drops titles and summaries from tables and indentation from JSON.
	Quiet bool
	// Color enables ANSI colors in tables.
	Color bool
}

// Formatter writes reports to w.
type Formatter interface {
	FormatScale(w io.Writer, report ScaleReport) error
	FormatCluster(w io.Writer, view ClusterView) error
	FormatAttributes(w io.Writer, owner string, attrs []AttributeRow) error
}

// NewFormatter creates the formatter for options.Format. Unknown formats
// fall back to tables.
func NewFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON, FormatYAML:
		return NewEncodedFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}
