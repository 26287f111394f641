package formatting

import (
	"encoding/json"
	"io"

	"gopkg.in/yaml.v3"
)

// EncodedFormatter writes reports as JSON or YAML documents for scripts.
type EncodedFormatter struct {
	format OutputFormat
	// compact drops JSON indentation.
	compact bool
}

// NewEncodedFormatter returns a formatter for FormatJSON or FormatYAML.
// Any other format is written as JSON.
func NewEncodedFormatter(options Options) *EncodedFormatter {
	return &EncodedFormatter{format: options.Format, compact: options.Quiet}
}

// attributeDocument is the document written by FormatAttributes.
type attributeDocument struct {
	Owner      string         `json:"owner" yaml:"owner"`
	Attributes []AttributeRow `json:"attributes" yaml:"attributes"`
}

func (f *EncodedFormatter) FormatScale(w io.Writer, report ScaleReport) error {
	return f.write(w, report)
}

func (f *EncodedFormatter) FormatCluster(w io.Writer, view ClusterView) error {
	return f.write(w, view)
}

func (f *EncodedFormatter) FormatAttributes(w io.Writer, owner string, attrs []AttributeRow) error {
	if attrs == nil {
		attrs = []AttributeRow{}
	}
	return f.write(w, attributeDocument{Owner: owner, Attributes: attrs})
}

func (f *EncodedFormatter) write(w io.Writer, v any) error {
	if f.format == FormatYAML {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	if !f.compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
