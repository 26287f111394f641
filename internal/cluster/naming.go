package cluster

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

// DefaultNameTemplate renders "<cluster>-<index>".
const DefaultNameTemplate = "{{ .cluster }}-{{ .index }}"

type nameRenderer struct {
	tmpl *template.Template
}

func newNameRenderer(text string) (*nameRenderer, error) {
	if text == "" {
		text = DefaultNameTemplate
	}
	tmpl, err := template.New("member-name").
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("invalid member name template %q: %w", text, err)
	}
	return &nameRenderer{tmpl: tmpl}, nil
}

func (r *nameRenderer) render(clusterName, memberType string, index int64) (string, error) {
	var buf bytes.Buffer
	data := map[string]any{
		"cluster": clusterName,
		"index":   index,
		"type":    memberType,
	}
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering member name %d: %w", index, err)
	}
	if buf.Len() == 0 {
		return "", fmt.Errorf("member name template rendered an empty name for index %d", index)
	}
	return buf.String(), nil
}

// validate makes sure distinct indexes render distinct names.
func (r *nameRenderer) validate(clusterName, memberType string) error {
	first, err := r.render(clusterName, memberType, 1)
	if err != nil {
		return err
	}
	second, err := r.render(clusterName, memberType, 2)
	if err != nil {
		return err
	}
	if first == second {
		return fmt.Errorf("member name template must depend on .index, renders %q for every member", first)
	}
	return nil
}
