package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// ErrorKind classifies why a configuration file was rejected.
type ErrorKind string

const (
	KindIO         ErrorKind = "io"
	KindParse      ErrorKind = "parse"
	KindValidation ErrorKind = "validation"
)

// FileError is a problem with one file of the configuration directory.
type FileError struct {
	Path     string    `json:"path"`
	Category string    `json:"category"`
	Kind     ErrorKind `json:"kind"`
	Message  string    `json:"message"`
	Details  string    `json:"details,omitempty"`
	// Line is 1-based; zero when the parser did not report one.
	Line        int      `json:"line,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func newFileError(path, category string, kind ErrorKind, message string) FileError {
	return FileError{Path: path, Category: category, Kind: kind, Message: message}
}

// File returns the base name of Path.
func (fe FileError) File() string {
	return filepath.Base(fe.Path)
}

func (fe FileError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", fe.Category, fe.File(), fe.Message)
	if fe.Details != "" {
		msg += ": " + fe.Details
	}
	return msg
}

// Report renders the error over several indented lines for terminals.
func (fe FileError) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s error)\n", fe.Path, fe.Kind)
	if fe.Line > 0 {
		fmt.Fprintf(&b, "  line %d: %s\n", fe.Line, fe.Message)
	} else {
		fmt.Fprintf(&b, "  %s\n", fe.Message)
	}
	if fe.Details != "" {
		fmt.Fprintf(&b, "  %s\n", fe.Details)
	}
	if len(fe.Suggestions) > 0 {
		b.WriteString("  Suggestions:\n")
		for _, s := range fe.Suggestions {
			fmt.Fprintf(&b, "    - %s\n", s)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FileErrors collects the rejected files of one load. The files that
// loaded fine are returned alongside it.
type FileErrors struct {
	Errors []FileError `json:"errors"`
}

func (fe *FileErrors) Error() string {
	switch len(fe.Errors) {
	case 0:
		return "no configuration errors"
	case 1:
		return fe.Errors[0].Error()
	}
	return fmt.Sprintf("%d configuration errors: %s (and %d more)",
		len(fe.Errors), fe.Errors[0].Error(), len(fe.Errors)-1)
}

// Len returns the number of rejected files.
func (fe *FileErrors) Len() int {
	return len(fe.Errors)
}

func (fe *FileErrors) add(err FileError) {
	fe.Errors = append(fe.Errors, err)
}

// ByCategory returns the errors of one category in load order.
func (fe *FileErrors) ByCategory(category string) []FileError {
	var out []FileError
	for _, err := range fe.Errors {
		if err.Category == category {
			out = append(out, err)
		}
	}
	return out
}

// Summary lists one line per rejected file, grouped by category.
func (fe *FileErrors) Summary() string {
	groups := make(map[string][]FileError)
	for _, err := range fe.Errors {
		groups[err.Category] = append(groups[err.Category], err)
	}
	categories := make([]string, 0, len(groups))
	for category := range groups {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	lines := []string{fmt.Sprintf("%d configuration files rejected:", len(fe.Errors))}
	for _, category := range categories {
		lines = append(lines, fmt.Sprintf("%s: %d errors", category, len(groups[category])))
		for _, err := range groups[category] {
			lines = append(lines, fmt.Sprintf("  - %s: %s", err.File(), err.Message))
		}
	}
	return strings.Join(lines, "\n")
}

// Report joins the Report of every error.
func (fe *FileErrors) Report() string {
	reports := make([]string, 0, len(fe.Errors))
	for _, err := range fe.Errors {
		reports = append(reports, err.Report())
	}
	return strings.Join(reports, "\n\n")
}

// err returns nil when nothing was rejected.
func (fe *FileErrors) err() error {
	if len(fe.Errors) == 0 {
		return nil
	}
	return fe
}
