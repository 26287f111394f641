package formatting

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// TableFormatter renders reports as go-pretty tables for terminals.
type TableFormatter struct {
	options Options
}

func NewTableFormatter(options Options) *TableFormatter {
	return &TableFormatter{
		options: options,
	}
}

// FormatScale renders the members of a scale operation followed by a
// summary line.
func (f *TableFormatter) FormatScale(w io.Writer, report ScaleReport) error {
	if len(report.Members) == 0 {
		f.writeMessage(w, text.FgYellow, "📋", fmt.Sprintf("Cluster %s: nothing to do", report.Cluster))
		return nil
	}

	t := f.createTable(w)
	t.AppendHeader(f.header("MEMBER", "INDEX", "STATE", "ERROR"))
	for _, m := range report.Members {
		t.AppendRow(table.Row{m.Name, m.Index, f.colorState(m.State), m.Error})
	}
	t.Render()

	color, icon := text.FgGreen, "✅"
	if !report.OK() {
		color, icon = text.FgRed, "❌"
	}
	f.writeMessage(w, color, icon, fmt.Sprintf("%s of %s: %d of %d members succeeded (required %d)",
		report.Operation, report.Cluster, report.Succeeded, report.Requested, report.Required))
	return nil
}

// FormatCluster renders a cluster header and its member table.
func (f *TableFormatter) FormatCluster(w io.Writer, view ClusterView) error {
	if !f.options.Quiet {
		fmt.Fprintf(w, "%s %s (%s) %s, %d members\n",
			f.paint(text.FgHiCyan, "Cluster"), view.Name, view.MemberType, f.colorState(view.State), view.Size)
		for _, p := range view.Problems {
			f.writeMessage(w, text.FgRed, "⚠️ ", p)
		}
	}

	if len(view.Members) == 0 {
		f.writeMessage(w, text.FgYellow, "📋", "No members")
		return nil
	}

	t := f.createTable(w)
	t.AppendHeader(f.header("MEMBER", "ID", "STATE", "HOST", "ERROR"))
	for _, m := range view.Members {
		t.AppendRow(table.Row{m.Name, m.ID, f.colorState(m.State), m.Host, m.Error})
	}
	t.Render()
	return nil
}

// FormatAttributes renders attribute values as key-value pairs.
func (f *TableFormatter) FormatAttributes(w io.Writer, owner string, attrs []AttributeRow) error {
	if len(attrs) == 0 {
		f.writeMessage(w, text.FgYellow, "📋", fmt.Sprintf("No attributes published by %s", owner))
		return nil
	}

	t := f.createTable(w)
	if !f.options.Quiet {
		t.SetTitle(owner)
	}
	t.AppendHeader(f.header("ATTRIBUTE", "VALUE", "UPDATED"))
	for _, a := range attrs {
		updated := ""
		if !a.UpdatedAt.IsZero() {
			updated = a.UpdatedAt.Format("15:04:05")
		}
		t.AppendRow(table.Row{f.paint(text.FgHiCyan, a.Name), valueString(a.Value), updated})
	}
	t.Render()
	return nil
}

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	if f.options.Quiet {
		t.SetStyle(table.StyleLight)
		t.Style().Options = table.OptionsNoBordersAndSeparators
	} else {
		t.SetStyle(table.StyleRounded)
	}
	return t
}

func (f *TableFormatter) header(names ...string) table.Row {
	row := make(table.Row, 0, len(names))
	for _, n := range names {
		row = append(row, f.paint(text.FgHiCyan, n))
	}
	return row
}

func (f *TableFormatter) colorState(state string) string {
	switch strings.ToUpper(state) {
	case "RUNNING":
		return f.paint(text.FgGreen, state)
	case "ON_FIRE":
		return f.paint(text.FgRed, state)
	case "STARTING", "STOPPING":
		return f.paint(text.FgYellow, state)
	default:
		return state
	}
}

func (f *TableFormatter) paint(c text.Color, s string) string {
	if !f.options.Color {
		return s
	}
	return c.Sprint(s)
}

// writeMessage writes a one-line status message
func (f *TableFormatter) writeMessage(w io.Writer, c text.Color, icon, message string) {
	if f.options.Quiet {
		fmt.Fprintln(w, message)
		return
	}
	fmt.Fprintf(w, "%s %s\n", icon, f.paint(c, message))
}
