// Package render writes command output as a styled table, JSON or YAML.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"
)

// Format represents an output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

// Options for rendering
type Options struct {
	Format Format
}

// Renderer handles output rendering. Styling degrades to plain text when
// the writer is not a terminal.
type Renderer struct {
	writer io.Writer
	opts   Options
	styles styles
}

type styles struct {
	header  lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	merged  lipgloss.Style
	warning lipgloss.Style
	failure lipgloss.Style
	added   lipgloss.Style
	deleted lipgloss.Style
}

// NewRenderer creates a new renderer
func NewRenderer(writer io.Writer, opts Options) *Renderer {
	if opts.Format == "" {
		opts.Format = FormatTable
	}
	lg := lipgloss.NewRenderer(writer)
	return &Renderer{
		writer: writer,
		opts:   opts,
		styles: styles{
			header:  lg.NewStyle().Bold(true),
			muted:   lg.NewStyle().Faint(true),
			success: lg.NewStyle().Foreground(lipgloss.Color("2")),
			merged:  lg.NewStyle().Foreground(lipgloss.Color("6")),
			warning: lg.NewStyle().Foreground(lipgloss.Color("3")),
			failure: lg.NewStyle().Foreground(lipgloss.Color("1")),
			added:   lg.NewStyle().Foreground(lipgloss.Color("2")),
			deleted: lg.NewStyle().Foreground(lipgloss.Color("1")),
		},
	}
}

// Format returns the configured output format.
func (r *Renderer) Format() Format {
	return r.opts.Format
}

// Structured reports whether output is JSON or YAML.
func (r *Renderer) Structured() bool {
	return r.opts.Format == FormatJSON || r.opts.Format == FormatYAML
}

// Render writes data as JSON or YAML according to the configured format.
func (r *Renderer) Render(data any) error {
	if r.opts.Format == FormatYAML {
		return r.RenderYAML(data)
	}
	return r.RenderJSON(data)
}

// RenderJSON renders data as JSON
func (r *Renderer) RenderJSON(data any) error {
	encoder := json.NewEncoder(r.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// RenderYAML renders data as YAML. Values go through JSON first so the
// json tags and MarshalText methods shape both formats the same way.
func (r *Renderer) RenderYAML(data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var generic any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return err
	}
	encoder := yaml.NewEncoder(r.writer)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(generic)
}

// Println writes one plain line.
func (r *Renderer) Println(a ...any) {
	fmt.Fprintln(r.writer, a...)
}

// Printf writes formatted plain text.
func (r *Renderer) Printf(format string, a ...any) {
	fmt.Fprintf(r.writer, format, a...)
}

// Muted renders s de-emphasized.
func (r *Renderer) Muted(s string) string {
	return r.styles.muted.Render(s)
}

// Header renders s in bold.
func (r *Renderer) Header(s string) string {
	return r.styles.header.Render(s)
}

// RenderTable renders data as a formatted table. Cells may already carry
// styling; widths are measured without escape sequences.
func (r *Renderer) RenderTable(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	// Calculate column widths
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	styled := make([]string, len(headers))
	for i, h := range headers {
		styled[i] = r.styles.header.Render(h)
	}
	if err := r.renderTableRow(styled, widths); err != nil {
		return err
	}
	if err := r.renderTableSeparator(widths); err != nil {
		return err
	}
	for _, row := range rows {
		if err := r.renderTableRow(row, widths); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) renderTableRow(cells []string, widths []int) error {
	var sb strings.Builder
	for i, cell := range cells {
		if i >= len(widths) {
			break
		}
		sb.WriteString(cell)
		if i < len(cells)-1 && i < len(widths)-1 {
			sb.WriteString(strings.Repeat(" ", widths[i]-lipgloss.Width(cell)+2))
		}
	}
	_, err := fmt.Fprintln(r.writer, sb.String())
	return err
}

func (r *Renderer) renderTableSeparator(widths []int) error {
	parts := make([]string, len(widths))
	for i, width := range widths {
		parts[i] = strings.Repeat("-", width)
	}
	_, err := fmt.Fprintln(r.writer, r.styles.muted.Render(strings.Join(parts, "  ")))
	return err
}
