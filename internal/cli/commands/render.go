package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/leapstack-labs/lumen/internal/cell"
	"github.com/leapstack-labs/lumen/internal/state"
	"github.com/leapstack-labs/lumen/pkg/core"
)

// maxDisplayRows bounds the rows printed for a result table.
const maxDisplayRows = 25

// Renderer writes command output as styled text or JSON.
type Renderer struct {
	Out    io.Writer
	ErrOut io.Writer
	JSON   bool
	TTY    bool
	Styles Styles
}

// NewRenderer creates a renderer. format is auto, text or json; auto means
// text with colors only on a terminal.
func NewRenderer(out, errOut io.Writer, format string) *Renderer {
	tty := format != "text" && isTerminal(out)
	return NewRendererWithTTY(out, errOut, tty, format)
}

// NewRendererWithTTY creates a renderer with an explicit TTY state.
func NewRendererWithTTY(out, errOut io.Writer, tty bool, format string) *Renderer {
	return &Renderer{
		Out:    out,
		ErrOut: errOut,
		JSON:   format == "json",
		TTY:    tty,
		Styles: NewStyles(out, tty),
	}
}

// Encode writes v as indented JSON.
func (r *Renderer) Encode(v any) error {
	enc := json.NewEncoder(r.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Println writes one line.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.Out, a...)
}

// Printf writes formatted text.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.Out, format, a...)
}

// Diagnostics writes one line per diagnostic to the error stream.
func (r *Renderer) Diagnostics(diags []core.Diagnostic) {
	for _, d := range diags {
		label := r.Styles.Severity(d.Severity).Render(fmt.Sprintf("%-7s", d.Severity))
		_, _ = fmt.Fprintf(r.ErrOut, "%s [%s] %s\n", label, d.Code, d.Message)
		if d.Hint != "" {
			_, _ = fmt.Fprintf(r.ErrOut, "        %s\n", r.Styles.Muted.Render("hint: "+d.Hint))
		}
	}
}

// Cell renders a finished cell.
func (r *Renderer) Cell(c *cell.Cell) error {
	if r.JSON {
		return r.Encode(c)
	}

	title := c.Title
	if title == "" {
		title = c.Question
	}
	r.Println(r.Styles.Title.Render(title))
	if c.Context.ParentCellID != "" {
		r.Println(r.Styles.Muted.Render("refines " + c.Context.ParentCellID))
	}
	r.Println()

	if sql := c.EffectiveSQL(); sql != "" {
		r.Println(r.Styles.SQL.Render(sql))
		r.Println()
	}

	if c.Result != nil {
		r.Result(c.Result)
		r.Println()
	}

	if mark := c.Mark(); mark != "" {
		chart := "chart: " + mark
		if c.Chart.AutoDetected {
			chart += " (auto-detected)"
		}
		r.Println(r.Styles.Muted.Render(chart))
	}

	if c.Narrative != nil && c.Narrative.Text != "" {
		r.Println()
		r.Println(r.narrative(c.Narrative))
	}

	if w := c.Metadata.WhatIf; w != nil {
		r.Println()
		r.Println(r.Styles.Warning.Render("Projection (" + w.Technique + ")"))
		for _, caveat := range w.Caveats {
			r.Println("  - " + caveat)
		}
	}

	r.Println()
	footer := []string{c.ID}
	if c.Metadata.Model != "" {
		footer = append(footer, c.Metadata.Model)
	}
	if c.Metadata.RetryCount > 0 {
		footer = append(footer, fmt.Sprintf("%d retries", c.Metadata.RetryCount))
	}
	if c.Result != nil {
		footer = append(footer, fmt.Sprintf("%dms", c.Result.ExecutionTimeMS))
	}
	r.Println(r.Styles.Muted.Render(strings.Join(footer, " · ")))

	r.Diagnostics(c.Metadata.Diagnostics)
	return nil
}

func (r *Renderer) narrative(n *cell.Narrative) string {
	if len(n.Segments) == 0 {
		return n.Text
	}
	var b strings.Builder
	for _, seg := range n.Segments {
		if seg.RefID != "" {
			b.WriteString(r.Styles.Ref.Render(seg.Text))
			continue
		}
		b.WriteString(seg.Text)
	}
	return b.String()
}

// Result renders a result table with at most maxDisplayRows rows.
func (r *Renderer) Result(res *cell.Result) {
	if len(res.Rows) == 0 {
		r.Println("(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.Out)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for i, row := range res.Rows {
		if i == maxDisplayRows {
			break
		}
		out := make(table.Row, len(res.Columns))
		for j, col := range res.Columns {
			out[j] = formatValue(row[col])
		}
		t.AppendRow(out)
	}
	t.Render()

	summary := fmt.Sprintf("(%d rows", res.RowCount)
	if hidden := len(res.Rows) - maxDisplayRows; hidden > 0 {
		summary += fmt.Sprintf(", %d not shown", hidden)
	}
	if res.Truncated {
		summary += ", truncated"
	}
	r.Println(summary + ")")
}

// Conversations renders the conversation list.
func (r *Renderer) Conversations(convs []state.Conversation) error {
	if r.JSON {
		return r.Encode(convs)
	}
	if len(convs) == 0 {
		r.Println("No conversations yet.")
		return nil
	}
	t := table.NewWriter()
	t.SetOutputMirror(r.Out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Conversation", "Title", "Cells", "Updated"})
	for _, c := range convs {
		t.AppendRow(table.Row{c.ID, c.Title, c.CellCount, c.UpdatedAt})
	}
	t.Render()
	return nil
}

// Cells renders the cells of one conversation.
func (r *Renderer) Cells(cells []*cell.Cell) error {
	if r.JSON {
		return r.Encode(cells)
	}
	t := table.NewWriter()
	t.SetOutputMirror(r.Out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Cell", "Title", "Chart", "Rows"})
	for _, c := range cells {
		rows := ""
		if c.Result != nil {
			rows = fmt.Sprint(c.Result.RowCount)
		}
		t.AppendRow(table.Row{c.Context.Position, c.ID, c.Title, c.Mark(), rows})
	}
	t.Render()
	return nil
}

// Suggestions renders a numbered question list.
func (r *Renderer) Suggestions(questions []string) error {
	if r.JSON {
		return r.Encode(questions)
	}
	for i, q := range questions {
		r.Printf("%2d. %s\n", i+1, q)
	}
	return nil
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprintf("%v", v)
}
