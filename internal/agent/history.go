package agent

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/lumen/internal/cell"
)

// DefaultHistoryTurns is the number of prior cells shown to the planner.
const DefaultHistoryTurns = 5

var xmlText = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// ConversationContext summarizes the last maxTurns cells as a
// <conversation_so_far> block. Result rows are left out; only the row
// count is kept. It returns "" when there are no cells.
func ConversationContext(cells []*cell.Cell, maxTurns int) string {
	if len(cells) == 0 || maxTurns == 0 {
		return ""
	}
	if maxTurns > 0 && len(cells) > maxTurns {
		cells = cells[len(cells)-maxTurns:]
	}

	var b strings.Builder
	b.WriteString("<conversation_so_far>\n")
	for i, c := range cells {
		fmt.Fprintf(&b, "<turn number=\"%d\">\n", i+1)
		fmt.Fprintf(&b, "  <question>%s</question>\n", xmlText.Replace(c.Question))
		if sql := c.EffectiveSQL(); sql != "" {
			fmt.Fprintf(&b, "  <sql>%s</sql>\n", xmlText.Replace(sql))
		}
		if c.Result != nil {
			fmt.Fprintf(&b, "  <row_count>%d</row_count>\n", c.Result.RowCount)
		}
		if c.Narrative != nil && c.Narrative.Text != "" {
			fmt.Fprintf(&b, "  <insight>%s</insight>\n", xmlText.Replace(c.Narrative.Text))
		}
		b.WriteString("</turn>\n")
	}
	b.WriteString("</conversation_so_far>")
	return b.String()
}

// RefinementContext renders the parent of a refinement as a <parent_cell>
// block including its result columns.
func RefinementContext(parent *cell.Cell) string {
	var b strings.Builder
	b.WriteString("<parent_cell>\n")
	fmt.Fprintf(&b, "  <question>%s</question>\n", xmlText.Replace(parent.Question))
	if sql := parent.EffectiveSQL(); sql != "" {
		fmt.Fprintf(&b, "  <sql>%s</sql>\n", xmlText.Replace(sql))
	}
	if parent.Result != nil {
		fmt.Fprintf(&b, "  <columns>%s</columns>\n", xmlText.Replace(strings.Join(parent.Result.Columns, ", ")))
		fmt.Fprintf(&b, "  <row_count>%d</row_count>\n", parent.Result.RowCount)
	}
	if parent.Narrative != nil && parent.Narrative.Text != "" {
		fmt.Fprintf(&b, "  <insight>%s</insight>\n", xmlText.Replace(parent.Narrative.Text))
	}
	b.WriteString("</parent_cell>")
	return b.String()
}
