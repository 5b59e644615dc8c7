package schema

import (
	"fmt"
	"strings"
)

// XML renders the context for the planning prompt.
//
//	<schema database="shop" introspected_at="...">
//	  <table name="orders" rows="~1200" description="...">
//	    <column name="amount" type="DOUBLE" role="measure_candidate" suggested_agg="sum"/>
//	  </table>
//	  <augmented_docs>...</augmented_docs>
//	</schema>
//
// Role-specific hints are only emitted where they help: distinct counts and
// sample values for categorical columns, ranges for time dimensions.
func XML(c *Context) string {
	if c == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<schema database="%s" introspected_at="%s">`, escape(c.Database), escape(c.IntrospectedAt))
	b.WriteByte('\n')

	for _, t := range c.Tables {
		fmt.Fprintf(&b, `  <table name="%s" rows="~%d"`, escape(t.Name), t.RowCount)
		if t.Description != "" {
			fmt.Fprintf(&b, ` description="%s"`, escape(t.Description))
		}
		b.WriteString(">\n")
		for _, col := range t.Columns {
			b.WriteString("    ")
			writeColumn(&b, col)
			b.WriteByte('\n')
		}
		b.WriteString("  </table>\n")
	}

	if c.AugmentedDocs != "" {
		b.WriteString("  <augmented_docs>\n    ")
		b.WriteString(escape(c.AugmentedDocs))
		b.WriteString("\n  </augmented_docs>\n")
	}

	b.WriteString("</schema>")
	return b.String()
}

func writeColumn(b *strings.Builder, col Column) {
	attr := func(name, value string) {
		fmt.Fprintf(b, ` %s="%s"`, name, escape(value))
	}

	b.WriteString("<column")
	attr("name", col.Name)
	attr("type", col.Type)
	if col.Role != "" && col.Role != RoleOther {
		attr("role", string(col.Role))
	}
	if col.PrimaryKey {
		attr("pk", "true")
	}
	if col.ForeignKey != "" {
		attr("fk", col.ForeignKey)
	}
	if col.Role == RoleCategorical {
		if col.DistinctCount != nil {
			attr("distinct_count", fmt.Sprint(*col.DistinctCount))
		}
		if len(col.Samples) > 0 {
			attr("values", "["+strings.Join(col.Samples, ", ")+"]")
		}
	}
	if col.Role == RoleTimeDimension && col.Min != "" && col.Max != "" {
		attr("range", col.Min+" to "+col.Max)
	}
	if col.SuggestedAgg != "" {
		attr("suggested_agg", col.SuggestedAgg)
	}
	if col.Description != "" {
		attr("description", col.Description)
	}
	b.WriteString("/>")
}

// xmlEscaper keeps newlines intact, unlike xml.EscapeText.
var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escape(s string) string {
	return xmlEscaper.Replace(s)
}
