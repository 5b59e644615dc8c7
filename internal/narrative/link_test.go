package narrative

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/lumen/pkg/core"
)

func TestLink(t *testing.T) {
	tests := []struct {
		name string
		text string
		refs []DataReference
		want []Segment
	}{
		{
			name: "no references",
			text: "Revenue grew steadily.",
			want: []Segment{{Text: "Revenue grew steadily."}},
		},
		{
			name: "single reference",
			text: "Acme Corp leads with $12,400 in revenue.",
			refs: []DataReference{{RefID: "r1", Text: "$12,400", Source: "row 1, revenue"}},
			want: []Segment{
				{Text: "Acme Corp leads with "},
				{Text: "$12,400", RefID: "r1", Source: "row 1, revenue"},
				{Text: " in revenue."},
			},
		},
		{
			name: "ordered by occurrence not by supply",
			text: "Acme has 40 orders, Globex has 12.",
			refs: []DataReference{
				{RefID: "b", Text: "Globex", Source: "row 2"},
				{RefID: "a", Text: "Acme", Source: "row 1"},
			},
			want: []Segment{
				{Text: "Acme", RefID: "a", Source: "row 1"},
				{Text: " has 40 orders, "},
				{Text: "Globex", RefID: "b", Source: "row 2"},
				{Text: " has 12."},
			},
		},
		{
			name: "repeated phrase claims successive occurrences",
			text: "12 in March and 12 in April",
			refs: []DataReference{
				{RefID: "m", Text: "12", Source: "march"},
				{RefID: "a", Text: "12", Source: "april"},
			},
			want: []Segment{
				{Text: "12", RefID: "m", Source: "march"},
				{Text: " in March and "},
				{Text: "12", RefID: "a", Source: "april"},
				{Text: " in April"},
			},
		},
		{
			name: "overlap with consumed text is dropped",
			text: "Total revenue was 500.",
			refs: []DataReference{
				{RefID: "x", Text: "revenue was 500", Source: "sum"},
				{RefID: "y", Text: "was", Source: "dup"},
			},
			want: []Segment{
				{Text: "Total "},
				{Text: "revenue was 500", RefID: "x", Source: "sum"},
				{Text: "."},
			},
		},
		{
			name: "absent reference dropped",
			text: "Sales fell.",
			refs: []DataReference{{RefID: "z", Text: "42%", Source: "row 3"}},
			want: []Segment{{Text: "Sales fell."}},
		},
		{
			name: "reference covers whole text",
			text: "42",
			refs: []DataReference{{RefID: "k", Text: "42", Source: "kpi"}},
			want: []Segment{{Text: "42", RefID: "k", Source: "kpi"}},
		},
		{
			name: "empty text",
			text: "",
			refs: []DataReference{{RefID: "k", Text: "42"}},
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Link(tt.text, tt.refs)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.text, Text(got))
		})
	}
}

func TestLink_NeverClaimsAbsentText(t *testing.T) {
	text := "Acme Corp is the top customer with 12,400 in revenue."
	refs := []DataReference{
		{RefID: "1", Text: "Acme Corp"},
		{RefID: "2", Text: "Initech"},
		{RefID: "3", Text: ""},
		{RefID: "4", Text: "12,400"},
		{RefID: "5", Text: "revenue."},
		{RefID: "6", Text: "revenue"},
	}

	segments := Link(text, refs)
	require.Equal(t, text, Text(segments))

	for _, s := range segments {
		if s.RefID == "" {
			continue
		}
		assert.True(t, strings.Contains(text, s.Text), "segment %q", s.Text)
		assert.NotEqual(t, "2", s.RefID)
		assert.NotEqual(t, "3", s.RefID)
	}
}

func TestLinkWithDiagnostics(t *testing.T) {
	segments, diags := LinkWithDiagnostics("Acme leads.", []DataReference{
		{RefID: "a", Text: "Acme"},
		{RefID: "b", Text: "Globex"},
	})

	assert.Len(t, segments, 2)
	require.Len(t, diags, 1)
	assert.Equal(t, core.CodeNarrativeRefUnmatched, diags[0].Code)
	assert.Equal(t, core.SeverityInfo, diags[0].Severity)
	assert.Contains(t, diags[0].Message, `"b"`)
}
