// Package narrative ties generated prose back to the data that supports it.
//
// A narration proposal names each claim by its literal text rather than by
// character offsets. Link locates those substrings and splits the narrative
// into plain and referenced segments; the segments always concatenate back to
// the original text.
package narrative

import (
	"sort"
	"strings"

	"github.com/leapstack-labs/lumen/pkg/core"
)

// DataReference maps a literal substring of the narrative to its source.
type DataReference struct {
	RefID  string `json:"ref_id"`
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Segment is a contiguous run of narrative text. RefID and Source are empty
// for plain text.
type Segment struct {
	Text   string `json:"text"`
	RefID  string `json:"ref_id,omitempty"`
	Source string `json:"source,omitempty"`
}

// Link splits text into segments. References are processed in order of first
// occurrence of their text; each one claims the first occurrence that lies in
// not-yet-consumed text. References that cannot be placed are dropped.
func Link(text string, refs []DataReference) []Segment {
	segments, _ := link(text, refs)
	return segments
}

// LinkWithDiagnostics is Link plus one NARRATIVE_REF_UNMATCHED info
// diagnostic per dropped reference.
func LinkWithDiagnostics(text string, refs []DataReference) ([]Segment, []core.Diagnostic) {
	segments, dropped := link(text, refs)

	var diags []core.Diagnostic
	for _, ref := range dropped {
		diags = append(diags, core.Infof(core.CodeNarrativeRefUnmatched,
			"data reference %q not found in narrative: %q", ref.RefID, ref.Text))
	}
	return segments, diags
}

type placed struct {
	ref   DataReference
	first int
	order int
}

func link(text string, refs []DataReference) ([]Segment, []DataReference) {
	var (
		candidates []placed
		dropped    []DataReference
	)
	for i, ref := range refs {
		idx := -1
		if ref.Text != "" {
			idx = strings.Index(text, ref.Text)
		}
		if idx < 0 {
			dropped = append(dropped, ref)
			continue
		}
		candidates = append(candidates, placed{ref: ref, first: idx, order: i})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].first != candidates[j].first {
			return candidates[i].first < candidates[j].first
		}
		return candidates[i].order < candidates[j].order
	})

	var segments []Segment
	cursor := 0
	for _, c := range candidates {
		idx := strings.Index(text[cursor:], c.ref.Text)
		if idx < 0 {
			dropped = append(dropped, c.ref)
			continue
		}
		start := cursor + idx
		if start > cursor {
			segments = append(segments, Segment{Text: text[cursor:start]})
		}
		end := start + len(c.ref.Text)
		segments = append(segments, Segment{
			Text:   text[start:end],
			RefID:  c.ref.RefID,
			Source: c.ref.Source,
		})
		cursor = end
	}
	if cursor < len(text) {
		segments = append(segments, Segment{Text: text[cursor:]})
	}

	return segments, dropped
}

// Text concatenates segment texts.
func Text(segments []Segment) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteString(s.Text)
	}
	return b.String()
}
