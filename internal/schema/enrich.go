package schema

import (
	"regexp"
	"strings"
)

const (
	highCardinalityRatio    = 0.9
	lowCardinalityThreshold = 200
)

var dimensionSuffix = regexp.MustCompile(`(?i)(_type|_status|_code|_name|_category|_class|_group|_level|_band|_zone|_region|_country` +
	`|_descr|_acronym|_text|_label|_lang|_nl|_fr|_de|_en|is_|has_)$`)

// Aggregation hints, checked in order.
var measurePatterns = []struct {
	re  *regexp.Regexp
	agg string
}{
	{regexp.MustCompile(`(?i)(amount|revenue|price|cost|total|fee|salary|capital)`), "sum"},
	{regexp.MustCompile(`(?i)(qty|quantity|count|num_|number_of)`), "sum"},
	{regexp.MustCompile(`(?i)(score|rating|rank|percentage|pct|ratio|rate)`), "avg"},
	{regexp.MustCompile(`(?i)(weight|duration|distance|size|length|height|width)`), "avg"},
}

// Enrich returns a copy of c with a role assigned to every column and an
// aggregation suggested for every measure candidate. Roles depend only on
// the introspected metadata, so enriching the same input twice yields the
// same output.
func Enrich(c *Context) *Context {
	if c == nil {
		return nil
	}
	out := c.clone()
	for i := range out.Tables {
		t := &out.Tables[i]
		for j := range t.Columns {
			col := &t.Columns[j]
			col.Role = ClassifyRole(*col, t.RowCount)
			col.SuggestedAgg = ""
			if col.Role == RoleMeasureCandidate {
				col.SuggestedAgg = SuggestAggregation(col.Name)
			}
		}
	}
	return out
}

// ClassifyRole infers the role of col in a table of rowCount rows.
func ClassifyRole(col Column, rowCount int64) Role {
	if col.PrimaryKey || col.ForeignKey != "" || likelyKey(col, rowCount) {
		return RoleKey
	}

	switch {
	case IsTemporalType(col.Type):
		return RoleTimeDimension

	case IsBooleanType(col.Type):
		return RoleCategorical

	case IsStringType(col.Type):
		if dimensionSuffix.MatchString(col.Name) {
			return RoleCategorical
		}
		if col.DistinctCount != nil {
			if *col.DistinctCount <= lowCardinalityThreshold {
				return RoleCategorical
			}
			if rowCount > 0 && float64(*col.DistinctCount)/float64(rowCount) < highCardinalityRatio {
				return RoleCategorical
			}
		}
		return RoleOther

	case IsNumericType(col.Type):
		if strings.HasSuffix(col.Name, "_id") {
			return RoleKey
		}
		return RoleMeasureCandidate
	}
	return RoleOther
}

// likelyKey reports *_id columns that are nearly unique, or whose
// cardinality is unknown.
func likelyKey(col Column, rowCount int64) bool {
	if !strings.HasSuffix(col.Name, "_id") {
		return false
	}
	if col.DistinctCount != nil && rowCount > 0 {
		return float64(*col.DistinctCount)/float64(rowCount) > highCardinalityRatio
	}
	return true
}

// SuggestAggregation picks sum or avg from the column name; sum by default.
func SuggestAggregation(name string) string {
	for _, p := range measurePatterns {
		if p.re.MatchString(name) {
			return p.agg
		}
	}
	return "sum"
}
