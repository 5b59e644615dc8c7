package schema

import (
	"regexp"
	"strings"
)

var typeArgs = regexp.MustCompile(`\(.*\)`)

// NormalizeType lowercases a declared type and strips its arguments,
// so "DECIMAL(18,3)" and "numeric" compare as plain names.
func NormalizeType(t string) string {
	return strings.TrimSpace(strings.ToLower(typeArgs.ReplaceAllString(t, "")))
}

var (
	dateTypes = set("date")

	timestampTypes = set(
		"timestamp", "timestamp without time zone", "timestamp with time zone",
		"timestamptz", "datetime", "timestamp_s", "timestamp_ms", "timestamp_ns",
	)

	numericTypes = set(
		"integer", "int", "int2", "int4", "int8", "bigint", "smallint", "tinyint", "hugeint",
		"ubigint", "uinteger", "usmallint", "utinyint",
		"float", "float4", "float8", "double", "double precision", "real", "decimal", "numeric",
	)

	booleanTypes = set("boolean", "bool")

	stringTypes = set("varchar", "character varying", "text", "char", "bpchar", "string", "character", "nvarchar")
)

func set(names ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		m[n] = struct{}{}
	}
	return m
}

func in(m map[string]struct{}, t string) bool {
	_, ok := m[NormalizeType(t)]
	return ok
}

// IsTemporalType reports date and timestamp types.
func IsTemporalType(t string) bool {
	return in(dateTypes, t) || in(timestampTypes, t)
}

// IsNumericType reports integer, floating point and decimal types.
func IsNumericType(t string) bool {
	return in(numericTypes, t)
}

// IsBooleanType reports boolean types.
func IsBooleanType(t string) bool {
	return in(booleanTypes, t)
}

// IsStringType reports character types.
func IsStringType(t string) bool {
	return in(stringTypes, t) || strings.HasPrefix(NormalizeType(t), "character")
}
