package core

import "fmt"

// =============================================================================
// Diagnostic codes
// =============================================================================

// Diagnostic codes emitted by the pipeline.
const (
	CodeSQLParseError         = "SQL_PARSE_ERROR"
	CodeValidationError       = "VALIDATION_ERROR"
	CodeSQLError              = "SQL_ERROR"
	CodeSQLTimeout            = "SQL_TIMEOUT"
	CodeEmptyResult           = "EMPTY_RESULT"
	CodeResultTruncated       = "RESULT_TRUNCATED"
	CodeVizFallback           = "VIZ_FALLBACK"
	CodeVizFieldMismatch      = "VIZ_FIELD_MISMATCH"
	CodeVizMarkUnrecognized   = "VIZ_MARK_UNRECOGNIZED"
	CodeSchemaStale           = "SCHEMA_STALE"
	CodeLLMError              = "LLM_ERROR"
	CodeNarrativeRefUnmatched = "NARRATIVE_REF_UNMATCHED"
	CodeTrendInvalidInterval  = "TREND_INVALID_INTERVAL"
	CodeTrendInvalidPeriods   = "TREND_INVALID_PERIODS"
	CodeTrendFailed           = "TREND_FAILED"
	CodeConfigError           = "CONFIG_ERROR"
	CodeInFlight              = "IN_FLIGHT"
	CodeStoreError            = "STORE_ERROR"
)

// =============================================================================
// Diagnostic
// =============================================================================

// Diagnostic is a structured record of a failure or degradation.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Hint     string   `json:"hint,omitempty"`
}

// String formats the diagnostic for terminals and logs.
func (d Diagnostic) String() string {
	if d.Hint == "" {
		return fmt.Sprintf("%s [%s] %s", d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s [%s] %s (hint: %s)", d.Severity, d.Code, d.Message, d.Hint)
}

// Errorf builds an error-severity diagnostic.
func Errorf(code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning-severity diagnostic.
func Warnf(code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Infof builds an info-severity diagnostic.
func Infof(code, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityInfo, Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithHint returns a copy of d carrying hint.
func (d Diagnostic) WithHint(hint string) Diagnostic {
	d.Hint = hint
	return d
}

// =============================================================================
// Result
// =============================================================================

// Result is the return shape of every fallible pipeline step.
// When any diagnostic has error severity, Value must not be trusted.
type Result[T any] struct {
	Value       T
	Diagnostics []Diagnostic
}

// OK reports whether no diagnostic has error severity.
func (r Result[T]) OK() bool {
	return !HasErrors(r.Diagnostics)
}

// FirstError returns the first error-severity diagnostic.
func (r Result[T]) FirstError() (Diagnostic, bool) {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return d, true
		}
	}
	return Diagnostic{}, false
}

// Ok wraps a value with optional non-error diagnostics.
func Ok[T any](v T, diags ...Diagnostic) Result[T] {
	return Result[T]{Value: v, Diagnostics: diags}
}

// Fail builds a result with a zero value and the given diagnostics.
func Fail[T any](diags ...Diagnostic) Result[T] {
	var zero T
	return Result[T]{Value: zero, Diagnostics: diags}
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}
