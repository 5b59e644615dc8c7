// Package common provides response helpers shared by the UI features.
package common

import (
	"encoding/json"
	"net/http"

	"github.com/leapstack-labs/lumen/pkg/core"
)

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrorBody is the JSON shape of every failed API call.
type ErrorBody struct {
	Error       core.Diagnostic   `json:"error"`
	Diagnostics []core.Diagnostic `json:"diagnostics"`
}

// WriteDiagnostics writes diags as an error response. The status is derived
// from the first error diagnostic.
func WriteDiagnostics(w http.ResponseWriter, diags []core.Diagnostic) {
	first := core.Errorf(core.CodeConfigError, "request failed")
	for _, d := range diags {
		if d.Severity == core.SeverityError {
			first = d
			break
		}
	}
	WriteJSON(w, StatusFor(first.Code), ErrorBody{Error: first, Diagnostics: diags})
}

// WriteError writes a single error diagnostic.
func WriteError(w http.ResponseWriter, d core.Diagnostic) {
	WriteDiagnostics(w, []core.Diagnostic{d})
}

// StatusFor maps a diagnostic code to an HTTP status.
func StatusFor(code string) int {
	switch code {
	case core.CodeValidationError, core.CodeSQLParseError:
		return http.StatusBadRequest
	case core.CodeInFlight:
		return http.StatusConflict
	case core.CodeLLMError:
		return http.StatusBadGateway
	case core.CodeSchemaStale:
		return http.StatusServiceUnavailable
	case core.CodeSQLTimeout:
		return http.StatusGatewayTimeout
	case core.CodeSQLError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorStatus writes a single error diagnostic with an explicit status.
func WriteErrorStatus(w http.ResponseWriter, status int, d core.Diagnostic) {
	WriteJSON(w, status, ErrorBody{Error: d, Diagnostics: []core.Diagnostic{d}})
}

// CellNotFound is the response for an unknown cell id.
func CellNotFound(w http.ResponseWriter, id string) {
	WriteErrorStatus(w, http.StatusNotFound, core.Errorf(core.CodeValidationError, "cell %s not found", id))
}
