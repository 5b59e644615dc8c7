// Package core defines the shared result vocabulary of lumen.
//
// This package contains:
//   - Severity levels for diagnostics
//   - Diagnostic, the structured failure/degradation record
//   - Result[T], the uniform return shape of every fallible pipeline step
//   - The catalog of diagnostic codes
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
