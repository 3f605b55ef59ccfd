package provider

import "fmt"

// The synchronizers flatten every provider error into a single
// user-facing string, but the distinct types keep test assertions and
// logs honest about what actually went wrong. Plain network errors
// (connection refused, DNS, context deadline) pass through wrapped.

// StatusError reports a non-2xx upstream response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Code)
}

// SchemaError reports a response that parsed but lacks required fields.
type SchemaError struct {
	Missing string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("response missing required field %q", e.Missing)
}

// ValidationError reports fields that are present but semantically invalid.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid response: " + e.Reason
}
