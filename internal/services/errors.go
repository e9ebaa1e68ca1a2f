package services

import "fmt"

// OracleError reports a failed completion call.
type OracleError struct {
	Tier       Tier
	StatusCode int
	Err        error
}

func (e *OracleError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("oracle %s call failed with status %d: %v", e.Tier, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("oracle %s call failed: %v", e.Tier, e.Err)
}

func (e *OracleError) Unwrap() error { return e.Err }

// ExtractError reports oracle text that is not valid JSON after fence stripping.
type ExtractError struct {
	Raw string
	Err error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("failed to extract JSON from oracle response: %v", e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// StructuralFieldError reports a field the pipeline cannot proceed without.
type StructuralFieldError struct {
	Field string
	Index int
	Value string
	Err   error
}

func (e *StructuralFieldError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("anchor event %d: missing %s", e.Index, e.Field)
	}
	return fmt.Sprintf("anchor event %d: invalid %s %q: %v", e.Index, e.Field, e.Value, e.Err)
}

func (e *StructuralFieldError) Unwrap() error { return e.Err }
