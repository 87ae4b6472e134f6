package domain

import "fmt"

// SchemaError reports a mandatory join-key field that could not be resolved
// while building one of the fiscal input sets. It is a setup error, not a
// data-quality error: an unresolved tax id or document number would corrupt
// every downstream partition, so the engine refuses to run instead of
// defaulting the field.
type SchemaError struct {
	Source FiscalSource // which input set is missing the field
	Field  string       // canonical field name, e.g. "tax_id"
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("fiscal schema: mandatory field %q not resolved in %s set", e.Field, e.Source)
}

// CancelledError is returned when a caller-requested cancellation was observed
// at a phase boundary. No partial result accompanies it.
type CancelledError struct {
	Phase string // phase that was about to start
	Cause error  // the underlying context error
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("reconciliation cancelled before %s phase: %v", e.Phase, e.Cause)
}

func (e *CancelledError) Unwrap() error { return e.Cause }
