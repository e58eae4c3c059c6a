package factum

import "fmt"

// ValidationError covers bad value shape, failed keyword/UUID/URI checks,
// cardinality violations, dangling refs, unresolved temp-ids, and
// malformed entity refs. It aborts the whole transaction before any write.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// UniquenessViolationError is raised when asserting a unique attribute
// whose value is already held by a different entity.
type UniquenessViolationError struct {
	Attribute      string
	Value          any
	ExistingEntity int64
}

func (e *UniquenessViolationError) Error() string {
	return fmt.Sprintf("cannot set unique attribute %q to %v, because this value is already assigned to entity %d",
		e.Attribute, e.Value, e.ExistingEntity)
}

// EntityNotFoundError is raised when a lookup ref fails to resolve.
type EntityNotFoundError struct {
	Attribute string
	Value     any
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("no entity found with attribute %q set to %v", e.Attribute, e.Value)
}

// SchemaError is raised when a datom names an attribute with no
// definition (builtin nor user) in the database snapshot being validated.
type SchemaError struct {
	Attribute string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("attribute %q is not defined", e.Attribute)
}

// BackendError wraps an error surfaced by the underlying document-store
// backend (connection, timeout, write rejection). The library never
// retries; this is returned verbatim to the caller.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend error during %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}
