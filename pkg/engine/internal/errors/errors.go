package errors

import "errors"

// Schema errors.
var (
	ErrFieldNotFound  = errors.New("field not found")
	ErrDuplicateField = errors.New("duplicate field")
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// Planning errors. They are always returned before a query starts executing.
var (
	ErrUnsupportedPlan  = errors.New("unsupported plan node")
	ErrUnsupportedExpr  = errors.New("unsupported expression")
	ErrUnresolvedColumn = errors.New("unresolved column")
)

// Evaluation errors. They abort the query that produced them.
var (
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrType           = errors.New("type error")
	ErrDivisionByZero = errors.New("division by zero")
	ErrInvariant      = errors.New("invariant violation")
)
