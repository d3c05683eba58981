package database

import (
	"errors"

	"github.com/lib/pq"
)

// SQLSTATE codes the repositories react to
const (
	codeUniqueViolation      = pq.ErrorCode("23505")
	codeForeignKeyViolation  = pq.ErrorCode("23503")
	codeCheckViolation       = pq.ErrorCode("23514")
	codeSerializationFailure = pq.ErrorCode("40001")
	codeDeadlockDetected     = pq.ErrorCode("40P01")
)

func pqError(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr, true
	}
	return nil, false
}

func IsUniqueViolation(err error) bool {
	e, ok := pqError(err)
	return ok && e.Code == codeUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	e, ok := pqError(err)
	return ok && e.Code == codeForeignKeyViolation
}

func IsCheckViolation(err error) bool {
	e, ok := pqError(err)
	return ok && e.Code == codeCheckViolation
}

// ConstraintName returns the violated constraint, or "" for non-constraint errors
func ConstraintName(err error) string {
	if e, ok := pqError(err); ok {
		return e.Constraint
	}
	return ""
}

// IsTransient reports whether retrying the whole transaction may succeed:
// serialization failures, deadlocks, and connection-class (08xxx) errors.
func IsTransient(err error) bool {
	e, ok := pqError(err)
	if !ok {
		return false
	}
	switch e.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return e.Code.Class() == "08"
}
