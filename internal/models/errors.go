package models

import (
	"fmt"
	"strings"
)

// ValidationError represents a missing or malformed input field
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// DiscriminatorError is returned when a report type is neither regular nor rotura
type DiscriminatorError struct {
	Value string
}

func (e *DiscriminatorError) Error() string {
	return fmt.Sprintf("invalid report type %q: expected %q or %q", e.Value, ReportTypeRegular, ReportTypeBreakage)
}

func (e *DiscriminatorError) IsTransient() bool {
	return false
}

// ParameterError is an invalid or missing query parameter of a read operation
type ParameterError struct {
	Parameter string
	Value     string
	Message   string
}

func (e *ParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Parameter, e.Message)
}

func (e *ParameterError) IsTransient() bool {
	return false
}

// MixedUnitsError is returned when an aggregation would add amounts recorded
// in different units of measure
type MixedUnitsError struct {
	Kind    string
	UnitIDs []int64
}

func (e *MixedUnitsError) Error() string {
	ids := make([]string, len(e.UnitIDs))
	for i, id := range e.UnitIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("measurements of %q use more than one unit of measure (units %s)", e.Kind, strings.Join(ids, ", "))
}

func (e *MixedUnitsError) IsTransient() bool {
	return false
}
