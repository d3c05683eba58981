package repository

import (
	"errors"
	"fmt"

	"precipitation-platform/internal/models"
	"precipitation-platform/pkg/database"
)

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// ConflictError represents a uniqueness violation
type ConflictError struct {
	Resource string
	Message  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s conflict: %s", e.Resource, e.Message)
}

func (e *ConflictError) IsTransient() bool {
	return false
}

// StorageError wraps a failed statement or transaction. The transaction it
// belonged to has been rolled back.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) IsTransient() bool {
	return database.IsTransient(e.Err)
}

func notFound(resource string, id int64) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}

// IsDomainError reports whether err already carries a caller-facing kind
func IsDomainError(err error) bool {
	var (
		notFoundErr   *NotFoundError
		conflictErr   *ConflictError
		storageErr    *StorageError
		validationErr *models.ValidationError
		discErr       *models.DiscriminatorError
	)
	return errors.As(err, &notFoundErr) ||
		errors.As(err, &conflictErr) ||
		errors.As(err, &storageErr) ||
		errors.As(err, &validationErr) ||
		errors.As(err, &discErr)
}

// constraintResources maps named constraints of the schema to the resource
// a violation refers to
var constraintResources = map[string]string{
	"zones_locality_key":                 "zone",
	"precipitations_type_key":            "precipitation",
	"united_measures_abbreviation_key":   "united_measure",
	"sites_coordinates_key":              "site",
	"sites_zone_fk":                      "zone",
	"sites_precipitation_fk":             "precipitation",
	"instruments_united_measure_fk":      "united_measure",
	"instruments_precipitation_fk":       "precipitation",
	"reports_instrument_fk":              "instrument",
	"reports_precipitation_fk":           "precipitation",
	"reports_site_fk":                    "site",
	"report_regulars_report_id_key":      "report_regular",
	"report_regulars_sample_id_key":      "sample",
	"report_regulars_report_fk":          "report",
	"report_regulars_united_measure_fk":  "united_measure",
	"report_regulars_sample_fk":          "sample",
	"breakage_instruments_report_id_key": "breakage_instrument",
	"breakage_instruments_report_fk":     "report",
}

// translate converts a store error into the caller-facing taxonomy
func translate(op, resource string, err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}

	constraint := database.ConstraintName(err)
	if r, ok := constraintResources[constraint]; ok {
		resource = r
	}

	switch {
	case database.IsUniqueViolation(err):
		return &ConflictError{Resource: resource, Message: fmt.Sprintf("%s already exists", resource)}
	case database.IsForeignKeyViolation(err):
		return &NotFoundError{Resource: resource}
	case database.IsCheckViolation(err):
		return &models.ValidationError{Field: constraint, Message: "value violates " + constraint}
	}
	return &StorageError{Op: op, Err: err}
}
