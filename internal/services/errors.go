package services

import (
	"errors"

	"precipitation-platform/internal/models"
	"precipitation-platform/internal/repository"
)

// Stable machine-readable error kinds
const (
	KindValidation           = "validation_error"
	KindInvalidDiscriminator = "invalid_discriminator"
	KindInvalidParameter     = "invalid_parameter"
	KindNotFound             = "not_found"
	KindConflict             = "conflict"
	KindMixedUnits           = "mixed_units"
	KindStorage              = "storage_error"
)

// ErrorKind classifies err into one of the stable kinds. Unknown errors are
// reported as storage errors.
func ErrorKind(err error) string {
	var (
		validationErr *models.ValidationError
		discErr       *models.DiscriminatorError
		paramErr      *models.ParameterError
		mixedErr      *models.MixedUnitsError
		notFoundErr   *repository.NotFoundError
		conflictErr   *repository.ConflictError
	)

	switch {
	case errors.As(err, &discErr):
		return KindInvalidDiscriminator
	case errors.As(err, &validationErr):
		return KindValidation
	case errors.As(err, &paramErr):
		return KindInvalidParameter
	case errors.As(err, &mixedErr):
		return KindMixedUnits
	case errors.As(err, &notFoundErr):
		return KindNotFound
	case errors.As(err, &conflictErr):
		return KindConflict
	default:
		return KindStorage
	}
}
