package services

import (
	apperrors "staats/internal/errors"
)

// Service errors
var (
	ErrNoData = apperrors.NewAppValidationError("no data rows to tabulate")
)
