package service

import (
	"github.com/medflow/pharmacy-backend/pkg/errors"
	"github.com/medflow/pharmacy-backend/pkg/httputil"
)

// collectValidation runs the struct tag rules and returns their details, or a
// non-validation error if the input could not be checked at all
func collectValidation(v interface{}) (map[string]string, error) {
	details := make(map[string]string)
	err := httputil.Validate(v)
	if err == nil {
		return details, nil
	}

	var appErr *errors.AppError
	if !errors.As(err, &appErr) || appErr.Details == nil {
		return nil, err
	}
	for k, msg := range appErr.Details {
		details[k] = msg
	}
	return details, nil
}

// validationError reports details. A lone problem becomes the message too.
func validationError(details map[string]string) error {
	if len(details) == 0 {
		return nil
	}
	if len(details) == 1 {
		for _, msg := range details {
			return errors.ValidationMessage(msg, details)
		}
	}
	return errors.Validation(details)
}

const quantityTooLarge = "quantity must not exceed 2147483647"
