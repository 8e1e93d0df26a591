package sdk

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/reglet-dev/reglet-bridge/domain/entities"
)

// validate is a package-level singleton; validator caches struct metadata.
var validate = validator.New()

// ValidateParams decodes the parameters of req into target and runs the
// `validate` struct tags over it.
func ValidateParams(req entities.InvocationRequest, target any) error {
	if err := req.DecodeParams(target); err != nil {
		return fmt.Errorf("failed to decode params of %q: %w", req.Action, err)
	}
	if err := validate.Struct(target); err != nil {
		return fmt.Errorf("params validation failed: %w", err)
	}
	return nil
}

// Bind is ValidateParams returning the decoded value.
func Bind[T any](req entities.InvocationRequest) (T, error) {
	var v T
	err := ValidateParams(req, &v)
	return v, err
}
