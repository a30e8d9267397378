package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/leebs0521/wayline-core/internal/types"
)

// Validator validates configuration values.
type Validator interface {
	Validate(cfg *Config) error
}

// validatorImpl implements Validator using go-playground/validator.
type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a Validator instance.
func NewValidator() Validator {
	return &validatorImpl{validate: validator.New()}
}

// Validate checks struct tags plus the cross-field rules the tags
// cannot express.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return types.NewError(types.CONFIG_VALIDATION_FAILED, "configuration is nil")
	}

	if err := v.validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return types.WrapError(types.CONFIG_VALIDATION_FAILED, "validating config", err)
		}
		var msgs []string
		for _, fe := range validationErrs {
			msgs = append(msgs, fmt.Sprintf("%s: failed %q constraint",
				strings.ToLower(fe.Namespace()), fe.Tag()))
		}
		return types.NewError(types.CONFIG_VALIDATION_FAILED, strings.Join(msgs, "; "))
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"tracing.endpoint is required when tracing is enabled")
	}
	if cfg.Metrics.Enabled && cfg.Metrics.Listen == "" {
		return types.NewError(types.CONFIG_VALIDATION_FAILED,
			"metrics.listen is required when metrics are enabled")
	}
	return nil
}
