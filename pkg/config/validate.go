package config

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validatorInst *validator.Validate
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validatorInst = validator.New(validator.WithRequiredStructEnabled())
	})
	return validatorInst
}

// Validate checks cfg against its struct tags (required fields, positive
// durations, max-before-min relationships) and returns a combined error
// describing every violation found.
func Validate(cfg *Config) error {
	if err := getValidator().Struct(cfg); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		return fmt.Errorf("config: %d validation error(s): %w", len(verrs), verrs)
	}
	return nil
}
