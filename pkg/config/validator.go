package config

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// dbURLPattern accepts the connection-string schemes the store package
// understands, including SQLAlchemy-style "+driver" suffixes.
var dbURLPattern = regexp.MustCompile(`^(sqlite|postgres|postgresql)(\+[a-z0-9]+)?://`)

// RegisterCustomValidators registers custom validation functions
func RegisterCustomValidators(v *validator.Validate) error {
	return v.RegisterValidation("db_url", validateDBURL)
}

func validateDBURL(fl validator.FieldLevel) bool {
	return dbURLPattern.MatchString(fl.Field().String())
}
