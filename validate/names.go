package validate

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	maxDatabaseNameLen   = 63
	maxCollectionNameLen = 255

	invalidDatabaseNameChars = "/\\. \"$*<>:|?\x00"
)

// IsValidDatabaseName reports whether name is usable as a MongoDB database name.
func IsValidDatabaseName(name string) bool {
	if name == "" || len(name) > maxDatabaseNameLen {
		return false
	}

	return !strings.ContainsAny(name, invalidDatabaseNameChars)
}

// IsValidCollectionName reports whether name is usable as a user collection
// name. The system. prefix is reserved.
func IsValidCollectionName(name string) bool {
	if name == "" || len(name) > maxCollectionNameLen {
		return false
	}

	if strings.ContainsAny(name, "$\x00") {
		return false
	}

	return !strings.HasPrefix(name, "system.")
}

func validateDatabaseName(fl validator.FieldLevel) bool {
	return IsValidDatabaseName(fl.Field().String())
}

func validateCollectionName(fl validator.FieldLevel) bool {
	return IsValidCollectionName(fl.Field().String())
}
