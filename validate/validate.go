// Package validate provides request validation using go-playground/validator.
package validate

import (
	"context"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/percona/percona-collection-migrator/config"
)

var (
	instance *validator.Validate //nolint:gochecknoglobals
	once     sync.Once           //nolint:gochecknoglobals
)

// Validator returns the singleton validator instance.
func Validator() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
		registerCustomValidators(instance)
		registerTagNameFunc(instance)
	})

	return instance
}

func registerCustomValidators(v *validator.Validate) {
	_ = v.RegisterValidation("dbname", validateDatabaseName)
	_ = v.RegisterValidation("collname", validateCollectionName)
	_ = v.RegisterValidationCtx("alloweddb", validateAllowedDatabase)
	_ = v.RegisterValidationCtx("allowedcoll", validateAllowedCollection)
}

// registerTagNameFunc uses JSON tag names in error messages.
func registerTagNameFunc(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}

		return name
	})
}

// Struct validates a struct using the singleton validator.
func Struct(s any) error {
	return TranslateErrors(Validator().Struct(s))
}

type environmentKey struct{}

// Request validates req against its struct tags. The alloweddb and
// allowedcoll tags check the allow-lists of env; they pass when env is nil.
func Request(ctx context.Context, req any, env *config.Environment) error {
	ctx = context.WithValue(ctx, environmentKey{}, env)

	return TranslateErrors(Validator().StructCtx(ctx, req))
}

func environmentFrom(ctx context.Context) *config.Environment {
	env, _ := ctx.Value(environmentKey{}).(*config.Environment)

	return env
}

func validateAllowedDatabase(ctx context.Context, fl validator.FieldLevel) bool {
	env := environmentFrom(ctx)
	if env == nil {
		return true
	}

	return slices.Contains(env.ValidDatabases, fl.Field().String())
}

func validateAllowedCollection(ctx context.Context, fl validator.FieldLevel) bool {
	env := environmentFrom(ctx)
	if env == nil {
		return true
	}

	return slices.Contains(env.ValidCollections, fl.Field().String())
}
