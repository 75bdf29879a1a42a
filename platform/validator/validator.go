// Package validator wraps go-playground/validator for request payload
// validation. Handlers validate transport structs by their `validate`
// tags before any service call.
package validator

import "github.com/go-playground/validator/v10"

// Validator validates structs against their field tags. A single
// instance is created at startup and injected into handlers.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the standard tag set.
func New() *Validator {
	return &Validator{
		v: validator.New(),
	}
}

// Struct validates a struct based on its validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// RegisterValidation registers a custom validation function under the
// given tag.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}
