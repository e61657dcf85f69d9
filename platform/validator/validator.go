// Package validator wraps go-playground/validator behind a small injectable
// type. Handlers validate transition payload DTOs against their struct tags
// before anything reaches the workflow engine.
package validator

import "github.com/go-playground/validator/v10"

// Validator checks structs against their validate tags.
type Validator struct {
	v *validator.Validate
}

// New builds a Validator with the default tag set.
func New() *Validator {
	return &Validator{
		v: validator.New(),
	}
}

// Struct validates a struct based on its validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// RegisterValidation adds a custom validation tag.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}
