package validator

import (
	"fmt"

	playground "github.com/go-playground/validator/v10"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
}

type validator struct {
	v *playground.Validate
}

func New() Validator {
	return &validator{
		v: playground.New(playground.WithRequiredStructEnabled()),
	}
}

func (v *validator) Validate(obj interface{}) error {
	if err := v.v.Struct(obj); err != nil {
		if errs, ok := err.(playground.ValidationErrors); ok && len(errs) > 0 {
			first := errs[0]
			return fmt.Errorf("%s failed validation on %s", first.Field(), first.Tag())
		}
		return err
	}
	return nil
}
