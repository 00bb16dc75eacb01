package auth

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Messages returned to registration clients.
const (
	MsgInvalidEmail    = "Provide valid email address."
	MsgInvalidUsername = "Invalid username. Provide alphanumeric values."
	MsgEmailTaken      = "Email already exists"
	MsgUsernameTaken   = "Username already in use."
	MsgAccountTaken    = "Account already exists"
	fieldErrorType     = "field"
	fieldErrorLocation = "body"
)

// FieldError describes one rejected input field.
type FieldError struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Msg      string `json:"msg"`
	Path     string `json:"path"`
	Location string `json:"location"`
}

func newFieldError(path, value, msg string) FieldError {
	return FieldError{Type: fieldErrorType, Value: value, Msg: msg, Path: path, Location: fieldErrorLocation}
}

// ValidationError carries every problem found with a registration.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Path + ": " + fe.Msg
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) add(fe FieldError) {
	e.Errors = append(e.Errors, fe)
}

func (e *ValidationError) has(path string) bool {
	for _, fe := range e.Errors {
		if fe.Path == path {
			return true
		}
	}
	return false
}

func (e *ValidationError) orNil() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// newValidator reports struct fields under their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return MsgInvalidEmail
	case "alphanum":
		return MsgInvalidUsername
	case "required":
		return fmt.Sprintf("%s is required.", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid.", fe.Field())
	}
}
