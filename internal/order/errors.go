package order

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/celenkdiyari/storefront/internal/domain"
)

var (
	ErrNotFound          = stderrors.New("order not found")
	ErrInvalidTransition = stderrors.New("invalid order status transition")
)

// ValidationError lists the offending request fields
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	return "validation failed: " + strings.Join(names, ", ")
}

// IsValidation reports whether err carries field errors
func IsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if stderrors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// TransitionError a refused status change
type TransitionError struct {
	From domain.OrderStatus
	To   domain.OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationFields turns validator errors into a json path keyed map
func validationFields(err error) map[string]string {
	fields := map[string]string{}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		fields["request"] = err.Error()
		return fields
	}
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		switch fe.Tag() {
		case "required":
			fields[ns] = "required"
		case "email":
			fields[ns] = "invalid email"
		case "oneof":
			fields[ns] = "must be one of " + fe.Param()
		case "min":
			fields[ns] = "must be at least " + fe.Param()
		case "max":
			fields[ns] = "must be at most " + fe.Param()
		default:
			fields[ns] = "invalid"
		}
	}
	return fields
}
