package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloo-solutions/knowpool/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	_ = validate.RegisterValidation("knowledgetype", func(fl validator.FieldLevel) bool {
		v := fl.Field().String()
		return v == "" || domain.IsValidKnowledgeType(domain.KnowledgeType(v))
	})
	_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// Validate checks v against its struct tags and reports the first failing
// field as a validation error.
func Validate(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
	}
	return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid request", err)
}

// DecodeJSON reads a JSON body into v and validates it.
func DecodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return domain.NewDomainError(domain.ErrCodeValidation, "request body too large")
		}
		return domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid request body", err)
	}
	return Validate(v)
}
