package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps request bodies; every payload here is a handful of fields.
const maxBodyBytes = 1 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator. Field names in errors use
// the json tag so they match what the client sent.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// InvalidRequestError is returned by DecodeJSON when the body is malformed or
// fails validation. Fields maps json field names to the failed rule.
type InvalidRequestError struct {
	Reason string
	Fields map[string]string
}

func (e *InvalidRequestError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Fields)
}

// DecodeJSON reads a JSON body into dst and validates it.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &InvalidRequestError{Reason: "request body is empty"}
		}
		return &InvalidRequestError{Reason: "request body is not valid JSON: " + err.Error()}
	}
	return ValidateStruct(dst)
}

// ValidateStruct runs the validate tags on v.
func ValidateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &InvalidRequestError{Reason: err.Error()}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		fields[fe.Field()] = rule
	}
	return &InvalidRequestError{Reason: "request validation failed", Fields: fields}
}

// WriteInvalidRequest writes a 422 for a decode or validation failure.
func WriteInvalidRequest(w http.ResponseWriter, err error) {
	var ire *InvalidRequestError
	if errors.As(err, &ire) {
		WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:            "invalid_request",
			ErrorDescription: ire.Reason,
			Fields:           ire.Fields,
		})
		return
	}
	WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
}
