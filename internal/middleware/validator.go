package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation marks a request the caller must fix.
var ErrValidation = errors.New("invalid request")

// ValidationError lists the offending fields.
type ValidationError struct {
	Fields map[string]string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%v: %v", ErrValidation, e.Err)
	}
	parts := make([]string, 0, len(e.Fields))
	for f, tag := range e.Fields {
		parts = append(parts, f+" ("+tag+")")
	}
	return fmt.Sprintf("%v: %s", ErrValidation, strings.Join(parts, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) Unwrap() error { return e.Err }

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report json names instead of Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("objectkey", func(fl validator.FieldLevel) bool {
		return ValidateObjectKey(fl.Field().String()) == nil
	})
	return v
}

// ValidateStruct runs the validate tags of v.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		return &ValidationError{Fields: fields, Err: err}
	}
	return &ValidationError{Err: err}
}

// DecodeJSON decodes a bounded JSON body into v and validates it.
func DecodeJSON(r *http.Request, v any, limit int64) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &ValidationError{Err: fmt.Errorf("decode body: %w", err)}
	}
	return ValidateStruct(v)
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

var objectKeyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]{0,1023}$`)

// ValidateObjectKey checks a camera frame key before it reaches the bucket
func ValidateObjectKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: object key cannot be empty", ErrValidation)
	}
	if !objectKeyPattern.MatchString(key) {
		return fmt.Errorf("%w: invalid object key format", ErrValidation)
	}
	// Block path traversal attempts
	if strings.Contains(key, "..") || path.Clean(key) != key {
		return fmt.Errorf("%w: path traversal detected", ErrValidation)
	}
	return nil
}

// ValidateID checks ids taken from the URL (uuid or short numeric ids).
func ValidateID(id string) error {
	matched, _ := regexp.MatchString(`^[A-Za-z0-9_-]{1,64}$`, id)
	if !matched {
		return fmt.Errorf("%w: invalid id format", ErrValidation)
	}
	return nil
}
