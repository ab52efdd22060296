package question

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/xeipuuv/gojsonschema"
)

// pageSchema describes the shape of one source page. Unknown element fields
// are allowed and ignored.
const pageSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["question", "answer", "created_at"],
    "properties": {
      "question":   {"type": "string"},
      "answer":     {"type": "string"},
      "created_at": {"type": "string"}
    }
  }
}`

// timestampLayouts are tried in order when decoding created_at.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ErrBadTimestamp is returned by ParseTimestamp for unrecognized input.
var ErrBadTimestamp = errors.New("not a valid timestamp")

// FieldError is a single problem at a path inside the page, e.g. "3.answer".
type FieldError struct {
	Field   string
	Message string
}

// PageValidationError rejects a whole page.
type PageValidationError struct {
	Errors []FieldError
}

func (e *PageValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("page validation failed:")
	for i, fe := range e.Errors {
		sb.WriteString(fmt.Sprintf(" %d. %s: %s;", i+1, fe.Field, fe.Message))
	}
	return strings.TrimSuffix(sb.String(), ";")
}

// ParseTimestamp accepts RFC3339 and the common zone-less ISO-8601 forms.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q: %w", s, ErrBadTimestamp)
}

// Validator checks raw source pages and turns them into candidates.
// It is safe for concurrent use.
type Validator struct {
	schema   *gojsonschema.Schema
	validate *validator.Validate
}

// NewValidator compiles the page schema. It panics only if the embedded
// schema is broken.
func NewValidator() *Validator {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(pageSchema))
	if err != nil {
		panic(fmt.Sprintf("question: compile page schema: %v", err))
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("mapstructure"); name != "" {
			return name
		}
		return f.Name
	})
	return &Validator{schema: schema, validate: v}
}

// ValidatePage validates every element of raw. Either all elements are
// returned as candidates or the page is rejected with *PageValidationError.
func (v *Validator) ValidatePage(raw []map[string]any) ([]Candidate, error) {
	if raw == nil {
		raw = []map[string]any{}
	}

	result, err := v.schema.Validate(gojsonschema.NewGoLoader(raw))
	if err != nil {
		return nil, &PageValidationError{Errors: []FieldError{{Field: "(root)", Message: err.Error()}}}
	}
	if !result.Valid() {
		verr := &PageValidationError{Errors: make([]FieldError, 0, len(result.Errors()))}
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			verr.Errors = append(verr.Errors, FieldError{Field: field, Message: desc.Description()})
		}
		return nil, verr
	}

	verr := &PageValidationError{}
	out := make([]Candidate, 0, len(raw))
	for i, elem := range raw {
		c, err := v.decode(elem)
		if err != nil {
			verr.Errors = append(verr.Errors, FieldError{Field: fmt.Sprintf("%d", i), Message: err.Error()})
			continue
		}
		if err := v.validate.Struct(c); err != nil {
			var ves validator.ValidationErrors
			if !errors.As(err, &ves) {
				return nil, err
			}
			for _, fe := range ves {
				verr.Errors = append(verr.Errors, FieldError{
					Field:   fmt.Sprintf("%d.%s", i, fe.Field()),
					Message: fmt.Sprintf("failed on the '%s' rule", fe.Tag()),
				})
			}
			continue
		}
		out = append(out, c)
	}
	if len(verr.Errors) > 0 {
		return nil, verr
	}
	return out, nil
}

func (v *Validator) decode(elem map[string]any) (Candidate, error) {
	var c Candidate
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: timestampHook,
		Result:     &c,
	})
	if err != nil {
		return c, err
	}
	if err := dec.Decode(elem); err != nil {
		return c, err
	}
	return c, nil
}

var timeType = reflect.TypeOf(time.Time{})

func timestampHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != timeType || from.Kind() != reflect.String {
		return data, nil
	}
	return ParseTimestamp(reflect.ValueOf(data).String())
}
