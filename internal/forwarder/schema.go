package forwarder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalidPayload means a submission body failed schema validation.
var ErrInvalidPayload = errors.New("invalid submission payload")

const payloadSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["formType", "timestamp"],
	"properties": {
		"formType": {"type": "string", "enum": ["early-bird", "official"]},
		"timestamp": {"type": "string", "minLength": 1},
		"email": {"type": "string"},
		"fullName": {"type": "string"}
	}
}`

var schema = mustSchema(payloadSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("forwarder: bad payload schema: %v", err))
	}
	return s
}

// ValidatePayload checks that body is a JSON object carrying a form type and
// a timestamp. Errors wrap ErrInvalidPayload.
func ValidatePayload(body []byte) error {
	result, err := schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if result.Valid() {
		return nil
	}

	problems := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		problems = append(problems, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(problems, "; "))
}
