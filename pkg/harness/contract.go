package harness

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// DefaultMessage is the message the order endpoint must acknowledge with.
const DefaultMessage = "Order received"

// Contract is what a response must satisfy. Status and Body are the core
// checks; Schema, Fields and Assertions are optional refinements applied
// afterwards in that order.
type Contract struct {
	Status     int               // Expected status code (0 = not checked)
	Body       map[string]string // Exact expected body (nil = not checked)
	Schema     []byte            // Additional JSON schema for the body
	Fields     map[string]string // gjson path -> expected string value
	Assertions []string          // Boolean expr expressions
}

// DefaultContract expects 200 and exactly {"message": "Order received"}.
func DefaultContract() Contract {
	return Contract{
		Status: http.StatusOK,
		Body:   map[string]string{"message": DefaultMessage},
	}
}

// ContractError reports a response that broke the contract.
type ContractError struct {
	Field    string      // "status", "body", "schema", "field:<path>" or "assertion"
	Expected interface{} // What the contract demanded
	Actual   interface{} // What the server sent
	Details  []string    // Validator messages, if any
}

func (e *ContractError) Error() string {
	msg := fmt.Sprintf("%s mismatch: expected %s, got %s", e.Field, render(e.Expected), render(e.Actual))
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// Check validates resp. The status is checked before the body, so a wrong
// status is reported even when the body is also wrong.
func (c Contract) Check(resp *Response) error {
	if resp == nil {
		return fmt.Errorf("no response to check")
	}

	if c.Status != 0 && resp.StatusCode != c.Status {
		return &ContractError{Field: "status", Expected: c.Status, Actual: resp.StatusCode}
	}

	if c.Body != nil {
		if err := c.checkBody(resp.Body); err != nil {
			return err
		}
	}

	if len(c.Schema) > 0 {
		if !validJSON(resp.Body) {
			return &ContractError{Field: "schema", Expected: "body matching schema", Actual: string(resp.Body), Details: []string{ErrInvalidJSON.Error()}}
		}
		details, err := validateSchema(c.Schema, resp.Body)
		if err != nil {
			return fmt.Errorf("schema validation error: %w", err)
		}
		if len(details) > 0 {
			return &ContractError{Field: "schema", Expected: "body matching schema", Actual: string(resp.Body), Details: details}
		}
	}

	paths := make([]string, 0, len(c.Fields))
	for path := range c.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		want := c.Fields[path]
		got, ok := lookupPath(resp.Body, path)
		if !ok {
			return &ContractError{Field: "field:" + path, Expected: want, Actual: nil}
		}
		if got.String() != want {
			return &ContractError{Field: "field:" + path, Expected: want, Actual: got.Value()}
		}
	}

	if len(c.Assertions) > 0 {
		assertions, err := CompileAssertions(c.Assertions)
		if err != nil {
			return err
		}
		env := newAssertionEnv(resp)
		for _, a := range assertions {
			ok, err := a.Eval(env)
			if err != nil {
				return err
			}
			if !ok {
				return &ContractError{Field: "assertion", Expected: a.Source, Actual: "false"}
			}
		}
	}

	return nil
}

func (c Contract) checkBody(body []byte) error {
	actual, err := ParseBody(body)
	if err != nil {
		return &ContractError{Field: "body", Expected: c.Body, Actual: string(body), Details: []string{err.Error()}}
	}

	schema, err := BodySchema(c.Body)
	if err != nil {
		return err
	}
	details, err := validateSchema(schema, body)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if len(details) > 0 {
		return &ContractError{Field: "body", Expected: c.Body, Actual: actual, Details: details}
	}
	return nil
}

// BodySchema compiles an exact string mapping into a JSON schema: every key
// required with a const value, and no other properties allowed.
func BodySchema(expected map[string]string) ([]byte, error) {
	keys := make([]string, 0, len(expected))
	properties := make(map[string]interface{}, len(expected))
	for k, v := range expected {
		keys = append(keys, k)
		properties[k] = map[string]interface{}{"type": "string", "const": v}
	}
	sort.Strings(keys)

	schema := map[string]interface{}{
		"$schema":              "http://json-schema.org/draft-07/schema#",
		"type":                 "object",
		"properties":           properties,
		"required":             keys,
		"additionalProperties": false,
	}
	return json.Marshal(schema)
}

// validateSchema returns one message per violation, or nil when body is valid.
func validateSchema(schema, body []byte) ([]string, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewBytesLoader(body),
	)
	if err != nil {
		return nil, err
	}
	if result.Valid() {
		return nil, nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, fmt.Sprintf("%s: %s", desc.Field(), desc.Description()))
	}
	return details, nil
}

func render(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "<missing>"
	case string:
		return fmt.Sprintf("%q", val)
	case map[string]string:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}
