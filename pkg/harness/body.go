package harness

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Sentinel errors for body parsing
var (
	ErrInvalidJSON   = errors.New("response body is not valid JSON")
	ErrNotObject     = errors.New("response body is not a JSON object")
	ErrNonStringJSON = errors.New("response body has a non-string value")
)

// ParseBody decodes a JSON object whose values are all strings.
func ParseBody(body []byte) (map[string]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidJSON
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("%w: got %s", ErrNotObject, root.Type)
	}

	out := make(map[string]string)
	var err error
	root.ForEach(func(key, value gjson.Result) bool {
		if value.Type != gjson.String {
			err = fmt.Errorf("%w: %q is %s", ErrNonStringJSON, key.String(), value.Raw)
			return false
		}
		out[key.String()] = value.String()
		return true
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// decodeGeneric turns a JSON document into plain Go values for expression
// evaluation and schema validation. Invalid JSON yields nil.
func decodeGeneric(body []byte) interface{} {
	if !gjson.ValidBytes(body) {
		return nil
	}
	return gjson.ParseBytes(body).Value()
}

// lookupPath queries body with a gjson path.
func lookupPath(body []byte, path string) (gjson.Result, bool) {
	res := gjson.GetBytes(body, path)
	return res, res.Exists()
}

func validJSON(body []byte) bool {
	return gjson.ValidBytes(body)
}
