package harness

import (
	"errors"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ErrInvalidAssertion is returned for assertions that fail to compile or
// evaluate to something other than a boolean.
var ErrInvalidAssertion = errors.New("invalid assertion")

// Assertion is a compiled boolean expression over a response. Expressions
// see these variables:
//   - status: the status code (int)
//   - body: the decoded JSON body (nil if not JSON)
//   - text: the raw body as a string
//   - headers: canonical header name -> first value
//   - duration_ms: round-trip time in milliseconds
//
// Example: `status == 200 && body.message startsWith "Order"`
type Assertion struct {
	Source  string
	program *vm.Program
}

// assertionEnv is the expression environment. Body is untyped so member
// access on it is checked at run time, not compile time.
type assertionEnv struct {
	Status     int               `expr:"status"`
	Body       interface{}       `expr:"body"`
	Text       string            `expr:"text"`
	Headers    map[string]string `expr:"headers"`
	DurationMS int64             `expr:"duration_ms"`
}

// CompileAssertions compiles each source expression.
func CompileAssertions(sources []string) ([]*Assertion, error) {
	out := make([]*Assertion, 0, len(sources))
	for _, src := range sources {
		program, err := expr.Compile(src, expr.Env(assertionEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidAssertion, src, err)
		}
		out = append(out, &Assertion{Source: src, program: program})
	}
	return out, nil
}

// Eval runs the assertion against an environment built by newAssertionEnv.
func (a *Assertion) Eval(env assertionEnv) (bool, error) {
	result, err := vm.Run(a.program, env)
	if err != nil {
		return false, fmt.Errorf("%w %q: %v", ErrInvalidAssertion, a.Source, err)
	}
	ok, isBool := result.(bool)
	if !isBool {
		return false, fmt.Errorf("%w %q: result is %T, not bool", ErrInvalidAssertion, a.Source, result)
	}
	return ok, nil
}

func newAssertionEnv(resp *Response) assertionEnv {
	headers := make(map[string]string, len(resp.Headers))
	for k, v := range resp.Headers {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	return assertionEnv{
		Status:     resp.StatusCode,
		Body:       decodeGeneric(resp.Body),
		Text:       string(resp.Body),
		Headers:    headers,
		DurationMS: resp.Duration.Milliseconds(),
	}
}
