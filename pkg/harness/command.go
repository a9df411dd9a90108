package harness

import (
	"fmt"
	"os"
	"strings"
)

// CIEnvVar is the environment variable whose non-empty value marks a
// continuous-integration environment.
const CIEnvVar = "GITHUB_ACTIONS"

// Command is an ordered sequence of tokens describing a process invocation.
// The first token is the program, the rest are its arguments.
type Command []string

var (
	// CICommand runs the server directly with the ambient interpreter.
	CICommand = Command{"python", "tests/server.py"}
	// LocalCommand runs the server through pipenv's virtual environment.
	LocalCommand = Command{"pipenv", "run", "python", "tests/server.py"}
)

// SelectCommand maps the CI flag to one of the two fixed commands.
// The returned slice is a fresh copy.
func SelectCommand(ci bool) Command {
	if ci {
		return CICommand.Clone()
	}
	return LocalCommand.Clone()
}

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// IsCI reports whether the variable named key is set to a non-empty value.
func IsCI(lookup LookupFunc, key string) bool {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if key == "" {
		key = CIEnvVar
	}
	v, ok := lookup(key)
	return ok && v != ""
}

// CommandFromEnv selects the command using the GITHUB_ACTIONS variable.
func CommandFromEnv(lookup LookupFunc) Command {
	return SelectCommand(IsCI(lookup, CIEnvVar))
}

// Program returns the executable token.
func (c Command) Program() string {
	if len(c) == 0 {
		return ""
	}
	return c[0]
}

// Args returns the tokens after the program.
func (c Command) Args() []string {
	if len(c) < 2 {
		return nil
	}
	return c[1:]
}

// Clone returns a copy that shares no backing array with c.
func (c Command) Clone() Command {
	if c == nil {
		return nil
	}
	out := make(Command, len(c))
	copy(out, c)
	return out
}

// Validate checks that the command names a program.
func (c Command) Validate() error {
	if len(c) == 0 || strings.TrimSpace(c[0]) == "" {
		return fmt.Errorf("command cannot be empty")
	}
	return nil
}

// String renders the command space separated, for logs and reports.
func (c Command) String() string {
	return strings.Join(c, " ")
}
