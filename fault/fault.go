// Package fault defines the error kinds surfaced to the operator.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError reports an invalid or incomplete settings value.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Message)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// PreconditionError reports an action attempted while a required invariant
// does not hold, e.g. starting without ranges or connecting without a listener.
type PreconditionError struct {
	Action string
	Reason string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Action, e.Reason)
}

// ExternalToolError wraps the failure of an external command such as ip,
// tmux or an escalation wrapper.
type ExternalToolError struct {
	Argv   []string
	Output string
	Err    error
}

func (e *ExternalToolError) Error() string {
	s := fmt.Sprintf("%s: %v", strings.Join(e.Argv, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		s += " (" + out + ")"
	}
	return s
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// Validation builds a ValidationError.
func Validation(field, value, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// Precondition builds a PreconditionError.
func Precondition(action, reason string) *PreconditionError {
	return &PreconditionError{Action: action, Reason: reason}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsPrecondition reports whether err carries a PreconditionError.
func IsPrecondition(err error) bool {
	var p *PreconditionError
	return errors.As(err, &p)
}

// IsExternal reports whether err carries an ExternalToolError.
func IsExternal(err error) bool {
	var x *ExternalToolError
	return errors.As(err, &x)
}

// OutputContains reports whether err is an ExternalToolError whose output
// contains any of the given substrings, compared case-insensitively.
func OutputContains(err error, subs ...string) bool {
	var x *ExternalToolError
	if !errors.As(err, &x) {
		return false
	}
	out := x.Output
	if x.Err != nil {
		out += " " + x.Err.Error()
	}
	out = strings.ToLower(out)
	for _, s := range subs {
		if strings.Contains(out, strings.ToLower(s)) {
			return true
		}
	}
	return false
}
