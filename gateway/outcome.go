package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

type Kind int

const (
	// Success carries the server result
	Success Kind = iota
	// Rejected means the server understood the request and refused it
	Rejected
	// Failed means no usable response came back
	Failed
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Rejected:
		return "rejected"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ApplicationError is a rejection, either from the server or from a local validation
// made before sending the request.
type ApplicationError struct {
	Method  string
	Message string
	Err     error
}

// Reject builds the ApplicationError of a local validation failure
func Reject(method string, err error) *ApplicationError {
	return &ApplicationError{
		Method:  method,
		Message: err.Error(),
		Err:     err,
	}
}

func (e *ApplicationError) Error() string {
	return e.Message
}

func (e *ApplicationError) Unwrap() error {
	return e.Err
}

// IsApplicationError returns the ApplicationError wrapped in err, if any
func IsApplicationError(err error) (*ApplicationError, bool) {
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Outcome is delivered exactly once for every call
type Outcome struct {
	CallID uint64
	Method string
	Kind   Kind
	Result json.RawMessage
	// Err is an *ApplicationError when Kind is Rejected
	Err error
}

// Decode unmarshals the result of a successful call into v
func (o Outcome) Decode(v any) error {
	if o.Kind != Success {
		return fmt.Errorf("cannot decode result of a %s call", o.Kind)
	}
	if len(o.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(o.Result, v); err != nil {
		return fmt.Errorf("cannot decode result of %s: %w", o.Method, err)
	}
	return nil
}
