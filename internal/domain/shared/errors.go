package shared

import "errors"

// ErrOperationFailed is the only error detail that crosses the API boundary when
// a write fails after validation
var ErrOperationFailed = errors.New("operation failed")

// ErrInvalidInput indicates a request was rejected before anything was written
type ErrInvalidInput struct {
	Field  string
	Reason string
}

func (e ErrInvalidInput) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return "invalid " + e.Field + ": " + e.Reason
}

// Is matches any ErrInvalidInput when the target has no field set
func (e ErrInvalidInput) Is(target error) bool {
	t, ok := target.(ErrInvalidInput)
	if !ok {
		return false
	}
	if t.Field == "" {
		return true
	}
	return e.Field == t.Field
}
