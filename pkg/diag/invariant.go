package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// InvariantError reports a broken structural invariant, such as a cycle in
// the document tree. It is the only fatal error class in the engine.
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string {
	return "internal invariant violated: " + e.Msg
}

// Invariant returns a fatal error carrying a stack trace.
func Invariant(format string, args ...interface{}) error {
	return errors.WithStack(&InvariantError{Msg: fmt.Sprintf(format, args...)})
}

// IsFatal reports whether err is, or wraps, an InvariantError.
func IsFatal(err error) bool {
	var inv *InvariantError
	return errors.As(err, &inv)
}
