// internal/types/errors.go
package types

import (
	"errors"
	"fmt"
	"strings"
)

// UserInputError marks a command failure caused by what the user typed
// rather than by the bot. Completions for these failures are reported
// with StatusUserError, and Reply is shown to the user as-is.
type UserInputError struct {
	Reply string
	Err   error
}

func (e *UserInputError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reply
}

func (e *UserInputError) Unwrap() error {
	return e.Err
}

// NewUserInputError builds a UserInputError with the given user-facing reply.
func NewUserInputError(reply string) *UserInputError {
	return &UserInputError{Reply: reply}
}

// StatusOf classifies a command handler result into a completion status.
func StatusOf(err error) Status {
	if err == nil {
		return StatusSuccess
	}
	var uie *UserInputError
	if errors.As(err, &uie) {
		return StatusUserError
	}
	return StatusInternalError
}

// ErrorClass returns a short classification name for an error: the
// concrete type name without pointer marker or package path.
func ErrorClass(err error) string {
	if err == nil {
		return ""
	}
	var uie *UserInputError
	if errors.As(err, &uie) {
		return "UserInputError"
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
