package resolver

import (
	"errors"
	"fmt"

	"github.com/hanpama/kanbangraph/internal/dataloader"
)

// Error codes reported in the extensions of field errors.
const (
	CodeBadUserInput = "BAD_USER_INPUT"
	CodeInternal     = "INTERNAL_SERVER_ERROR"
)

// InputError reports an argument the resolver could not accept, such as an
// identifier of the wrong kind.
type InputError struct {
	Argument string
	Err      error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid argument %q: %v", e.Argument, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

func (e *InputError) Extensions() map[string]any {
	return map[string]any{"code": CodeBadUserInput}
}

// internalError hides a panic behind a generic message.
type internalError struct{ err error }

func (e *internalError) Error() string { return "internal error" }

func (e *internalError) Unwrap() error { return e.err }

func (e *internalError) Extensions() map[string]any {
	return map[string]any{"code": CodeInternal}
}

// classify hides loader panics from clients. Store errors pass through.
func classify(err error) error {
	var pe *dataloader.PanicError
	if errors.As(err, &pe) {
		return &internalError{err: err}
	}
	return err
}
