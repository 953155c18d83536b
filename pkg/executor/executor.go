package executor

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pario-ai/quelldemo/pkg/models"
)

// InvalidQueryMessage is the user-facing text for any failed submission
// that carries no more specific message.
const InvalidQueryMessage = "Invalid query"

// ErrShapeMismatch is returned when a cache layer answers with something
// that does not match its contract.
var ErrShapeMismatch = errors.New("response shape mismatch")

// Executor runs a query through one cache layer. Implementations return the
// result together with the wall-clock time the call took.
type Executor interface {
	Run(ctx context.Context, query models.QueryRecord, limits models.LimitConfig) (models.ExecutionResult, time.Duration, error)
}

// QueryError pairs the user-facing message of a failed run with its cause.
type QueryError struct {
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *QueryError) Unwrap() error { return e.Err }

// UserMessage returns the message to surface for err: the QueryError
// message when one is present, otherwise InvalidQueryMessage.
func UserMessage(err error) string {
	var qe *QueryError
	if errors.As(err, &qe) && qe.Message != "" {
		return qe.Message
	}
	return InvalidQueryMessage
}

func invalid(err error) error {
	return &QueryError{Message: InvalidQueryMessage, Err: err}
}

func validPayload(data json.RawMessage) bool {
	return len(data) > 0 && json.Valid(data)
}
