package process

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zjrosen/claudecode/internal/protocol"
)

var (
	// ErrTimeout is the failure reason when a run exceeds its timeout.
	ErrTimeout = errors.New("process timed out")
	// ErrAborted is carried by Aborted outcomes and aborted notifications.
	ErrAborted = errors.New("stream aborted by user")
)

// SpawnError reports that the executable could not be started.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ExitError reports a non-zero exit status with the captured stderr. Reason
// holds the error event decoded from stdout, if there was one.
type ExitError struct {
	Name   string
	Code   int
	Stderr string
	Reason *protocol.StreamError
}

func (e *ExitError) Error() string {
	detail := e.Stderr
	if e.Reason != nil {
		detail = strings.TrimSuffix(e.Reason.Reason+": "+e.Stderr, ": ")
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Name, e.Code, detail)
}

func (e *ExitError) Unwrap() error {
	if e.Reason == nil {
		return nil
	}
	return e.Reason
}
