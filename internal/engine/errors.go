package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrBrokenPipe is returned by WriteLine after the process has exited.
	ErrBrokenPipe = errors.New("engine process pipe closed")

	// ErrProtocol indicates a malformed or timed-out UCI handshake. It is
	// treated as engine incompatibility and never retried transparently.
	ErrProtocol = errors.New("uci protocol error")

	// ErrEngineCrashed indicates the process died mid-session.
	ErrEngineCrashed = errors.New("engine crashed")

	// ErrSessionClosed is returned by every operation after the session
	// has stopped.
	ErrSessionClosed = errors.New("session closed")

	// ErrSearchInProgress is returned when a search is issued while
	// another is still live on the same engine.
	ErrSearchInProgress = errors.New("search already in progress")
)

// LaunchError reports a failure to spawn the engine binary.
type LaunchError struct {
	Path string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch engine %s: %v", e.Path, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }
