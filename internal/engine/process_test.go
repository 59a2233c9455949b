package engine

import (
	"errors"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startCat launches cat as a line-echoing stand-in for an engine binary.
func startCat(t *testing.T) *Process {
	t.Helper()

	path, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not available")
	}

	proc, err := StartProcess(path, "", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = proc.Terminate(2 * time.Second) })
	return proc
}

func TestProcessEchoRoundTrip(t *testing.T) {
	proc := startCat(t)

	require.NoError(t, proc.WriteLine("uci"))
	line, err := proc.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "uci", line)

	assert.True(t, proc.Running())
	assert.NotZero(t, proc.PID())
}

func TestProcessTrimsLineEndings(t *testing.T) {
	proc := startCat(t)

	require.NoError(t, proc.WriteLine("bestmove e2e4\r"))
	line, err := proc.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "bestmove e2e4", line)
}

func TestProcessEOFAfterTerminate(t *testing.T) {
	proc := startCat(t)

	require.NoError(t, proc.Terminate(2*time.Second))
	assert.False(t, proc.Running())

	// cat echoes the quit command before its stdin closes; drain until EOF.
	for {
		_, err := proc.ReadLine()
		if err != nil {
			assert.ErrorIs(t, err, io.EOF)
			break
		}
	}
}

func TestProcessWriteAfterExit(t *testing.T) {
	proc := startCat(t)
	require.NoError(t, proc.Terminate(2*time.Second))

	err := proc.WriteLine("go depth 10")
	assert.ErrorIs(t, err, ErrBrokenPipe)
}

func TestProcessTerminateIdempotent(t *testing.T) {
	proc := startCat(t)

	require.NoError(t, proc.Terminate(2*time.Second))
	require.NoError(t, proc.Terminate(2*time.Second))
}

func TestStartProcessMissingBinary(t *testing.T) {
	_, err := StartProcess("/nonexistent/engine-binary", "", testLogger())
	require.Error(t, err)

	var launchErr *LaunchError
	require.True(t, errors.As(err, &launchErr))
	assert.Equal(t, "/nonexistent/engine-binary", launchErr.Path)
}
