package engine

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chesslens/chesslens/internal/logging"
)

// Process owns one external UCI engine process and exposes line-oriented
// text I/O over its stdin/stdout pipes. ReadLine must only be called from
// a single goroutine; WriteLine and Terminate may be called concurrently.
type Process struct {
	logger logging.ContextLogger

	cmd    *exec.Cmd
	stdout *bufio.Reader

	writeMu sync.Mutex
	stdin   io.WriteCloser

	mu      sync.Mutex
	running bool
	waitCh  chan error
}

// StartProcess spawns the engine binary. UCI engines take no required
// arguments; they are driven entirely via stdin/stdout.
func StartProcess(binaryPath, workingDir string, logger logging.ContextLogger) (*Process, error) {
	cmd := exec.Command(binaryPath) // #nosec G204 -- binaryPath is validated configuration

	if workingDir != "" {
		cmd.Dir = workingDir
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, &LaunchError{Path: binaryPath, Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &LaunchError{Path: binaryPath, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &LaunchError{Path: binaryPath, Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return nil, &LaunchError{Path: binaryPath, Err: err}
	}

	p := &Process{
		logger:  logger,
		cmd:     cmd,
		stdin:   stdin,
		stdout:  bufio.NewReader(stdout),
		running: true,
		waitCh:  make(chan error, 1),
	}

	go p.drainStderr(stderr)
	go func() {
		err := cmd.Wait()
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		p.waitCh <- err
		close(p.waitCh)
	}()

	logger.Info("engine process started", "binary", binaryPath, "pid", cmd.Process.Pid)
	return p, nil
}

// WriteLine sends one newline-terminated command to the engine.
func (p *Process) WriteLine(line string) error {
	p.mu.Lock()
	running := p.running
	p.mu.Unlock()
	if !running {
		return ErrBrokenPipe
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if _, err := io.WriteString(p.stdin, line+"\n"); err != nil {
		return fmt.Errorf("%w: %v", ErrBrokenPipe, err)
	}
	return nil
}

// ReadLine blocks until a full line is available or the process closes its
// output stream, in which case io.EOF is returned. Output is treated as
// UTF-8; malformed byte sequences are replaced rather than failing the read.
func (p *Process) ReadLine() (string, error) {
	line, err := p.stdout.ReadString('\n')
	if err != nil {
		if line == "" {
			if err == io.EOF {
				return "", io.EOF
			}
			return "", fmt.Errorf("read engine stdout: %w", err)
		}
		// A partial final line is still delivered.
	}

	line = strings.TrimRight(line, "\r\n")
	return strings.ToValidUTF8(line, "�"), nil
}

// Running reports whether the process is still alive.
func (p *Process) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// PID returns the process id, or 0 if the process never started.
func (p *Process) PID() int {
	if p.cmd == nil || p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Terminate requests a graceful shutdown via the protocol quit command and
// escalates to a forced kill when the process has not exited within
// graceWindow. It is idempotent.
func (p *Process) Terminate(graceWindow time.Duration) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// Best effort: the pipe may already be gone.
	_ = p.WriteLine("quit")

	p.writeMu.Lock()
	_ = p.stdin.Close()
	p.writeMu.Unlock()

	select {
	case err := <-p.waitCh:
		if err != nil {
			p.logger.Warn("engine process exited with error", "error", err)
		}
		return nil
	case <-time.After(graceWindow):
		p.logger.Warn("engine did not quit in time, killing", "grace", graceWindow)
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Kill()
		}
		<-p.waitCh
		return nil
	}
}

// drainStderr logs engine stderr output at debug level.
func (p *Process) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := scanner.Text(); line != "" {
			p.logger.Debug("engine stderr", "line", line)
		}
	}
}
