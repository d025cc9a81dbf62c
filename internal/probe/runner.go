package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

type StderrFunc func(ctx context.Context, line string)

type Command struct {
	Path    string
	Args    []string
	Env     []string
	Timeout time.Duration
}

type Result struct {
	Path     string
	Args     []string
	Started  time.Time
	Stopped  time.Time
	State    *os.ProcessState
	Stdout   *bytes.Buffer
	TimedOut bool
	Err      error
}

// Run executes the command and waits for it to finish. Stdout is captured
// into the Result, stderr lines are passed to stderrFunc if not nil.
// A command running longer than its Timeout gets killed and the Result is
// marked TimedOut.
func Run(ctx context.Context, proto Command, stderrFunc StderrFunc) Result {
	result := Result{
		Path: proto.Path,
		Args: append([]string(nil), proto.Args...),
	}

	if proto.Timeout == 0 {
		slog.WarnContext(ctx, "command has no timeout", "path", proto.Path)
	} else {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, proto.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, result.Path, result.Args...)
	cmd.WaitDelay = time.Second
	if proto.Env != nil {
		cmd.Env = append([]string(nil), proto.Env...)
	}
	var stderr io.ReadCloser
	if stderrFunc != nil {
		var err error
		stderr, err = cmd.StderrPipe()
		if err != nil {
			result.Err = err
			return result
		}
	}
	var buf bytes.Buffer
	result.Stdout = &buf
	cmd.Stdout = &buf

	result.Started = time.Now().UTC()
	if err := cmd.Start(); err != nil {
		result.Stopped = time.Now().UTC()
		result.Err = err
		return result
	}

	if stderr != nil {
		// stderr must be drained before Wait closes the pipe
		processStderr(ctx, stderr, stderrFunc)
	}
	err := cmd.Wait()
	result.Stopped = time.Now().UTC()
	result.State = cmd.ProcessState
	result.Err = err
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
	}
	return result
}

func processStderr(ctx context.Context, stderr io.Reader, stderrFunc StderrFunc) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		stderrFunc(ctx, scanner.Text())
	}
	err := scanner.Err()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, os.ErrClosed) {
		slog.ErrorContext(ctx, "processing stderr", "error", err)
	}
}
