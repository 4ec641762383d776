package acquire

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"
)

const (
	// DefaultProcessTimeout bounds one external command.
	DefaultProcessTimeout = 10 * time.Minute
	// outputTail is how many trailing lines of output an error keeps.
	outputTail = 12
	// killGrace is how long a killed process may keep its pipes open.
	killGrace = 5 * time.Second
)

// CommandResult is what a finished command left behind.
type CommandResult struct {
	ExitCode int
	// Tail holds the last lines of combined output.
	Tail []string
}

// Output joins the tail lines.
func (r CommandResult) Output() string {
	return strings.Join(r.Tail, "\n")
}

// Runner runs external commands. Tests substitute a scripted fake.
type Runner interface {
	// Run executes argv and calls onLine for every line of combined output.
	// A non-zero exit yields a *CommandError, a timeout a
	// *ProcessTimeoutError.
	Run(ctx context.Context, argv []string, onLine func(string)) (CommandResult, error)
	LookPath(name string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Timeout bounds each command; zero means DefaultProcessTimeout.
	Timeout time.Duration
	// Env, when set, replaces the inherited environment.
	Env []string
}

func (r ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (r ExecRunner) Run(ctx context.Context, argv []string, onLine func(string)) (CommandResult, error) {
	if len(argv) == 0 {
		return CommandResult{ExitCode: -1}, errors.New("empty command")
	}
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultProcessTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.WaitDelay = killGrace
	if r.Env != nil {
		cmd.Env = r.Env
	}

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	tail := newTailBuffer(outputTail)
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanLines(pr, func(line string) {
			tail.add(line)
			if onLine != nil {
				onLine(line)
			}
		})
	}()

	command := strings.Join(argv, " ")
	if err := cmd.Start(); err != nil {
		pw.Close()
		<-done
		return CommandResult{ExitCode: -1}, fmt.Errorf("start %s: %w", command, err)
	}
	waitErr := cmd.Wait()
	pw.Close()
	<-done

	result := CommandResult{Tail: tail.lines()}
	if waitErr == nil {
		return result, nil
	}

	if ctx.Err() != nil {
		result.ExitCode = -1
		return result, ctx.Err()
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		result.ExitCode = -1
		return result, &ProcessTimeoutError{Command: command, Timeout: timeout}
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, &CommandError{Command: command, ExitCode: result.ExitCode, Output: lastLine(result.Tail)}
	}
	result.ExitCode = -1
	return result, fmt.Errorf("run %s: %w", command, waitErr)
}

// scanLines feeds r line by line to fn and drains whatever the scanner
// cannot handle so the writer never blocks.
func scanLines(r io.Reader, fn func(string)) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		// Package managers redraw progress with carriage returns.
		for _, part := range strings.Split(scanner.Text(), "\r") {
			if line := strings.TrimSpace(part); line != "" {
				fn(line)
			}
		}
	}
	_, _ = io.Copy(io.Discard, r)
}

type tailBuffer struct {
	max int
	buf []string
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) add(line string) {
	t.buf = append(t.buf, line)
	if len(t.buf) > t.max {
		t.buf = t.buf[len(t.buf)-t.max:]
	}
}

func (t *tailBuffer) lines() []string {
	return append([]string(nil), t.buf...)
}

func lastLine(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	line := lines[len(lines)-1]
	if len(line) > 200 {
		line = line[:200] + "..."
	}
	return line
}
