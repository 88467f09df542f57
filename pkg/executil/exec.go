// Package executil runs shell commands that filter text.
package executil

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const maxStderrLen = 500

// limitedWriter caps writes to a bytes.Buffer at a maximum byte count.
// Bytes beyond the limit are silently discarded.
type limitedWriter struct {
	buf *bytes.Buffer
	n   int64
	max int64
}

func (w *limitedWriter) Write(p []byte) (int, error) {
	if w.n >= w.max {
		return len(p), nil
	}
	remaining := w.max - w.n
	origLen := len(p)
	if int64(origLen) > remaining {
		p = p[:remaining]
	}
	n, err := w.buf.Write(p)
	w.n += int64(n)
	if err != nil {
		return n, err
	}
	return origLen, nil
}

// Filter runs a shell command with input on stdin and returns its stdout.
type Filter interface {
	Filter(ctx context.Context, cmd, input string) (string, error)
}

// Shell runs commands through sh -c.
type Shell struct {
	// Dir is the working directory. Empty inherits the process cwd.
	Dir string
	// Env is appended to the process environment.
	Env []string
}

// Filter runs cmd. On failure, stderr is returned as the error message,
// capped at 500 bytes so large or ANSI-polluted output cannot flood logs.
// The *exec.ExitError is preserved via wrapping so callers can inspect
// exit codes with errors.As.
func (s *Shell) Filter(ctx context.Context, cmd, input string) (string, error) {
	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	c.Dir = s.Dir
	if len(s.Env) > 0 {
		c.Env = append(c.Environ(), s.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdin = strings.NewReader(input)
	c.Stdout = &stdout
	c.Stderr = &limitedWriter{buf: &stderr, max: maxStderrLen}

	if err := c.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%s: %w", msg, err)
		}
		return "", err
	}
	return stdout.String(), nil
}
