package executil

import (
	"context"
	"sync"
)

// RecordedCommand captures a filter invocation.
type RecordedCommand struct {
	Cmd   string
	Input string
}

// RecordingFilter captures commands for testing. Output and Err are returned
// from every call; a nil Output echoes the input.
type RecordingFilter struct {
	mu       sync.Mutex
	Commands []RecordedCommand

	Output func(cmd, input string) string
	Err    error
}

// Filter records the command and returns the configured result.
func (f *RecordingFilter) Filter(_ context.Context, cmd, input string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Commands = append(f.Commands, RecordedCommand{Cmd: cmd, Input: input})
	if f.Err != nil {
		return "", f.Err
	}
	if f.Output == nil {
		return input, nil
	}
	return f.Output(cmd, input), nil
}

// Recorded returns a copy of the recorded commands.
func (f *RecordingFilter) Recorded() []RecordedCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedCommand(nil), f.Commands...)
}

// Reset clears recorded commands.
func (f *RecordingFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Commands = nil
}
