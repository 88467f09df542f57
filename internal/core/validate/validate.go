// Package validate provides shared validation functions.
package validate

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/hay-kot/criterio"
)

// MaxMessageLength bounds commit messages.
const MaxMessageLength = 500

// DocumentPath validates that path names a regular file or nothing yet.
func DocumentPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path is required")
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

// Message validates a commit message: valid UTF-8, a single line, bounded
// length. An empty message is allowed.
func Message(msg string) error {
	if !utf8.ValidString(msg) {
		return fmt.Errorf("message is not valid UTF-8")
	}
	if strings.ContainsAny(msg, "\r\n") {
		return fmt.Errorf("message must be a single line")
	}
	if n := utf8.RuneCountInString(msg); n > MaxMessageLength {
		return fmt.Errorf("message is %d characters, limit is %d", n, MaxMessageLength)
	}
	return nil
}

// Kind returns a validator accepting only names present in kinds.
func Kind[T any](kinds map[string]T) func(string) error {
	return func(name string) error {
		if name == "" {
			return fmt.Errorf("kind is required")
		}
		if _, ok := kinds[name]; !ok {
			return fmt.Errorf("unknown kind %q", name)
		}
		return nil
	}
}

// MessageField returns a criterio validator for commit messages.
func MessageField(field, msg string) error {
	return criterio.Run(field, msg, Message)
}
