// Package apperr defines the error taxonomy shared by the content engine.
package apperr

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound means a logical reference could not be located.
	ErrNotFound = errors.New("not found")
	// ErrCircularEmbed means a reference was requested inside its own resolution chain.
	ErrCircularEmbed = errors.New("circular embed")
	// ErrMalformedPreamble means the YAML preamble could not be parsed.
	ErrMalformedPreamble = errors.New("malformed preamble")
	// ErrUnsupportedNode means a tree node has no mapping in the target format.
	ErrUnsupportedNode = errors.New("unsupported node")
	// ErrIO is a read failure that is not a missing file.
	ErrIO = errors.New("io failure")
)

// CircularEmbedError carries the resolution chain that closed a cycle.
type CircularEmbedError struct {
	Chain []string
}

func (e *CircularEmbedError) Error() string {
	return "circular embed: " + strings.Join(e.Chain, " -> ")
}

// Is reports whether target is ErrCircularEmbed.
func (e *CircularEmbedError) Is(target error) bool {
	return target == ErrCircularEmbed
}

// Recoverable reports whether err is local to one reference and must not
// abort the enclosing document.
func Recoverable(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrCircularEmbed)
}
