package scan

import (
	"errors"
	"fmt"
)

// ErrMalformedInput marks transcripts and configurations that cannot be
// turned into a valid frame: grid/sample mismatches, unparsable values,
// duplicated or missing positions.
var ErrMalformedInput = errors.New("malformed input")

// ErrIO marks unreadable inputs and unwritable outputs.
var ErrIO = errors.New("i/o failure")

// Malformedf returns an error wrapping ErrMalformedInput.
func Malformedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedInput, fmt.Sprintf(format, args...))
}

// IOErrorf returns an error wrapping ErrIO.
func IOErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIO, fmt.Sprintf(format, args...))
}
