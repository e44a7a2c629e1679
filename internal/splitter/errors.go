package splitter

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks a source document that is missing, unreadable or not a PDF.
// It is reported before any page is classified.
var ErrInvalidInput = errors.New("invalid input document")

// RenderError reports a page that could not be rasterized. It aborts the whole run.
type RenderError struct {
	Page int
	Err  error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render page %d: %v", e.Page+1, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// AssembleError reports a failure writing one of the output documents.
type AssembleError struct {
	Path string
	Err  error
}

func (e *AssembleError) Error() string {
	return fmt.Sprintf("assemble %s: %v", e.Path, e.Err)
}

func (e *AssembleError) Unwrap() error { return e.Err }

// invalidInput wraps err so that errors.Is(err, ErrInvalidInput) holds.
func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
