package dispatcher

import (
	"context"
	"errors"

	"github.com/local/colorsplit/internal/splitter"
)

// Failure reasons recorded in job status and on DLQ entries.
const (
	ReasonInvalidInput = "invalid_input"
	ReasonRender       = "render_failed"
	ReasonAssemble     = "assemble_failed"
	ReasonTimeout      = "timeout"
	ReasonCancelled    = "cancelled"
	ReasonInternal     = "internal"
)

// classifyError maps a split or delivery error to a failure reason.
func classifyError(err error) string {
	var renderErr *splitter.RenderError
	var assembleErr *splitter.AssembleError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCancelled
	case errors.Is(err, splitter.ErrInvalidInput):
		return ReasonInvalidInput
	case errors.As(err, &renderErr):
		return ReasonRender
	case errors.As(err, &assembleErr):
		return ReasonAssemble
	default:
		return ReasonInternal
	}
}
