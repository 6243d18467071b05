package evidence

import (
	"context"
	"log/slog"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

// System defines the public contract for evidence normalization: turning
// arbitrary uploaded bytes into extracted text with a uniform readability
// signal.
type System interface {
	// Parse extracts text from data according to the declared extension.
	// It fails closed: parser errors and low-yield extractions fall back to
	// the OCR path before finally returning sentinel text. The only error
	// returned for well-formed calls is ErrUnsupportedFormat.
	Parse(ctx context.Context, data []byte, ext string) (string, error)
	// IsUnreadable reports whether extracted text carries no usable signal.
	IsUnreadable(text string) bool
}

type normalizer struct {
	agent  gaconfig.AgentConfig
	ocr    bool
	logger *slog.Logger
}

// New creates an evidence normalizer. When ocr is false (no vision-capable
// model configured) the OCR fallback is skipped and low-yield documents go
// straight to sentinel text.
func New(agent gaconfig.AgentConfig, ocr bool, logger *slog.Logger) System {
	return &normalizer{
		agent:  agent,
		ocr:    ocr,
		logger: logger.With("system", "evidence"),
	}
}

func (n *normalizer) IsUnreadable(text string) bool {
	return IsUnreadable(text)
}
