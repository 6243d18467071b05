package evidence

import "strings"

// Sentinel strings emitted by the normalizer when extraction cannot produce
// usable text. Downstream consumers must treat these as "no evidence", never
// as content. IsUnreadable is the single authority for that decision.
const (
	SentinelUnreadable  = "[Document could not be read]"
	SentinelEmptyFile   = "[Empty file]"
	SentinelMinimalText = "[PDF was parsed but contains minimal extractable text"
	SentinelImageNoOCR  = "[Image document: no text could be extracted"
)

var sentinelPrefixes = []string{
	SentinelUnreadable,
	SentinelEmptyFile,
	SentinelMinimalText,
	SentinelImageNoOCR,
}

// IsUnreadable reports whether extracted text carries no usable signal:
// empty output or one of the fixed sentinel phrases. Every consumer of
// extracted text (upload, folder sync, scoring context assembly) must gate on
// this predicate rather than re-implementing its own check.
func IsUnreadable(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}

	for _, prefix := range sentinelPrefixes {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}

	return false
}
