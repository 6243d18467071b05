package ingest

import (
	"regexp"
	"strings"
)

// minUsableLength is the shortest extracted text accepted as real content.
const minUsableLength = 80

var boilerplatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(404|403)\b`),
	regexp.MustCompile(`(?i)page not found`),
	regexp.MustCompile(`(?i)access denied`),
	regexp.MustCompile(`(?i)please enable javascript`),
	regexp.MustCompile(`(?i)checking your browser`),
	regexp.MustCompile(`(?i)just a moment`),
	regexp.MustCompile(`(?i)^\s*privacy policy\s*$`),
	regexp.MustCompile(`(?i)this site uses cookies`),
}

// LowQuality reports whether extracted link content should be rejected and
// re-ingested on the next scoring pass: empty or near-empty text, known
// error/privacy boilerplate, or the bare placeholder a failed ingestion
// leaves behind.
func LowQuality(text, url string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}
	if trimmed == "External document link: "+url {
		return true
	}
	if len(trimmed) < minUsableLength {
		return true
	}

	for _, pattern := range boilerplatePatterns {
		if pattern.MatchString(trimmed) {
			return true
		}
	}

	return false
}
