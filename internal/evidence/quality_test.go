package evidence_test

import (
	"testing"

	"github.com/strata-vc/dealdesk/internal/evidence"
)

func TestIsUnreadable(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"empty", "", true},
		{"whitespace only", "   \n\t  ", true},
		{"unreadable sentinel", evidence.SentinelUnreadable, true},
		{"empty file sentinel", evidence.SentinelEmptyFile, true},
		{"minimal text sentinel with detail",
			evidence.SentinelMinimalText + " (12 pages, 40 characters)]", true},
		{"image without ocr sentinel with detail",
			evidence.SentinelImageNoOCR + "; OCR is disabled]", true},
		{"sentinel with leading whitespace", "\n  " + evidence.SentinelUnreadable, true},
		{"real content", "Q3 revenue grew 40% quarter over quarter.", false},
		{"sentinel phrase mid-text is content",
			"The report notes: [Document could not be read] was the prior state.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := evidence.IsUnreadable(tt.text); got != tt.want {
				t.Errorf("IsUnreadable(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
