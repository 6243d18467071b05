package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/strata-vc/dealdesk/internal/records"
)

// FingerprintInputs is the canonical list of inputs that feed a scoring
// pass. Anything that can change a score must be represented here: an input
// missing from the fingerprint is a silent staleness bug.
type FingerprintInputs struct {
	DocumentTexts []string
	Metrics       []string
	Notes         []string
	RubricVersion string
}

// CollectFingerprintInputs derives the fingerprint inputs from a record.
// Document texts include only ingested, readable documents, the same set
// the judgment context uses. Metrics are name|value|source triples in name
// order; notes are category|body in record order.
func CollectFingerprintInputs(r *records.Record, unreadable func(string) bool, rubricVersion string) FingerprintInputs {
	inputs := FingerprintInputs{RubricVersion: rubricVersion}

	for _, doc := range r.Documents {
		if doc.IngestStatus != records.IngestIngested && doc.IngestStatus != "" {
			continue
		}
		if doc.ExtractedText == "" || unreadable(doc.ExtractedText) {
			continue
		}
		inputs.DocumentTexts = append(inputs.DocumentTexts, doc.ExtractedText)
	}

	names := make([]string, 0, len(r.Metrics))
	for name := range r.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		value := r.Metrics[name]
		inputs.Metrics = append(inputs.Metrics,
			fmt.Sprintf("%s|%s|%s", name, value.Value, value.Source))
	}

	for _, note := range r.Notes {
		inputs.Notes = append(inputs.Notes,
			fmt.Sprintf("%s|%s", note.Category, note.Body))
	}

	return inputs
}

// Fingerprint hashes the inputs into a stable hex digest.
func Fingerprint(inputs FingerprintInputs) string {
	h := sha256.New()

	for _, text := range inputs.DocumentTexts {
		fmt.Fprintf(h, "doc:%d:%s\n", len(text), text)
	}
	for _, metric := range inputs.Metrics {
		fmt.Fprintf(h, "metric:%s\n", metric)
	}
	for _, note := range inputs.Notes {
		fmt.Fprintf(h, "note:%s\n", note)
	}
	fmt.Fprintf(h, "rubric:%s\n", inputs.RubricVersion)

	return hex.EncodeToString(h.Sum(nil))
}
