package scoring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/strata-vc/dealdesk/internal/records"
)

func neverUnreadable(string) bool { return false }

func fingerprintRecord() *records.Record {
	return &records.Record{
		ID:      "rec-1",
		Company: "Acme",
		Metrics: map[string]records.MetricValue{
			"arr":            {Value: "$1.2M", Source: records.SourceAuto},
			"funding_amount": {Value: "$5M", Source: records.SourceManual},
		},
		Documents: []records.Document{
			{ID: uuid.New(), Name: "deck.pdf", ExtractedText: "pitch deck text", IngestStatus: records.IngestIngested},
			{ID: uuid.New(), Name: "gated", ExternalURL: "https://example.com", IngestStatus: records.IngestEmailRequired, ExtractedText: "x"},
			{ID: uuid.New(), Name: "empty.pdf", ExtractedText: ""},
		},
		Notes: []records.Note{
			{Category: records.NoteMarket, Body: "large TAM", CreatedAt: time.Now()},
		},
	}
}

func TestCollectFingerprintInputs(t *testing.T) {
	inputs := CollectFingerprintInputs(fingerprintRecord(), neverUnreadable, "v1")

	if len(inputs.DocumentTexts) != 1 || inputs.DocumentTexts[0] != "pitch deck text" {
		t.Errorf("DocumentTexts = %v, want only the ingested readable doc", inputs.DocumentTexts)
	}
	if len(inputs.Metrics) != 2 {
		t.Fatalf("Metrics = %v, want 2 triples", inputs.Metrics)
	}
	// name-sorted triples
	if inputs.Metrics[0] != "arr|$1.2M|auto" || inputs.Metrics[1] != "funding_amount|$5M|manual" {
		t.Errorf("Metrics = %v", inputs.Metrics)
	}
	if len(inputs.Notes) != 1 || inputs.Notes[0] != "market|large TAM" {
		t.Errorf("Notes = %v", inputs.Notes)
	}
	if inputs.RubricVersion != "v1" {
		t.Errorf("RubricVersion = %q", inputs.RubricVersion)
	}
}

func TestCollectFingerprintInputsUnreadable(t *testing.T) {
	unreadable := func(text string) bool { return text == "pitch deck text" }
	inputs := CollectFingerprintInputs(fingerprintRecord(), unreadable, "v1")

	if len(inputs.DocumentTexts) != 0 {
		t.Errorf("unreadable doc included: %v", inputs.DocumentTexts)
	}
}

func TestFingerprintStability(t *testing.T) {
	a := CollectFingerprintInputs(fingerprintRecord(), neverUnreadable, "v1")
	b := CollectFingerprintInputs(fingerprintRecord(), neverUnreadable, "v1")

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("identical inputs produced different fingerprints")
	}
}

func TestFingerprintChanges(t *testing.T) {
	base := Fingerprint(CollectFingerprintInputs(fingerprintRecord(), neverUnreadable, "v1"))

	t.Run("metric change", func(t *testing.T) {
		r := fingerprintRecord()
		r.Metrics["arr"] = records.MetricValue{Value: "$2M", Source: records.SourceAuto}
		if Fingerprint(CollectFingerprintInputs(r, neverUnreadable, "v1")) == base {
			t.Error("metric change did not move the fingerprint")
		}
	})

	t.Run("note change", func(t *testing.T) {
		r := fingerprintRecord()
		r.Notes = append(r.Notes, records.Note{Category: records.NoteTeam, Body: "strong founders"})
		if Fingerprint(CollectFingerprintInputs(r, neverUnreadable, "v1")) == base {
			t.Error("note change did not move the fingerprint")
		}
	})

	t.Run("rubric version change", func(t *testing.T) {
		r := fingerprintRecord()
		if Fingerprint(CollectFingerprintInputs(r, neverUnreadable, "v2")) == base {
			t.Error("rubric version change did not move the fingerprint")
		}
	})

	t.Run("document text change", func(t *testing.T) {
		r := fingerprintRecord()
		r.Documents[0].ExtractedText = "revised deck"
		if Fingerprint(CollectFingerprintInputs(r, neverUnreadable, "v1")) == base {
			t.Error("document change did not move the fingerprint")
		}
	})
}
