package scoring

import (
	"context"
	"fmt"
	"strings"

	"github.com/strata-vc/dealdesk/internal/ingest"
	"github.com/strata-vc/dealdesk/internal/records"
)

// maxContextChars bounds the total evidence text handed to the judgment
// agent.
const maxContextChars = 120_000

// Context is the assembled evidence handed to the judgment agent, plus the
// bookkeeping the finalize node needs.
type Context struct {
	Record      *records.Record
	Fingerprint string
	Documents   []documentEvidence
	Metrics     []string
	Notes       []string
	Research    string
	Excluded    int
}

type documentEvidence struct {
	Name string
	Text string
}

// assemble builds the judgment context for a record. Link documents whose
// stored text fails the low-quality heuristic are re-resolved through the
// ingestion gateway first, so stale gated fetches get another chance before
// scoring. Unreadable documents are excluded and counted toward the data
// quality signal.
func assemble(ctx context.Context, rt *Runtime, r *records.Record) (*Context, error) {
	r = reingestLinks(ctx, rt, r)

	version, err := rt.Rubric.Version(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: rubric version: %w", ErrAssembleFailed, err)
	}

	inputs := CollectFingerprintInputs(r, rt.Evidence.IsUnreadable, version)

	assembled := &Context{
		Record:      r,
		Fingerprint: Fingerprint(inputs),
		Metrics:     inputs.Metrics,
		Notes:       inputs.Notes,
	}

	budget := maxContextChars
	for _, doc := range r.Documents {
		if doc.ExtractedText == "" || rt.Evidence.IsUnreadable(doc.ExtractedText) {
			assembled.Excluded++
			continue
		}

		text := doc.ExtractedText
		if len(text) > budget {
			text = text[:budget]
		}
		budget -= len(text)

		assembled.Documents = append(assembled.Documents, documentEvidence{
			Name: doc.Name,
			Text: text,
		})
		if budget == 0 {
			break
		}
	}

	assembled.Research = gatherResearch(ctx, rt, r)
	return assembled, nil
}

// reingestLinks retries ingestion for link documents whose stored text is
// low quality. Failures leave the document as-is; the retry is best-effort.
func reingestLinks(ctx context.Context, rt *Runtime, r *records.Record) *records.Record {
	var retried bool
	for _, doc := range r.Documents {
		if doc.ExternalURL == "" || !ingest.LowQuality(doc.ExtractedText, doc.ExternalURL) {
			continue
		}

		resolved, err := rt.Gateway.Resolve(ctx, doc.ExternalURL, "")
		if err != nil || resolved.Status != ingest.StatusIngested {
			continue
		}

		updated, err := rt.Records.Mutate(ctx, r.ID, func(rec *records.Record) error {
			target := rec.FindDocument(doc.ID)
			if target == nil {
				return nil
			}
			target.ExtractedText = resolved.Text
			target.IngestStatus = records.IngestIngested
			return nil
		})
		if err != nil {
			rt.Logger.Warn("link re-ingestion persist failed", "record", r.ID, "document", doc.ID, "error", err)
			continue
		}

		r = updated
		retried = true
	}

	if retried {
		rt.Logger.Info("re-ingested low quality links", "record", r.ID)
	}
	return r
}

// gatherResearch fetches external context when the research collaborator is
// configured. Failure degrades to scoring without research.
func gatherResearch(ctx context.Context, rt *Runtime, r *records.Record) string {
	if rt.Research == nil || !rt.Research.Configured() {
		return ""
	}

	hits, err := rt.Research.Search(ctx, r.Company+" startup funding")
	if err != nil {
		rt.Logger.Warn("research search failed", "record", r.ID, "error", err)
		return ""
	}

	var b strings.Builder
	for i, hit := range hits {
		if i >= 5 {
			break
		}
		fmt.Fprintf(&b, "- %s (%s): %s\n", hit.Title, hit.Link, hit.Snippet)
	}
	return b.String()
}

// prompt renders the assembled context as the judgment prompt body.
func (c *Context) prompt(categories []categoryPrompt) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Company: %s\n", c.Record.Company)
	if c.Record.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", c.Record.Description)
	}
	if c.Record.Industry != "" {
		fmt.Fprintf(&b, "Industry: %s\n", c.Record.Industry)
	}

	if len(c.Metrics) > 0 {
		b.WriteString("\n## Metrics\n")
		for _, metric := range c.Metrics {
			fmt.Fprintf(&b, "- %s\n", metric)
		}
	}

	if len(c.Notes) > 0 {
		b.WriteString("\n## Analyst notes\n")
		for _, note := range c.Notes {
			fmt.Fprintf(&b, "- %s\n", note)
		}
	}

	if c.Research != "" {
		b.WriteString("\n## External research\n")
		b.WriteString(c.Research)
	}

	for _, doc := range c.Documents {
		fmt.Fprintf(&b, "\n## Document: %s\n%s\n", doc.Name, doc.Text)
	}

	b.WriteString("\n## Rubric\n")
	for _, category := range categories {
		fmt.Fprintf(&b, "- %s (weight %g): %s\n",
			category.Name, category.Weight, strings.Join(category.Criteria, ", "))
	}

	return b.String()
}

type categoryPrompt struct {
	Name     string
	Weight   float64
	Criteria []string
}
