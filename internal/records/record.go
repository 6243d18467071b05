// Package records implements the diligence record domain: the aggregate
// entity representing one company's evaluation state, and its JSON blob
// persistence. Documents, metrics, notes, and the score are owned
// substructures whose lifetime is bound to the parent record.
package records

import (
	"time"

	"github.com/google/uuid"
)

// Record statuses.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusArchived   = "archived"
)

// MetricSource identifies how a metric value entered the record.
type MetricSource string

const (
	// SourceAuto marks values pulled from the CRM or extracted from
	// documents; they may be overwritten by later pulls.
	SourceAuto MetricSource = "auto"
	// SourceManual marks values set by a human; they are never silently
	// overwritten by auto values.
	SourceManual MetricSource = "manual"
)

// MetricValue is one active value for a named metric slot.
type MetricValue struct {
	Value        string       `json:"value"`
	Source       MetricSource `json:"source"`
	SourceDetail string       `json:"source_detail,omitempty"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IngestStatus classifies the outcome of link ingestion for a document.
type IngestStatus string

const (
	IngestIngested      IngestStatus = "ingested"
	IngestEmailRequired IngestStatus = "email_required"
	IngestFailed        IngestStatus = "failed"
)

// Document is one diligence artifact attached to a record: an uploaded file
// (StorageKey set) or an externally hosted link (ExternalURL set). The
// documents slice is append-only; entries are only mutated to refresh
// extracted text and ingest status on re-ingestion.
type Document struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	Type          string       `json:"type"`
	FileType      string       `json:"file_type,omitempty"`
	StorageKey    string       `json:"storage_key,omitempty"`
	ExternalURL   string       `json:"external_url,omitempty"`
	PageCount     *int         `json:"page_count,omitempty"`
	ExtractedText string       `json:"extracted_text,omitempty"`
	IngestStatus  IngestStatus `json:"ingest_status,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Note categories.
const (
	NoteMarket   = "market"
	NoteTeam     = "team"
	NoteTraction = "traction"
	NoteOther    = "other"
)

// Note is a categorized analyst note feeding scoring context.
type Note struct {
	ID        uuid.UUID `json:"id"`
	Category  string    `json:"category"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoringMode distinguishes a full judgment pass from a fingerprint-served
// no-op.
type ScoringMode string

const (
	ModeFull        ScoringMode = "full"
	ModeIncremental ScoringMode = "incremental"
)

// CriterionScore is the finest scoring granularity.
type CriterionScore struct {
	Name           string   `json:"name"`
	Score          int      `json:"score"`
	ManualOverride *int     `json:"manual_override,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`
	Evidence       []string `json:"evidence,omitempty"`
	Confidence     string   `json:"confidence,omitempty"`
	EvidenceStatus string   `json:"evidence_status,omitempty"`
}

// CategoryScore rolls criteria up into a weighted category contribution.
// WeightedScore is derived: (ManualOverride ?? Score) * Weight / 100.
type CategoryScore struct {
	Category         string           `json:"category"`
	Score            int              `json:"score"`
	ManualOverride   *int             `json:"manual_override,omitempty"`
	Weight           float64          `json:"weight"`
	WeightedScore    float64          `json:"weighted_score"`
	Criteria         []CriterionScore `json:"criteria,omitempty"`
	OverrideReason   string           `json:"override_reason,omitempty"`
	OverriddenAt     *time.Time       `json:"overridden_at,omitempty"`
	SuppressedTopics []string         `json:"suppressed_topics,omitempty"`
}

// EffectiveScore returns the manual override when present, else the AI score.
func (c *CategoryScore) EffectiveScore() int {
	if c.ManualOverride != nil {
		return *c.ManualOverride
	}
	return c.Score
}

// Score is the versioned scoring result for a record.
type Score struct {
	Overall            int             `json:"overall"`
	Categories         []CategoryScore `json:"categories"`
	DataQuality        int             `json:"data_quality"`
	ScoredAt           time.Time       `json:"scored_at"`
	Fingerprint        string          `json:"fingerprint"`
	Mode               ScoringMode     `json:"mode"`
	RescoreExplanation string          `json:"rescore_explanation,omitempty"`
}

// ThesisFit captures the automated thesis-fit judgment for a record.
type ThesisFit struct {
	Verdict  string    `json:"verdict"`
	Bullets  []string  `json:"bullets,omitempty"`
	JudgedAt time.Time `json:"judged_at"`
}

// CRMLink holds the external-system linkage: deal and company ids, a cached
// snapshot of CRM company fields, and the last-pulled stage/pipeline/amount.
// Stage, pipeline, and amount are display cache only; the CRM is the system
// of record for them and they are refreshed on every read when CRM is
// configured.
type CRMLink struct {
	DealID        string            `json:"deal_id,omitempty"`
	CompanyID     string            `json:"company_id,omitempty"`
	Company       map[string]string `json:"company,omitempty"`
	StageID       string            `json:"stage_id,omitempty"`
	StageLabel    string            `json:"stage_label,omitempty"`
	PipelineID    string            `json:"pipeline_id,omitempty"`
	PipelineLabel string            `json:"pipeline_label,omitempty"`
	Amount        string            `json:"amount,omitempty"`
	Priority      string            `json:"priority,omitempty"`
	SyncedAt      time.Time         `json:"synced_at"`
}

// Record is the central aggregate: the sole unit of persistence.
type Record struct {
	ID          string                 `json:"id"`
	Company     string                 `json:"company"`
	URL         string                 `json:"url,omitempty"`
	Description string                 `json:"description,omitempty"`
	Industry    string                 `json:"industry,omitempty"`
	Status      string                 `json:"status"`
	Metrics     map[string]MetricValue `json:"metrics"`
	Documents   []Document             `json:"documents"`
	Notes       []Note                 `json:"categorized_notes"`
	Score       *Score                 `json:"score,omitempty"`
	ThesisFit   *ThesisFit             `json:"thesis_fit,omitempty"`
	CRM         *CRMLink               `json:"crm,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

// FindDocument returns a pointer into Documents by id, or nil.
func (r *Record) FindDocument(id uuid.UUID) *Document {
	for i := range r.Documents {
		if r.Documents[i].ID == id {
			return &r.Documents[i]
		}
	}
	return nil
}

// normalize backfills fields that older persisted records may lack.
// Records written before categorized notes existed have no notes key.
func (r *Record) normalize() {
	if r.Metrics == nil {
		r.Metrics = make(map[string]MetricValue)
	}
	if r.Documents == nil {
		r.Documents = []Document{}
	}
	if r.Notes == nil {
		r.Notes = []Note{}
	}
	if r.Status == "" {
		r.Status = StatusInProgress
	}
}
