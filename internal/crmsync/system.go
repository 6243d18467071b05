// Package crmsync implements write-through synchronization between local
// diligence records and the external CRM. The CRM owns stage, pipeline,
// amount, and priority; local mutations to those fields persist only after
// the corresponding CRM write succeeds. Each field commits independently:
// one failed write never rolls back another that already committed.
package crmsync

import (
	"context"

	"github.com/strata-vc/dealdesk/internal/crm"
	"github.com/strata-vc/dealdesk/internal/metrics"
	"github.com/strata-vc/dealdesk/internal/records"
)

// LinkStatus classifies the outcome of an auto-link attempt.
type LinkStatus string

const (
	LinkLinked        LinkStatus = "linked"
	LinkNoMatch       LinkStatus = "no_match"
	LinkAmbiguous     LinkStatus = "ambiguous"
	LinkAlreadyLinked LinkStatus = "already_linked"
)

// AutoLinkResult reports an auto-link attempt. Candidates carries the match
// count when the outcome is ambiguous.
type AutoLinkResult struct {
	Status     LinkStatus      `json:"status"`
	Candidates int             `json:"candidates,omitempty"`
	Record     *records.Record `json:"record,omitempty"`
}

// FieldResult reports the outcome of one field within a company update.
// Committed fields reached both the CRM and the local record; failed fields
// carry the error and leave both sides untouched.
type FieldResult struct {
	Field     string            `json:"field"`
	Committed bool              `json:"committed"`
	Path      metrics.WritePath `json:"path,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// StageCommand sets the deal stage, optionally moving pipelines.
type StageCommand struct {
	StageID    string `json:"stage_id"`
	PipelineID string `json:"pipeline_id,omitempty"`
}

// CreateCommand carries caller-supplied property overrides for creating a
// CRM company and deal from a local record. Legacy fields hold values under
// alternate names from older clients; they rank below the explicit overrides
// in the resolution chain.
type CreateCommand struct {
	CompanyProperties map[string]string `json:"company_properties,omitempty"`
	DealProperties    map[string]string `json:"deal_properties,omitempty"`
	Priority          string            `json:"priority,omitempty"`
	LegacyPriority    string            `json:"deal_priority,omitempty"`
	Metrics           map[string]string `json:"metrics,omitempty"`
	LegacyMetrics     map[string]string `json:"metric_overrides,omitempty"`
}

// Rescorer triggers a best-effort background rescore after linkage changes.
// Failures are logged by the implementation, never surfaced to the caller.
type Rescorer interface {
	TriggerRescore(id string)
}

// System defines the public contract for CRM synchronization operations.
type System interface {
	Handler() *Handler

	// Overlay refreshes the in-memory record with live CRM stage, pipeline,
	// amount, priority, and company snapshot. Nothing is persisted.
	Overlay(ctx context.Context, r *records.Record) error

	SetStage(ctx context.Context, id string, cmd StageCommand) (*records.Record, error)
	SetPriority(ctx context.Context, id, priority string) (*records.Record, error)
	UpdateCompanyFields(ctx context.Context, id string, fields map[string]string) ([]FieldResult, error)

	AutoLink(ctx context.Context, id string) (*AutoLinkResult, error)
	CreateInCRM(ctx context.Context, id string, cmd CreateCommand) (*records.Record, error)

	ListPipelines(ctx context.Context) ([]crm.Pipeline, error)
}
