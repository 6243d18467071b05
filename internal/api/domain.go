package api

import (
	"github.com/strata-vc/dealdesk/internal/crm"
	"github.com/strata-vc/dealdesk/internal/crmsync"
	"github.com/strata-vc/dealdesk/internal/evidence"
	"github.com/strata-vc/dealdesk/internal/feedback"
	"github.com/strata-vc/dealdesk/internal/ingest"
	"github.com/strata-vc/dealdesk/internal/records"
	"github.com/strata-vc/dealdesk/internal/research"
	"github.com/strata-vc/dealdesk/internal/rubric"
	"github.com/strata-vc/dealdesk/internal/scoring"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Records  records.System
	Scoring  scoring.System
	Sync     crmsync.System
	Rubric   rubric.System
	Feedback feedback.System
}

// NewDomain creates all domain systems from the API runtime. Systems are
// built in dependency order: evidence and ingest feed records, records feeds
// scoring, and scoring serves as the rescore hook for the synchronizer. The
// synchronizer is installed back onto records as its read-path overlay.
func NewDomain(runtime *Runtime) *Domain {
	cfg := runtime.Config

	evidenceSystem := evidence.New(
		runtime.Agent,
		!cfg.DisableOCR,
		runtime.Logger,
	)

	gateway := ingest.New(&cfg.Ingest, runtime.Logger)

	recordsSystem := records.New(
		records.NewStore(runtime.Storage),
		runtime.Storage,
		evidenceSystem,
		gateway,
		runtime.Logger,
		runtime.Pagination,
		cfg.API.MaxUploadSizeBytes(),
	)

	rubricSystem := rubric.New(&cfg.Rubric, runtime.Logger)

	scoringSystem := scoring.New(&scoring.Runtime{
		Agent:    runtime.Agent,
		Records:  recordsSystem,
		Rubric:   rubricSystem,
		Evidence: evidenceSystem,
		Gateway:  gateway,
		Research: research.New(&cfg.Research),
		Logger:   runtime.Logger,
	})

	syncSystem := crmsync.New(
		crm.NewClient(&cfg.CRM),
		recordsSystem,
		rubricSystem,
		scoringSystem,
		runtime.Logger,
	)

	// CRM owns stage, pipeline, amount, and priority; record reads overlay
	// the live values through the synchronizer.
	recordsSystem.SetOverlay(syncSystem)

	feedbackSystem := feedback.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	return &Domain{
		Records:  recordsSystem,
		Scoring:  scoringSystem,
		Sync:     syncSystem,
		Rubric:   rubricSystem,
		Feedback: feedbackSystem,
	}
}
