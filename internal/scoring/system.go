// Package scoring implements the diligence score orchestrator: evidence
// context assembly, the agent judgment pass, weighted aggregation, manual
// overrides, and fingerprint-based rescore invalidation.
package scoring

import (
	"context"
	"log/slog"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/strata-vc/dealdesk/internal/evidence"
	"github.com/strata-vc/dealdesk/internal/ingest"
	"github.com/strata-vc/dealdesk/internal/records"
	"github.com/strata-vc/dealdesk/internal/research"
	"github.com/strata-vc/dealdesk/internal/rubric"
)

// OverrideCommand sets a manual override at category granularity, or at
// criterion granularity when Criterion is non-empty.
type OverrideCommand struct {
	Criterion      string   `json:"criterion,omitempty"`
	Score          int      `json:"score"`
	Reason         string   `json:"reason,omitempty"`
	SuppressTopics []string `json:"suppress_topics,omitempty"`
}

// ScoreResult pairs the updated record with the mode the request was served
// in: full when the judgment pass ran, incremental when the fingerprint was
// unchanged and the existing score was reused.
type ScoreResult struct {
	Record *records.Record     `json:"record"`
	Mode   records.ScoringMode `json:"mode"`
}

// System defines the public contract for scoring operations.
type System interface {
	Handler() *Handler

	// Score runs a scoring pass. When force is false and the evidence
	// fingerprint matches the stored score, the pass is served as an
	// incremental no-op without invoking the judgment agent.
	Score(ctx context.Context, id string, force bool) (*ScoreResult, error)

	SetOverride(ctx context.Context, id, category string, cmd OverrideCommand) (*records.Record, error)
	RemoveOverride(ctx context.Context, id, category, criterion string) (*records.Record, error)

	// ThesisFit runs the thesis-fit judgment and stores the verdict.
	ThesisFit(ctx context.Context, id string) (*records.Record, error)

	// TriggerRescore starts a detached best-effort scoring pass. Failures
	// are logged, never returned.
	TriggerRescore(id string)
}

// Runtime bundles the dependencies that scoring workflow nodes require.
type Runtime struct {
	Agent    gaconfig.AgentConfig
	Records  records.System
	Rubric   rubric.System
	Evidence evidence.System
	Gateway  ingest.System
	Research research.System
	Logger   *slog.Logger
}
