package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/strata-vc/dealdesk/internal/records"
)

// rescoreTimeout bounds detached background passes, which have no request
// context to cancel them.
const rescoreTimeout = 5 * time.Minute

type orchestrator struct {
	rt *Runtime
}

// New creates the scoring system over the given runtime.
func New(rt *Runtime) System {
	rt.Logger = rt.Logger.With("system", "scoring")
	return &orchestrator{rt: rt}
}

func (o *orchestrator) Handler() *Handler {
	return NewHandler(o, o.rt.Logger)
}

func (o *orchestrator) Score(ctx context.Context, id string, force bool) (*ScoreResult, error) {
	r, err := o.rt.Records.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !force && r.Score != nil {
		version, err := o.rt.Rubric.Version(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: rubric version: %w", ErrAssembleFailed, err)
		}

		inputs := CollectFingerprintInputs(r, o.rt.Evidence.IsUnreadable, version)
		if Fingerprint(inputs) == r.Score.Fingerprint {
			// Evidence unchanged since the last pass; serve the stored
			// score without invoking the agent.
			updated, err := o.rt.Records.Mutate(ctx, id, func(r *records.Record) error {
				r.Score.Mode = records.ModeIncremental
				return nil
			})
			if err != nil {
				return nil, err
			}
			return &ScoreResult{Record: updated, Mode: records.ModeIncremental}, nil
		}
	}

	return execute(ctx, o.rt, id)
}

func (o *orchestrator) SetOverride(ctx context.Context, id, category string, cmd OverrideCommand) (*records.Record, error) {
	if cmd.Score < 0 || cmd.Score > 100 {
		return nil, fmt.Errorf("%w: score %d outside 0-100", ErrInvalidOverride, cmd.Score)
	}

	return o.rt.Records.Mutate(ctx, id, func(r *records.Record) error {
		target, err := findCategory(r, category)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if cmd.Criterion != "" {
			criterion := findCriterion(target, cmd.Criterion)
			if criterion == nil {
				return fmt.Errorf("%w: unknown criterion %q", ErrInvalidOverride, cmd.Criterion)
			}
			score := cmd.Score
			criterion.ManualOverride = &score
		} else {
			score := cmd.Score
			target.ManualOverride = &score
			target.OverrideReason = cmd.Reason
			target.OverriddenAt = &now
			target.SuppressedTopics = cmd.SuppressTopics
		}

		r.Score.Overall = Aggregate(r.Score.Categories)
		return nil
	})
}

func (o *orchestrator) RemoveOverride(ctx context.Context, id, category, criterion string) (*records.Record, error) {
	return o.rt.Records.Mutate(ctx, id, func(r *records.Record) error {
		target, err := findCategory(r, category)
		if err != nil {
			return err
		}

		if criterion != "" {
			c := findCriterion(target, criterion)
			if c == nil {
				return fmt.Errorf("%w: unknown criterion %q", ErrInvalidOverride, criterion)
			}
			c.ManualOverride = nil
		} else {
			target.ManualOverride = nil
			target.OverrideReason = ""
			target.OverriddenAt = nil
			target.SuppressedTopics = nil
		}

		r.Score.Overall = Aggregate(r.Score.Categories)
		return nil
	})
}

func (o *orchestrator) ThesisFit(ctx context.Context, id string) (*records.Record, error) {
	r, err := o.rt.Records.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	assembled, err := assemble(ctx, o.rt, r)
	if err != nil {
		return nil, err
	}

	verdict, err := judgeThesis(ctx, o.rt, assembled)
	if err != nil {
		return nil, err
	}

	return o.rt.Records.Mutate(ctx, id, func(r *records.Record) error {
		r.ThesisFit = &records.ThesisFit{
			Verdict:  verdict.Verdict,
			Bullets:  verdict.Bullets,
			JudgedAt: time.Now().UTC(),
		}
		return nil
	})
}

// TriggerRescore runs a detached scoring pass. The caller is never blocked
// and never sees the outcome; failures are logged only.
func (o *orchestrator) TriggerRescore(id string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), rescoreTimeout)
		defer cancel()

		if _, err := o.Score(ctx, id, false); err != nil {
			o.rt.Logger.Warn("background rescore failed", "record", id, "error", err)
		}
	}()
}

func findCategory(r *records.Record, category string) (*records.CategoryScore, error) {
	if r.Score == nil {
		return nil, ErrNotScored
	}
	for i := range r.Score.Categories {
		if r.Score.Categories[i].Category == category {
			return &r.Score.Categories[i], nil
		}
	}
	return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidOverride, category)
}

func findCriterion(category *records.CategoryScore, name string) *records.CriterionScore {
	for i := range category.Criteria {
		if category.Criteria[i].Name == name {
			return &category.Criteria[i]
		}
	}
	return nil
}
