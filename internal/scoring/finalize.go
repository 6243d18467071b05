package scoring

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/strata-vc/dealdesk/internal/records"
)

// FinalizeNode returns the state node that aggregates judged scores into a
// persisted DiligenceScore, carrying manual overrides forward from the
// previous score.
func FinalizeNode(rt *Runtime) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		assembled, err := extractContext(s)
		if err != nil {
			return s, fmt.Errorf("finalize: %w", err)
		}

		judged, err := extractJudgment(s)
		if err != nil {
			return s, fmt.Errorf("finalize: %w", err)
		}

		score, err := finalize(ctx, rt, assembled, judged)
		if err != nil {
			return s, fmt.Errorf("finalize: %w", err)
		}

		updated, err := rt.Records.Mutate(ctx, assembled.Record.ID, func(r *records.Record) error {
			r.Score = score
			return nil
		})
		if err != nil {
			return s, fmt.Errorf("finalize: %w", err)
		}

		rt.Logger.InfoContext(
			ctx, "finalize node complete",
			"record", updated.ID,
			"overall", score.Overall,
			"mode", score.Mode,
		)

		s = s.Set(KeyScore, ScoreResult{Record: updated, Mode: records.ModeFull})
		return s, nil
	})
}

func finalize(ctx context.Context, rt *Runtime, assembled *Context, judged *judgment) (*records.Score, error) {
	rubricCategories, err := rt.Rubric.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: rubric: %w", ErrFinalizeFailed, err)
	}

	weights := make(map[string]float64, len(rubricCategories))
	for _, category := range rubricCategories {
		weights[category.Name] = category.Weight
	}

	previous := assembled.Record.Score

	categories := make([]records.CategoryScore, 0, len(judged.Categories))
	for _, j := range judged.Categories {
		weight, ok := weights[j.Category]
		if !ok {
			rt.Logger.Warn("judged category not in rubric", "category", j.Category)
		}

		category := records.CategoryScore{
			Category: j.Category,
			Score:    j.Score,
			Weight:   weight,
			Criteria: make([]records.CriterionScore, 0, len(j.Criteria)),
		}

		for _, c := range j.Criteria {
			category.Criteria = append(category.Criteria, records.CriterionScore{
				Name:           c.Name,
				Score:          c.Score,
				Reasoning:      c.Reasoning,
				Evidence:       c.Evidence,
				Confidence:     c.Confidence,
				EvidenceStatus: c.EvidenceStatus,
			})
		}

		carryOverrides(&category, previous)
		categories = append(categories, category)
	}

	score := &records.Score{
		Overall:     Aggregate(categories),
		Categories:  categories,
		DataQuality: judged.DataQuality,
		ScoredAt:    time.Now().UTC(),
		Fingerprint: assembled.Fingerprint,
		Mode:        records.ModeFull,
	}

	if previous != nil {
		score.RescoreExplanation = explainRescore(previous, score)
	}
	return score, nil
}

// carryOverrides copies manual overrides from the previous score onto the
// freshly judged category. AI scores are replaced; human decisions survive a
// rescore until explicitly removed.
func carryOverrides(category *records.CategoryScore, previous *records.Score) {
	if previous == nil {
		return
	}

	for _, old := range previous.Categories {
		if old.Category != category.Category {
			continue
		}

		category.ManualOverride = old.ManualOverride
		category.OverrideReason = old.OverrideReason
		category.OverriddenAt = old.OverriddenAt
		category.SuppressedTopics = old.SuppressedTopics

		for i := range category.Criteria {
			for _, oldCriterion := range old.Criteria {
				if oldCriterion.Name == category.Criteria[i].Name {
					category.Criteria[i].ManualOverride = oldCriterion.ManualOverride
				}
			}
		}
		return
	}
}

// Aggregate computes the weighted overall score and stamps each category's
// weighted contribution: weighted = (override ?? score) * weight / 100,
// overall = round(sum).
func Aggregate(categories []records.CategoryScore) int {
	var sum float64
	for i := range categories {
		categories[i].WeightedScore = float64(categories[i].EffectiveScore()) * categories[i].Weight / 100
		sum += categories[i].WeightedScore
	}
	return int(math.Round(sum))
}

// explainRescore describes score movement between passes.
func explainRescore(previous, current *records.Score) string {
	var parts []string
	if previous.Overall != current.Overall {
		parts = append(parts, fmt.Sprintf("overall %d -> %d", previous.Overall, current.Overall))
	}

	old := make(map[string]int, len(previous.Categories))
	for _, category := range previous.Categories {
		old[category.Category] = category.Score
	}

	for _, category := range current.Categories {
		before, ok := old[category.Category]
		if ok && before != category.Score {
			parts = append(parts, fmt.Sprintf("%s %d -> %d", category.Category, before, category.Score))
		}
	}

	if len(parts) == 0 {
		return "no score movement"
	}
	return strings.Join(parts, "; ")
}
