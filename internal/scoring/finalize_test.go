package scoring

import (
	"strings"
	"testing"
	"time"

	"github.com/strata-vc/dealdesk/internal/records"
)

func TestAggregate(t *testing.T) {
	t.Run("weighted sum rounds", func(t *testing.T) {
		categories := []records.CategoryScore{
			{Category: "team", Score: 80, Weight: 60},
			{Category: "market", Score: 50, Weight: 40},
		}

		if got := Aggregate(categories); got != 68 {
			t.Errorf("Aggregate = %d, want 68", got)
		}
		if categories[0].WeightedScore != 48 {
			t.Errorf("team weighted = %v, want 48", categories[0].WeightedScore)
		}
		if categories[1].WeightedScore != 20 {
			t.Errorf("market weighted = %v, want 20", categories[1].WeightedScore)
		}
	})

	t.Run("override replaces ai score in the sum", func(t *testing.T) {
		override := 100
		categories := []records.CategoryScore{
			{Category: "team", Score: 80, ManualOverride: &override, Weight: 50},
			{Category: "market", Score: 40, Weight: 50},
		}

		if got := Aggregate(categories); got != 70 {
			t.Errorf("Aggregate = %d, want 70", got)
		}
	})

	t.Run("empty categories", func(t *testing.T) {
		if got := Aggregate(nil); got != 0 {
			t.Errorf("Aggregate(nil) = %d, want 0", got)
		}
	})

	t.Run("rounding at half", func(t *testing.T) {
		categories := []records.CategoryScore{
			{Category: "team", Score: 75, Weight: 50},  // 37.5
			{Category: "market", Score: 50, Weight: 50}, // 25
		}

		// 62.5 rounds up
		if got := Aggregate(categories); got != 63 {
			t.Errorf("Aggregate = %d, want 63", got)
		}
	})
}

func TestCarryOverrides(t *testing.T) {
	override := 90
	criterionOverride := 85
	when := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	previous := &records.Score{
		Categories: []records.CategoryScore{
			{
				Category:         "team",
				Score:            60,
				ManualOverride:   &override,
				OverrideReason:   "founder track record",
				OverriddenAt:     &when,
				SuppressedTopics: []string{"hiring"},
				Criteria: []records.CriterionScore{
					{Name: "founders", Score: 55, ManualOverride: &criterionOverride},
				},
			},
		},
	}

	t.Run("category and criterion overrides survive", func(t *testing.T) {
		fresh := records.CategoryScore{
			Category: "team",
			Score:    72,
			Criteria: []records.CriterionScore{
				{Name: "founders", Score: 70},
				{Name: "completeness", Score: 65},
			},
		}

		carryOverrides(&fresh, previous)

		if fresh.ManualOverride == nil || *fresh.ManualOverride != 90 {
			t.Errorf("category override not carried: %v", fresh.ManualOverride)
		}
		if fresh.OverrideReason != "founder track record" || fresh.OverriddenAt == nil {
			t.Errorf("override metadata not carried: %+v", fresh)
		}
		if fresh.Score != 72 {
			t.Errorf("ai score replaced the fresh judgment: %d", fresh.Score)
		}
		if fresh.Criteria[0].ManualOverride == nil || *fresh.Criteria[0].ManualOverride != 85 {
			t.Errorf("criterion override not carried: %v", fresh.Criteria[0].ManualOverride)
		}
		if fresh.Criteria[1].ManualOverride != nil {
			t.Errorf("override invented for new criterion")
		}
	})

	t.Run("unmatched category untouched", func(t *testing.T) {
		fresh := records.CategoryScore{Category: "market", Score: 40}
		carryOverrides(&fresh, previous)
		if fresh.ManualOverride != nil {
			t.Errorf("override carried across categories")
		}
	})

	t.Run("nil previous", func(t *testing.T) {
		fresh := records.CategoryScore{Category: "team", Score: 40}
		carryOverrides(&fresh, nil)
		if fresh.ManualOverride != nil {
			t.Errorf("override appeared from nil previous score")
		}
	})
}

func TestExplainRescore(t *testing.T) {
	t.Run("reports movement", func(t *testing.T) {
		previous := &records.Score{
			Overall: 60,
			Categories: []records.CategoryScore{
				{Category: "team", Score: 70},
				{Category: "market", Score: 50},
			},
		}
		current := &records.Score{
			Overall: 66,
			Categories: []records.CategoryScore{
				{Category: "team", Score: 80},
				{Category: "market", Score: 50},
			},
		}

		got := explainRescore(previous, current)
		if !strings.Contains(got, "overall 60 -> 66") {
			t.Errorf("missing overall movement: %q", got)
		}
		if !strings.Contains(got, "team 70 -> 80") {
			t.Errorf("missing category movement: %q", got)
		}
		if strings.Contains(got, "market") {
			t.Errorf("unchanged category reported: %q", got)
		}
	})

	t.Run("no movement", func(t *testing.T) {
		score := &records.Score{Overall: 60, Categories: []records.CategoryScore{{Category: "team", Score: 70}}}
		if got := explainRescore(score, score); got != "no score movement" {
			t.Errorf("explainRescore = %q", got)
		}
	})
}
