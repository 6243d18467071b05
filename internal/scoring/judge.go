package scoring

import (
	"context"
	"fmt"

	"github.com/JaimeStill/go-agents/pkg/agent"

	"github.com/strata-vc/dealdesk/pkg/formatting"
)

const judgeInstructions = `You are evaluating a venture investment opportunity against a weighted rubric.
Score every rubric category 0-100 with per-criterion scores, reasoning, and
direct evidence quotes from the supplied material. Rate your confidence per
criterion (high, medium, low) and whether the evidence was sufficient
(sufficient, partial, insufficient). Also rate overall data quality 0-100.
Respond with a fenced JSON object:
{
  "data_quality": 0,
  "categories": [{
    "category": "", "score": 0,
    "criteria": [{
      "name": "", "score": 0, "reasoning": "",
      "evidence": [""], "confidence": "", "evidence_status": ""
    }]
  }]
}`

const thesisInstructions = `You are judging whether a venture investment opportunity fits an early-stage
B2B-focused investment thesis. Respond with a fenced JSON object:
{"verdict": "on_thesis|mixed|off_thesis", "bullets": ["", ""]}`

// judgment is the parsed agent output of a scoring pass.
type judgment struct {
	DataQuality int              `json:"data_quality"`
	Categories  []judgedCategory `json:"categories"`
}

type judgedCategory struct {
	Category string            `json:"category"`
	Score    int               `json:"score"`
	Criteria []judgedCriterion `json:"criteria"`
}

type judgedCriterion struct {
	Name           string   `json:"name"`
	Score          int      `json:"score"`
	Reasoning      string   `json:"reasoning"`
	Evidence       []string `json:"evidence"`
	Confidence     string   `json:"confidence"`
	EvidenceStatus string   `json:"evidence_status"`
}

type thesisJudgment struct {
	Verdict string   `json:"verdict"`
	Bullets []string `json:"bullets"`
}

// judge sends the assembled context to the agent and parses the structured
// category scores from its response.
func judge(ctx context.Context, rt *Runtime, assembled *Context) (*judgment, error) {
	categories, err := rt.Rubric.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: rubric: %w", ErrJudgeFailed, err)
	}

	prompts := make([]categoryPrompt, 0, len(categories))
	for _, category := range categories {
		prompts = append(prompts, categoryPrompt{
			Name:     category.Name,
			Weight:   category.Weight,
			Criteria: category.Criteria,
		})
	}

	a, err := agent.New(&rt.Agent)
	if err != nil {
		return nil, fmt.Errorf("%w: create agent: %w", ErrJudgeFailed, err)
	}

	prompt := judgeInstructions + "\n\n" + assembled.prompt(prompts)
	resp, err := a.Chat(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: chat call: %w", ErrJudgeFailed, err)
	}

	parsed, err := formatting.Parse[judgment](resp.Content())
	if err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrJudgeFailed, err)
	}

	for _, category := range parsed.Categories {
		if category.Score < 0 || category.Score > 100 {
			return nil, fmt.Errorf("%w: category %s score %d out of range",
				ErrJudgeFailed, category.Category, category.Score)
		}
	}
	return &parsed, nil
}

// judgeThesis runs the thesis-fit judgment over the same assembled context.
func judgeThesis(ctx context.Context, rt *Runtime, assembled *Context) (*thesisJudgment, error) {
	a, err := agent.New(&rt.Agent)
	if err != nil {
		return nil, fmt.Errorf("%w: create agent: %w", ErrJudgeFailed, err)
	}

	prompt := thesisInstructions + "\n\n" + assembled.prompt(nil)
	resp, err := a.Chat(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: chat call: %w", ErrJudgeFailed, err)
	}

	parsed, err := formatting.Parse[thesisJudgment](resp.Content())
	if err != nil {
		return nil, fmt.Errorf("%w: parse response: %w", ErrJudgeFailed, err)
	}

	switch parsed.Verdict {
	case "on_thesis", "mixed", "off_thesis":
	default:
		return nil, fmt.Errorf("%w: unknown verdict %q", ErrJudgeFailed, parsed.Verdict)
	}
	return &parsed, nil
}
