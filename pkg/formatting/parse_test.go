package formatting_test

import (
	"errors"
	"testing"

	"github.com/strata-vc/dealdesk/pkg/formatting"
)

type verdict struct {
	Verdict string   `json:"verdict"`
	Bullets []string `json:"bullets"`
}

func TestParse(t *testing.T) {
	t.Run("direct json", func(t *testing.T) {
		got, err := formatting.Parse[verdict](`{"verdict":"strong_fit","bullets":["team"]}`)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got.Verdict != "strong_fit" || len(got.Bullets) != 1 {
			t.Errorf("got = %+v", got)
		}
	})

	t.Run("fenced json with prose", func(t *testing.T) {
		content := "Here is my assessment:\n```json\n{\"verdict\":\"weak_fit\",\"bullets\":[]}\n```\nLet me know."
		got, err := formatting.Parse[verdict](content)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got.Verdict != "weak_fit" {
			t.Errorf("got = %+v", got)
		}
	})

	t.Run("fence without language tag", func(t *testing.T) {
		content := "```\n{\"verdict\":\"fit\"}\n```"
		got, err := formatting.Parse[verdict](content)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if got.Verdict != "fit" {
			t.Errorf("got = %+v", got)
		}
	})

	t.Run("unparseable content", func(t *testing.T) {
		_, err := formatting.Parse[verdict]("I cannot answer that.")
		if !errors.Is(err, formatting.ErrParseFailed) {
			t.Errorf("err = %v, want ErrParseFailed", err)
		}
	})
}
