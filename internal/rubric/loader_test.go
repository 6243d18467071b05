package rubric

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestLoaderCategories(t *testing.T) {
	t.Run("groups criteria under repeated category rows", func(t *testing.T) {
		path := writeCSV(t, "categories.csv", `category,weight,criterion
team,40,founder_experience
team,40,domain_expertise
market,60,market_size
`)
		l := newLoader(&Config{CategoriesSource: path})

		categories, err := l.categories(context.Background())
		if err != nil {
			t.Fatalf("categories: %v", err)
		}
		if len(categories) != 2 {
			t.Fatalf("categories = %+v", categories)
		}

		team := categories[0]
		if team.Name != "team" || team.Weight != 40 || len(team.Criteria) != 2 {
			t.Errorf("team = %+v", team)
		}
		market := categories[1]
		if market.Name != "market" || market.Weight != 60 || len(market.Criteria) != 1 {
			t.Errorf("market = %+v", market)
		}
	})

	t.Run("invalid weight", func(t *testing.T) {
		path := writeCSV(t, "categories.csv", "team,heavy,founder_experience\n")
		l := newLoader(&Config{CategoriesSource: path})

		if _, err := l.categories(context.Background()); err == nil {
			t.Error("expected error for non-numeric weight")
		}
	})

	t.Run("empty source is an error", func(t *testing.T) {
		path := writeCSV(t, "categories.csv", "category,weight,criterion\n")
		l := newLoader(&Config{CategoriesSource: path})

		if _, err := l.categories(context.Background()); err == nil {
			t.Error("expected error for empty rubric")
		}
	})

	t.Run("no source yields built-in defaults", func(t *testing.T) {
		l := newLoader(&Config{})

		categories, err := l.categories(context.Background())
		if err != nil {
			t.Fatalf("categories: %v", err)
		}
		if total := weightSum(categories); total != 100 {
			t.Errorf("default weights sum to %g", total)
		}
	})
}

func TestLoaderFields(t *testing.T) {
	t.Run("parses mappings and skips blank metrics", func(t *testing.T) {
		path := writeCSV(t, "fields.csv", `metric,deal_property,company_property
funding_amount,amount,total_money_raised
arr,,annualrecurringrevenue
,ignored,ignored
`)
		l := newLoader(&Config{FieldsSource: path})

		fields, err := l.fields(context.Background())
		if err != nil {
			t.Fatalf("fields: %v", err)
		}
		if len(fields) != 2 {
			t.Fatalf("fields = %+v", fields)
		}
		if got := fields["funding_amount"]; got.DealProperty != "amount" || got.CompanyProperty != "total_money_raised" {
			t.Errorf("funding_amount = %+v", got)
		}
		if got := fields["arr"]; got.DealProperty != "" || got.CompanyProperty != "annualrecurringrevenue" {
			t.Errorf("arr = %+v", got)
		}
	})

	t.Run("no source yields built-in registry", func(t *testing.T) {
		l := newLoader(&Config{})

		fields, err := l.fields(context.Background())
		if err != nil {
			t.Fatalf("fields: %v", err)
		}
		if _, ok := fields["funding_amount"]; !ok {
			t.Errorf("default registry missing funding_amount: %+v", fields)
		}
	})
}

func TestVersionTracksContent(t *testing.T) {
	ctx := context.Background()
	path := writeCSV(t, "categories.csv", "team,100,founder_experience\n")

	cfg := &Config{CategoriesSource: path, CacheTTL: "10m"}
	sys := New(cfg, slog.Default())

	v1, err := sys.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	v1again, _ := sys.Version(ctx)
	if v1 != v1again {
		t.Errorf("version unstable: %q vs %q", v1, v1again)
	}

	// Changing the rubric and busting the cache must move the version.
	if err := os.WriteFile(path, []byte("team,100,founder_experience\nteam,100,domain_expertise\n"), 0o600); err != nil {
		t.Fatalf("rewrite csv: %v", err)
	}
	sys.Refresh()

	v2, err := sys.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v1 == v2 {
		t.Error("version unchanged after rubric edit")
	}
}
