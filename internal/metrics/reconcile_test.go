package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strata-vc/dealdesk/internal/metrics"
	"github.com/strata-vc/dealdesk/internal/records"
)

func TestReconcile(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	manual := records.MetricValue{
		Value:  "$5M",
		Source: records.SourceManual,
	}
	auto := records.MetricValue{
		Value:  "$2M",
		Source: records.SourceAuto,
	}

	t.Run("manual slot never overwritten", func(t *testing.T) {
		local := map[string]records.MetricValue{"funding_amount": manual}
		pulled := map[string]string{"funding_amount": "$9M"}

		merged, changed := metrics.Reconcile(local, pulled, "crm_pull", now)

		if len(changed) != 0 {
			t.Fatalf("changed = %v, want empty", changed)
		}
		if merged["funding_amount"].Value != "$5M" {
			t.Errorf("manual value overwritten: %q", merged["funding_amount"].Value)
		}
	})

	t.Run("pulled value fills empty slot", func(t *testing.T) {
		merged, changed := metrics.Reconcile(nil, map[string]string{"arr": "$1.2M"}, "crm_pull", now)

		if len(changed) != 1 || changed[0] != "arr" {
			t.Fatalf("changed = %v, want [arr]", changed)
		}
		got := merged["arr"]
		if got.Value != "$1.2M" || got.Source != records.SourceAuto {
			t.Errorf("merged slot = %+v", got)
		}
		if got.SourceDetail != "crm_pull" || !got.UpdatedAt.Equal(now) {
			t.Errorf("provenance not stamped: %+v", got)
		}
	})

	t.Run("pulled value refreshes auto slot", func(t *testing.T) {
		local := map[string]records.MetricValue{"valuation": auto}
		merged, changed := metrics.Reconcile(local, map[string]string{"valuation": "$3M"}, "crm_pull", now)

		if len(changed) != 1 {
			t.Fatalf("changed = %v, want one entry", changed)
		}
		if merged["valuation"].Value != "$3M" {
			t.Errorf("auto slot not refreshed: %q", merged["valuation"].Value)
		}
	})

	t.Run("unchanged and empty pulled values skipped", func(t *testing.T) {
		local := map[string]records.MetricValue{"valuation": auto}
		pulled := map[string]string{"valuation": "$2M", "arr": ""}

		_, changed := metrics.Reconcile(local, pulled, "crm_pull", now)
		if len(changed) != 0 {
			t.Errorf("changed = %v, want empty", changed)
		}
	})

	t.Run("local map untouched", func(t *testing.T) {
		local := map[string]records.MetricValue{"valuation": auto}
		metrics.Reconcile(local, map[string]string{"valuation": "$3M"}, "crm_pull", now)

		if local["valuation"].Value != "$2M" {
			t.Errorf("input map mutated: %q", local["valuation"].Value)
		}
	})

	t.Run("changed names sorted", func(t *testing.T) {
		pulled := map[string]string{"valuation": "$3M", "arr": "$1M", "funding_amount": "$2M"}
		_, changed := metrics.Reconcile(nil, pulled, "crm_pull", now)

		want := []string{"arr", "funding_amount", "valuation"}
		if len(changed) != len(want) {
			t.Fatalf("changed = %v, want %v", changed, want)
		}
		for i := range want {
			if changed[i] != want[i] {
				t.Fatalf("changed = %v, want %v", changed, want)
			}
		}
	})
}

func TestResolveChain(t *testing.T) {
	tests := []struct {
		name       string
		candidates []string
		want       string
	}{
		{"first wins", []string{"a", "b"}, "a"},
		{"skips empty", []string{"", "", "c"}, "c"},
		{"all empty", []string{"", ""}, ""},
		{"no candidates", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := metrics.ResolveChain(tt.candidates...); got != tt.want {
				t.Errorf("ResolveChain(%v) = %q, want %q", tt.candidates, got, tt.want)
			}
		})
	}
}

func TestWriteWithFallback(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return boom }

	t.Run("deal write wins", func(t *testing.T) {
		path, err := metrics.WriteWithFallback(ctx, ok, fail)
		if err != nil || path != metrics.WriteDeal {
			t.Errorf("path = %v, err = %v", path, err)
		}
	})

	t.Run("falls back to company", func(t *testing.T) {
		path, err := metrics.WriteWithFallback(ctx, fail, ok)
		if err != nil || path != metrics.WriteCompany {
			t.Errorf("path = %v, err = %v", path, err)
		}
	})

	t.Run("both fail returns company error", func(t *testing.T) {
		path, err := metrics.WriteWithFallback(ctx, fail, fail)
		if !errors.Is(err, boom) || path != metrics.WriteNone {
			t.Errorf("path = %v, err = %v", path, err)
		}
	})

	t.Run("nil deal writer skips to company", func(t *testing.T) {
		path, err := metrics.WriteWithFallback(ctx, nil, ok)
		if err != nil || path != metrics.WriteCompany {
			t.Errorf("path = %v, err = %v", path, err)
		}
	})

	t.Run("nil company surfaces deal error", func(t *testing.T) {
		path, err := metrics.WriteWithFallback(ctx, fail, nil)
		if !errors.Is(err, boom) || path != metrics.WriteNone {
			t.Errorf("path = %v, err = %v", path, err)
		}
	})

	t.Run("no writers is an error, not a silent success", func(t *testing.T) {
		path, err := metrics.WriteWithFallback(ctx, nil, nil)
		if !errors.Is(err, metrics.ErrNoWritePath) || path != metrics.WriteNone {
			t.Errorf("path = %v, err = %v", path, err)
		}
	})
}
