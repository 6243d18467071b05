package metrics

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/strata-vc/dealdesk/internal/records"
)

// ErrNoWritePath reports a metric write that routes to no CRM property on
// the record's current linkage, so no remote write could even be attempted.
var ErrNoWritePath = errors.New("no writable crm property for field")

// Reconcile merges CRM-pulled metric values into a record's local metrics.
// Human-entered values are authoritative: a slot with source manual is never
// overwritten by a pulled value. Pulled values fill empty slots and refresh
// existing auto slots. The local map is not modified; the merged map and the
// sorted names of changed slots are returned.
func Reconcile(
	local map[string]records.MetricValue,
	pulled map[string]string,
	sourceDetail string,
	now time.Time,
) (map[string]records.MetricValue, []string) {
	merged := make(map[string]records.MetricValue, len(local)+len(pulled))
	for name, value := range local {
		merged[name] = value
	}

	var changed []string
	for name, value := range pulled {
		if value == "" {
			continue
		}

		existing, ok := merged[name]
		if ok && existing.Source == records.SourceManual {
			continue
		}
		if ok && existing.Value == value {
			continue
		}

		merged[name] = records.MetricValue{
			Value:        value,
			Source:       records.SourceAuto,
			SourceDetail: sourceDetail,
			UpdatedAt:    now,
		}
		changed = append(changed, name)
	}

	sort.Strings(changed)
	return merged, changed
}

// ResolveChain returns the first non-empty candidate, or the empty string
// when every candidate is empty. Callers order candidates by authority.
func ResolveChain(candidates ...string) string {
	for _, c := range candidates {
		if c != "" {
			return c
		}
	}
	return ""
}

// WritePath reports which CRM property level a metric write landed on.
type WritePath string

const (
	WriteDeal    WritePath = "deal"
	WriteCompany WritePath = "company"
	WriteNone    WritePath = "none"
)

// WriteWithFallback attempts the deal-level property write first, then the
// company-level equivalent. The caller learns which path was taken; when both
// fail the company-level error is returned with the path WriteNone. A nil
// writer means that level has no matching property and is skipped; when both
// writers are nil the write fails with ErrNoWritePath so the caller never
// mistakes a skipped write for a committed one.
func WriteWithFallback(
	ctx context.Context,
	deal func(context.Context) error,
	company func(context.Context) error,
) (WritePath, error) {
	if deal == nil && company == nil {
		return WriteNone, ErrNoWritePath
	}

	var dealErr error
	if deal != nil {
		if dealErr = deal(ctx); dealErr == nil {
			return WriteDeal, nil
		}
	}

	if company != nil {
		err := company(ctx)
		if err == nil {
			return WriteCompany, nil
		}
		return WriteNone, err
	}

	return WriteNone, dealErr
}
