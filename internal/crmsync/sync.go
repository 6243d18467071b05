package crmsync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/strata-vc/dealdesk/internal/crm"
	"github.com/strata-vc/dealdesk/internal/metrics"
	"github.com/strata-vc/dealdesk/internal/records"
	"github.com/strata-vc/dealdesk/internal/rubric"
)

const (
	pipelineCacheKey = "pipelines"
	pipelineCacheTTL = 5 * time.Minute

	searchLimit = 25
)

// companySnapshotProps are the company properties cached on the record when
// a CRM link is established or refreshed.
var companySnapshotProps = []string{
	"name", "domain", "industry", "total_money_raised",
	"annualrecurringrevenue", "numberofemployees", "city", "country",
}

var dealReadProps = []string{
	crm.PropDealName, crm.PropDealStage, crm.PropDealPipeline,
	crm.PropDealAmount, crm.PropDealPriority,
}

type synchronizer struct {
	crm      crm.System
	records  records.System
	rubric   rubric.System
	rescorer Rescorer
	logger   *slog.Logger
	cache    *gocache.Cache
}

// New creates the synchronization system. rescorer may be nil when scoring
// is not wired; linkage changes then skip the background rescore.
func New(crmSys crm.System, recs records.System, rub rubric.System, rescorer Rescorer, logger *slog.Logger) System {
	return &synchronizer{
		crm:      crmSys,
		records:  recs,
		rubric:   rub,
		rescorer: rescorer,
		logger:   logger.With("system", "crmsync"),
		cache:    gocache.New(pipelineCacheTTL, 2*pipelineCacheTTL),
	}
}

func (s *synchronizer) Handler() *Handler {
	return NewHandler(s, s.logger)
}

func (s *synchronizer) ListPipelines(ctx context.Context) ([]crm.Pipeline, error) {
	if cached, ok := s.cache.Get(pipelineCacheKey); ok {
		return cached.([]crm.Pipeline), nil
	}

	pipelines, err := s.crm.ListPipelines(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(pipelineCacheKey, pipelines)
	return pipelines, nil
}

// labels resolves a stage and pipeline id to display labels. Unknown ids
// return empty labels rather than failing the caller's operation.
func (s *synchronizer) labels(ctx context.Context, pipelineID, stageID string) (pipelineLabel, stageLabel string) {
	pipelines, err := s.ListPipelines(ctx)
	if err != nil {
		s.logger.Warn("pipeline label lookup failed", "error", err)
		return "", ""
	}

	for _, p := range pipelines {
		for _, stage := range p.Stages {
			if stage.ID == stageID {
				stageLabel = stage.Label
				if pipelineID == "" {
					pipelineLabel = p.Label
				}
			}
		}
		if p.ID == pipelineID {
			pipelineLabel = p.Label
		}
	}
	return pipelineLabel, stageLabel
}

func (s *synchronizer) Overlay(ctx context.Context, r *records.Record) error {
	if !s.crm.Configured() || r.CRM == nil || r.CRM.DealID == "" {
		return nil
	}

	deal, err := s.crm.GetDeal(ctx, r.CRM.DealID, dealReadProps)
	if err != nil {
		return err
	}

	pipelineLabel, stageLabel := s.labels(ctx, deal.PipelineID, deal.StageID)
	r.CRM.StageID = deal.StageID
	r.CRM.StageLabel = stageLabel
	r.CRM.PipelineID = deal.PipelineID
	r.CRM.PipelineLabel = pipelineLabel
	r.CRM.Amount = deal.Amount
	r.CRM.Priority = deal.Priority
	r.CRM.SyncedAt = time.Now().UTC()

	companyID := r.CRM.CompanyID
	if companyID == "" {
		companyID = deal.CompanyID
	}
	if companyID != "" {
		company, err := s.crm.GetCompany(ctx, companyID, companySnapshotProps)
		if err != nil {
			s.logger.Warn("company overlay failed", "company", companyID, "error", err)
		} else {
			r.CRM.CompanyID = company.ID
			r.CRM.Company = company.Properties
			// In-memory merge only; the read path never writes back.
			r.Metrics, _ = metrics.Reconcile(
				r.Metrics, s.pulledMetrics(ctx, company.Properties), "crm_pull", time.Now().UTC())
		}
	}

	return nil
}

// pulledMetrics maps a company property snapshot back to local metric names
// through the field registry. Properties without a registered mapping are
// not pulled; industry lives on the record itself, not in the metric map.
func (s *synchronizer) pulledMetrics(ctx context.Context, props map[string]string) map[string]string {
	registry, err := s.rubric.FieldRegistry(ctx)
	if err != nil {
		s.logger.Warn("field registry lookup failed", "error", err)
		return nil
	}

	pulled := make(map[string]string)
	for name, mapping := range registry {
		if name == "industry" || mapping.CompanyProperty == "" {
			continue
		}
		if value := props[mapping.CompanyProperty]; value != "" {
			pulled[name] = value
		}
	}
	return pulled
}

func (s *synchronizer) SetStage(ctx context.Context, id string, cmd StageCommand) (*records.Record, error) {
	if cmd.StageID == "" {
		return nil, fmt.Errorf("%w: stage id required", records.ErrInvalidInput)
	}

	r, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.CRM == nil || r.CRM.DealID == "" {
		return nil, ErrNotLinked
	}

	props := map[string]string{crm.PropDealStage: cmd.StageID}
	if cmd.PipelineID != "" {
		props[crm.PropDealPipeline] = cmd.PipelineID
	}

	// Remote write first. On failure the local record is untouched.
	deal, err := s.crm.UpdateDeal(ctx, r.CRM.DealID, props)
	if err != nil {
		return nil, err
	}

	pipelineLabel, stageLabel := s.labels(ctx, deal.PipelineID, deal.StageID)
	return s.records.Mutate(ctx, id, func(r *records.Record) error {
		r.CRM.StageID = deal.StageID
		r.CRM.StageLabel = stageLabel
		r.CRM.PipelineID = deal.PipelineID
		r.CRM.PipelineLabel = pipelineLabel
		r.CRM.SyncedAt = time.Now().UTC()
		return nil
	})
}

func (s *synchronizer) SetPriority(ctx context.Context, id, priority string) (*records.Record, error) {
	priority = strings.ToLower(strings.TrimSpace(priority))
	switch priority {
	case "high", "medium", "low":
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	r, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.CRM == nil || r.CRM.DealID == "" {
		return nil, ErrNotLinked
	}

	if _, err := s.crm.UpdateDeal(ctx, r.CRM.DealID, map[string]string{
		crm.PropDealPriority: priority,
	}); err != nil {
		return nil, err
	}

	return s.records.Mutate(ctx, id, func(r *records.Record) error {
		r.CRM.Priority = priority
		r.CRM.SyncedAt = time.Now().UTC()
		return nil
	})
}

// fieldRoute declares where a company-update field writes in the CRM and
// how its value is normalized for each level. Property names come from the
// rubric field registry; normalizers are fixed per metric kind.
type fieldRoute struct {
	dealProp         string
	companyProp      string
	normalizeDeal    func(string) string
	normalizeCompany func(string) string
}

// fieldNormalizers fixes how each known metric is normalized per CRM level:
// money metrics resolve to millions on deals and raw dollars on companies,
// runway buckets on companies and rounds on deals.
var fieldNormalizers = map[string]fieldRoute{
	"funding_amount":    {normalizeDeal: metrics.ToDollars, normalizeCompany: metrics.ToDollars},
	"committed_funding": {normalizeDeal: metrics.ToMillions, normalizeCompany: metrics.ToDollars},
	"valuation":         {normalizeDeal: metrics.ToMillions, normalizeCompany: metrics.ToDollars},
	"arr":               {normalizeCompany: metrics.ToDollars},
	"runway":            {normalizeDeal: metrics.DealRunway, normalizeCompany: metrics.BucketRunway},
}

// route resolves a field's CRM property names from the rubric registry and
// pairs them with the field's normalizers. Unregistered fields pass through
// as same-named company properties.
func (s *synchronizer) route(ctx context.Context, name string) fieldRoute {
	route := fieldNormalizers[name]

	registry, err := s.rubric.FieldRegistry(ctx)
	if err != nil {
		s.logger.Warn("field registry lookup failed", "error", err)
		registry = nil
	}

	if mapping, ok := registry[name]; ok {
		route.dealProp = mapping.DealProperty
		route.companyProp = mapping.CompanyProperty
	} else {
		route.companyProp = name
	}
	return route
}

func (s *synchronizer) UpdateCompanyFields(ctx context.Context, id string, fields map[string]string) ([]FieldResult, error) {
	r, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.CRM == nil || (r.CRM.DealID == "" && r.CRM.CompanyID == "") {
		return nil, ErrNotLinked
	}

	// Deterministic field order so repeated calls commit the same prefix
	// when a mid-sequence failure occurs.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]FieldResult, 0, len(names))
	for _, name := range names {
		results = append(results, s.commitField(ctx, r, name, fields[name]))
	}
	return results, nil
}

// commitField writes one field through to the CRM and, only on success,
// persists the value locally. Failures are reported per-field and leave
// both sides untouched.
func (s *synchronizer) commitField(ctx context.Context, r *records.Record, name, value string) FieldResult {
	route := s.route(ctx, name)

	dealValue := value
	if route.normalizeDeal != nil {
		dealValue = route.normalizeDeal(value)
	}
	companyValue := value
	if route.normalizeCompany != nil {
		companyValue = route.normalizeCompany(value)
	}

	var dealWrite, companyWrite func(context.Context) error
	if route.dealProp != "" && r.CRM.DealID != "" {
		dealWrite = func(ctx context.Context) error {
			_, err := s.crm.UpdateDeal(ctx, r.CRM.DealID, map[string]string{route.dealProp: dealValue})
			return err
		}
	}
	if route.companyProp != "" && r.CRM.CompanyID != "" {
		companyWrite = func(ctx context.Context) error {
			_, err := s.crm.UpdateCompany(ctx, r.CRM.CompanyID, map[string]string{route.companyProp: companyValue})
			return err
		}
	}

	path, err := metrics.WriteWithFallback(ctx, dealWrite, companyWrite)
	if err != nil {
		return FieldResult{Field: name, Path: path, Error: err.Error()}
	}

	committed := value
	if path == metrics.WriteCompany {
		committed = companyValue
	} else if route.normalizeDeal != nil {
		committed = dealValue
	}

	if _, err := s.records.Mutate(ctx, r.ID, func(r *records.Record) error {
		if name == "industry" {
			r.Industry = committed
			return nil
		}
		r.Metrics[name] = records.MetricValue{
			Value:        committed,
			Source:       records.SourceManual,
			SourceDetail: "company_update",
			UpdatedAt:    time.Now().UTC(),
		}
		return nil
	}); err != nil {
		return FieldResult{Field: name, Path: path, Error: err.Error()}
	}

	return FieldResult{Field: name, Committed: true, Path: path}
}

func (s *synchronizer) AutoLink(ctx context.Context, id string) (*AutoLinkResult, error) {
	r, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.CRM != nil && r.CRM.DealID != "" {
		return &AutoLinkResult{Status: LinkAlreadyLinked, Record: r}, nil
	}

	candidates, err := s.crm.SearchDealsByName(ctx, r.Company, searchLimit)
	if err != nil {
		return nil, err
	}

	match := selectCandidate(r.Company, candidates)
	switch {
	case match != nil:
	case len(candidates) == 0:
		return &AutoLinkResult{Status: LinkNoMatch}, nil
	default:
		return &AutoLinkResult{Status: LinkAmbiguous, Candidates: len(candidates)}, nil
	}

	linked, err := s.link(ctx, id, match)
	if err != nil {
		return nil, err
	}

	s.triggerRescore(id, "auto_link")
	return &AutoLinkResult{Status: LinkLinked, Record: linked}, nil
}

// selectCandidate applies the auto-link policy: a single case-insensitive
// exact name match wins; otherwise a sole candidate of any kind wins;
// anything else is no match or ambiguous.
func selectCandidate(company string, candidates []crm.Deal) *crm.Deal {
	var exact *crm.Deal
	exactCount := 0
	for i := range candidates {
		if strings.EqualFold(strings.TrimSpace(candidates[i].Name), strings.TrimSpace(company)) {
			exact = &candidates[i]
			exactCount++
		}
	}

	if exactCount == 1 {
		return exact
	}
	if len(candidates) == 1 {
		return &candidates[0]
	}
	return nil
}

// link persists a deal linkage plus the associated company snapshot. This is
// the one case where the read path writes back.
func (s *synchronizer) link(ctx context.Context, id string, deal *crm.Deal) (*records.Record, error) {
	var company *crm.Company
	if deal.CompanyID != "" {
		var err error
		company, err = s.crm.GetCompany(ctx, deal.CompanyID, companySnapshotProps)
		if err != nil {
			s.logger.Warn("company snapshot fetch failed", "company", deal.CompanyID, "error", err)
			company = nil
		}
	}

	pipelineLabel, stageLabel := s.labels(ctx, deal.PipelineID, deal.StageID)
	return s.records.Mutate(ctx, id, func(r *records.Record) error {
		link := &records.CRMLink{
			DealID:        deal.ID,
			StageID:       deal.StageID,
			StageLabel:    stageLabel,
			PipelineID:    deal.PipelineID,
			PipelineLabel: pipelineLabel,
			Amount:        deal.Amount,
			Priority:      deal.Priority,
			SyncedAt:      time.Now().UTC(),
		}
		if company != nil {
			link.CompanyID = company.ID
			link.Company = company.Properties
			r.Metrics, _ = metrics.Reconcile(
				r.Metrics, s.pulledMetrics(ctx, company.Properties), "auto_link", link.SyncedAt)
		}
		r.CRM = link
		return nil
	})
}

func (s *synchronizer) CreateInCRM(ctx context.Context, id string, cmd CreateCommand) (*records.Record, error) {
	r, err := s.records.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.CRM != nil && r.CRM.DealID != "" {
		return nil, ErrAlreadyLinked
	}

	companyProps := map[string]string{"name": r.Company}
	if r.Industry != "" {
		companyProps["industry"] = r.Industry
	}
	for key, value := range cmd.CompanyProperties {
		companyProps[key] = value
	}

	company, err := s.crm.CreateCompany(ctx, companyProps)
	if err != nil {
		return nil, err
	}

	dealProps := map[string]string{crm.PropDealName: r.Company}
	for key, value := range cmd.DealProperties {
		dealProps[key] = value
	}

	priority := metrics.ResolveChain(cmd.Priority, cmd.LegacyPriority)
	if priority != "" {
		dealProps[crm.PropDealPriority] = priority
	}

	deal, err := s.crm.CreateDeal(ctx, dealProps, company.ID)
	if err != nil {
		return nil, err
	}

	resolved := s.resolveMetrics(ctx, cmd, deal, company, r)

	pipelineLabel, stageLabel := s.labels(ctx, deal.PipelineID, deal.StageID)
	updated, err := s.records.Mutate(ctx, id, func(r *records.Record) error {
		now := time.Now().UTC()
		r.CRM = &records.CRMLink{
			DealID:        deal.ID,
			CompanyID:     company.ID,
			Company:       company.Properties,
			StageID:       deal.StageID,
			StageLabel:    stageLabel,
			PipelineID:    deal.PipelineID,
			PipelineLabel: pipelineLabel,
			Amount:        deal.Amount,
			Priority:      metrics.ResolveChain(priority, deal.Priority),
			SyncedAt:      now,
		}
		for name, value := range resolved {
			r.Metrics[name] = records.MetricValue{
				Value:        value,
				Source:       records.SourceManual,
				SourceDetail: "crm_create",
				UpdatedAt:    now,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.triggerRescore(id, "crm_create")
	return updated, nil
}

// resolveMetrics applies the creation-time candidate chain per metric:
// explicit override, legacy override, CRM-returned value, cached company
// snapshot, existing local value. Resolved values reflect a deliberate
// creation-time decision and are persisted as manual.
func (s *synchronizer) resolveMetrics(ctx context.Context, cmd CreateCommand, deal *crm.Deal, company *crm.Company, r *records.Record) map[string]string {
	names := make(map[string]struct{})
	for name := range cmd.Metrics {
		names[name] = struct{}{}
	}
	for name := range cmd.LegacyMetrics {
		names[name] = struct{}{}
	}
	for name := range r.Metrics {
		names[name] = struct{}{}
	}

	resolved := make(map[string]string, len(names))
	for name := range names {
		route := s.route(ctx, name)

		var crmValue, snapshotValue, localValue string
		if route.dealProp != "" {
			crmValue = deal.Properties[route.dealProp]
		}
		if route.companyProp != "" {
			snapshotValue = company.Properties[route.companyProp]
		}
		if existing, ok := r.Metrics[name]; ok {
			localValue = existing.Value
		}

		value := metrics.ResolveChain(
			cmd.Metrics[name],
			cmd.LegacyMetrics[name],
			crmValue,
			snapshotValue,
			localValue,
		)
		if value != "" {
			resolved[name] = value
		}
	}
	return resolved
}

// triggerRescore starts a best-effort background rescore. Errors never reach
// the caller; the rescorer logs its own failures.
func (s *synchronizer) triggerRescore(id, reason string) {
	if s.rescorer == nil {
		return
	}
	s.logger.Debug("triggering background rescore", "record", id, "reason", reason)
	s.rescorer.TriggerRescore(id)
}
