// Package rubric provides the scoring rubric as an injected service:
// weighted categories with their criteria, and the registry that maps metric
// names onto CRM deal and company property names. Both are loaded from CSV
// (file or URL) and cached with a TTL; built-in defaults apply when no
// source is configured.
package rubric

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	gocache "github.com/patrickmn/go-cache"
)

// Category is one weighted scoring category. Weights are percentages and
// should sum to 100 across the rubric.
type Category struct {
	Name     string   `json:"name"`
	Weight   float64  `json:"weight"`
	Criteria []string `json:"criteria,omitempty"`
}

// FieldMapping names the CRM properties a metric writes to. Either level
// may be empty when the CRM has no matching property there.
type FieldMapping struct {
	DealProperty    string `json:"deal_property,omitempty"`
	CompanyProperty string `json:"company_property,omitempty"`
}

// System defines the public contract for rubric access.
type System interface {
	Handler() *Handler

	Categories(ctx context.Context) ([]Category, error)
	FieldRegistry(ctx context.Context) (map[string]FieldMapping, error)

	// Version identifies the current rubric content; it changes whenever
	// the loaded categories change, and participates in the scoring
	// fingerprint so a rubric edit forces a full rescore.
	Version(ctx context.Context) (string, error)

	// Refresh busts the cache so the next read reloads from source.
	Refresh()
}

const (
	categoriesKey = "categories"
	fieldsKey     = "fields"
)

type service struct {
	cfg    *Config
	loader *loader
	logger *slog.Logger
	cache  *gocache.Cache
}

// New creates the rubric system from config.
func New(cfg *Config, logger *slog.Logger) System {
	ttl := cfg.TTLDuration()
	return &service{
		cfg:    cfg,
		loader: newLoader(cfg),
		logger: logger.With("system", "rubric"),
		cache:  gocache.New(ttl, 2*ttl),
	}
}

func (s *service) Handler() *Handler {
	return NewHandler(s, s.logger)
}

func (s *service) Categories(ctx context.Context) ([]Category, error) {
	if cached, ok := s.cache.Get(categoriesKey); ok {
		return cached.([]Category), nil
	}

	categories, err := s.loader.categories(ctx)
	if err != nil {
		return nil, err
	}

	if total := weightSum(categories); total != 100 {
		s.logger.Warn("rubric weights do not sum to 100", "total", total)
	}

	s.cache.SetDefault(categoriesKey, categories)
	return categories, nil
}

func (s *service) FieldRegistry(ctx context.Context) (map[string]FieldMapping, error) {
	if cached, ok := s.cache.Get(fieldsKey); ok {
		return cached.(map[string]FieldMapping), nil
	}

	fields, err := s.loader.fields(ctx)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(fieldsKey, fields)
	return fields, nil
}

func (s *service) Version(ctx context.Context) (string, error) {
	categories, err := s.Categories(ctx)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	for _, c := range categories {
		fmt.Fprintf(h, "%s|%g|", c.Name, c.Weight)
		for _, criterion := range c.Criteria {
			fmt.Fprintf(h, "%s;", criterion)
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16], nil
}

func (s *service) Refresh() {
	s.cache.Flush()
	s.logger.Info("rubric cache flushed")
}

func weightSum(categories []Category) float64 {
	var total float64
	for _, c := range categories {
		total += c.Weight
	}
	return total
}

// defaultCategories is the built-in rubric used when no source is
// configured.
func defaultCategories() []Category {
	return []Category{
		{Name: "team", Weight: 30, Criteria: []string{
			"founder_experience", "domain_expertise", "team_completeness",
		}},
		{Name: "market", Weight: 25, Criteria: []string{
			"market_size", "market_timing", "competitive_landscape",
		}},
		{Name: "product", Weight: 20, Criteria: []string{
			"product_differentiation", "technical_moat", "product_maturity",
		}},
		{Name: "traction", Weight: 15, Criteria: []string{
			"revenue_growth", "customer_retention", "pipeline_quality",
		}},
		{Name: "deal_terms", Weight: 10, Criteria: []string{
			"valuation_reasonableness", "round_structure",
		}},
	}
}

// defaultFieldRegistry maps the metric names this system tracks onto
// conventional CRM property names.
func defaultFieldRegistry() map[string]FieldMapping {
	return map[string]FieldMapping{
		"funding_amount":    {DealProperty: "amount", CompanyProperty: "total_money_raised"},
		"committed_funding": {DealProperty: "committed_funding", CompanyProperty: "committed_funding"},
		"valuation":         {DealProperty: "valuation", CompanyProperty: "valuation"},
		"arr":               {CompanyProperty: "annualrecurringrevenue"},
		"runway":            {DealProperty: "runway", CompanyProperty: "runway"},
		"industry":          {CompanyProperty: "industry"},
	}
}
