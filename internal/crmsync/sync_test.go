package crmsync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/strata-vc/dealdesk/internal/crm"
	"github.com/strata-vc/dealdesk/internal/metrics"
	"github.com/strata-vc/dealdesk/internal/records"
	"github.com/strata-vc/dealdesk/internal/rubric"
)

// crmStub scripts CRM behavior per test. Nil function fields fail loudly so
// a test exercising an unexpected call surfaces immediately.
type crmStub struct {
	configured    bool
	getDeal       func(id string) (*crm.Deal, error)
	updateDeal    func(id string, props map[string]string) (*crm.Deal, error)
	createDeal    func(props map[string]string, companyID string) (*crm.Deal, error)
	getCompany    func(id string) (*crm.Company, error)
	updateCompany func(id string, props map[string]string) (*crm.Company, error)
	createCompany func(props map[string]string) (*crm.Company, error)
	search        func(name string) ([]crm.Deal, error)
	pipelines     func() ([]crm.Pipeline, error)
}

func (c *crmStub) Configured() bool { return c.configured }

func (c *crmStub) GetDeal(_ context.Context, id string, _ []string) (*crm.Deal, error) {
	return c.getDeal(id)
}

func (c *crmStub) UpdateDeal(_ context.Context, id string, props map[string]string) (*crm.Deal, error) {
	return c.updateDeal(id, props)
}

func (c *crmStub) CreateDeal(_ context.Context, props map[string]string, companyID string) (*crm.Deal, error) {
	return c.createDeal(props, companyID)
}

func (c *crmStub) GetCompany(_ context.Context, id string, _ []string) (*crm.Company, error) {
	return c.getCompany(id)
}

func (c *crmStub) UpdateCompany(_ context.Context, id string, props map[string]string) (*crm.Company, error) {
	return c.updateCompany(id, props)
}

func (c *crmStub) CreateCompany(_ context.Context, props map[string]string) (*crm.Company, error) {
	return c.createCompany(props)
}

func (c *crmStub) SearchDealsByName(_ context.Context, name string, _ int) ([]crm.Deal, error) {
	return c.search(name)
}

func (c *crmStub) ListPipelines(_ context.Context) ([]crm.Pipeline, error) {
	if c.pipelines == nil {
		return nil, nil
	}
	return c.pipelines()
}

// recordsStub holds a single in-memory record and counts mutations, enough
// to observe whether a failed remote write left local state untouched.
type recordsStub struct {
	record  *records.Record
	mutates int
}

func (r *recordsStub) Handler() *records.Handler { return nil }

func (r *recordsStub) SetOverlay(records.Overlay) {}

func (r *recordsStub) Create(context.Context, records.CreateCommand) (*records.Record, error) {
	return nil, errors.New("not implemented")
}

func (r *recordsStub) Get(_ context.Context, id string) (*records.Record, error) {
	if r.record == nil || r.record.ID != id {
		return nil, records.ErrNotFound
	}
	return r.record, nil
}

func (r *recordsStub) List(context.Context) ([]*records.Record, error) {
	return []*records.Record{r.record}, nil
}

func (r *recordsStub) Patch(context.Context, string, map[string]json.RawMessage) (*records.Record, error) {
	return nil, errors.New("not implemented")
}

func (r *recordsStub) Delete(context.Context, string, records.FolderAction) error {
	return errors.New("not implemented")
}

func (r *recordsStub) Mutate(_ context.Context, id string, fn func(*records.Record) error) (*records.Record, error) {
	if r.record == nil || r.record.ID != id {
		return nil, records.ErrNotFound
	}
	if err := fn(r.record); err != nil {
		return nil, err
	}
	r.mutates++
	return r.record, nil
}

func (r *recordsStub) AttachFile(context.Context, string, records.AttachFileCommand) (*records.AttachResult, error) {
	return nil, errors.New("not implemented")
}

func (r *recordsStub) AttachLink(context.Context, string, records.AttachLinkCommand) (*records.AttachResult, error) {
	return nil, errors.New("not implemented")
}

func (r *recordsStub) SyncFolder(context.Context, string, []records.FileInput) ([]records.SyncItem, error) {
	return nil, errors.New("not implemented")
}

func (r *recordsStub) AddNote(context.Context, string, records.NoteCommand) (*records.Record, error) {
	return nil, errors.New("not implemented")
}

type rubricStub struct {
	registry map[string]rubric.FieldMapping
}

func (s *rubricStub) Handler() *rubric.Handler { return nil }

func (s *rubricStub) Categories(context.Context) ([]rubric.Category, error) {
	return nil, nil
}

func (s *rubricStub) FieldRegistry(context.Context) (map[string]rubric.FieldMapping, error) {
	return s.registry, nil
}

func (s *rubricStub) Version(context.Context) (string, error) { return "v1", nil }

func (s *rubricStub) Refresh() {}

type rescorerStub struct {
	triggered []string
}

func (r *rescorerStub) TriggerRescore(id string) {
	r.triggered = append(r.triggered, id)
}

func linkedRecord() *records.Record {
	return &records.Record{
		ID:      "rec-1",
		Company: "Acme",
		Status:  records.StatusInProgress,
		Metrics: map[string]records.MetricValue{},
		CRM: &records.CRMLink{
			DealID:    "deal-1",
			CompanyID: "co-1",
			Priority:  "low",
			StageID:   "s1",
		},
	}
}

func newTestSync(crmSys crm.System, recs records.System, rescorer Rescorer) *synchronizer {
	registry := map[string]rubric.FieldMapping{
		"funding_amount": {DealProperty: "amount", CompanyProperty: "total_money_raised"},
		"arr":            {CompanyProperty: "annualrecurringrevenue"},
	}
	sys := New(crmSys, recs, &rubricStub{registry: registry}, rescorer, slog.Default())
	return sys.(*synchronizer)
}

func TestSetStageWriteThrough(t *testing.T) {
	t.Run("remote failure leaves record untouched", func(t *testing.T) {
		recs := &recordsStub{record: linkedRecord()}
		crmSys := &crmStub{
			configured: true,
			updateDeal: func(string, map[string]string) (*crm.Deal, error) {
				return nil, crm.ErrWriteFailed
			},
		}

		s := newTestSync(crmSys, recs, nil)
		_, err := s.SetStage(context.Background(), "rec-1", StageCommand{StageID: "s2"})

		if !errors.Is(err, crm.ErrWriteFailed) {
			t.Fatalf("err = %v, want ErrWriteFailed", err)
		}
		if recs.mutates != 0 {
			t.Error("local record mutated despite remote failure")
		}
		if recs.record.CRM.StageID != "s1" {
			t.Errorf("stage changed locally: %q", recs.record.CRM.StageID)
		}
	})

	t.Run("remote success persists locally", func(t *testing.T) {
		recs := &recordsStub{record: linkedRecord()}
		crmSys := &crmStub{
			configured: true,
			updateDeal: func(id string, props map[string]string) (*crm.Deal, error) {
				if props[crm.PropDealStage] != "s2" {
					t.Errorf("props = %v", props)
				}
				return &crm.Deal{ID: id, StageID: "s2", PipelineID: "p1"}, nil
			},
		}

		s := newTestSync(crmSys, recs, nil)
		r, err := s.SetStage(context.Background(), "rec-1", StageCommand{StageID: "s2"})
		if err != nil {
			t.Fatalf("SetStage: %v", err)
		}
		if r.CRM.StageID != "s2" || r.CRM.PipelineID != "p1" {
			t.Errorf("link = %+v", r.CRM)
		}
		if recs.mutates != 1 {
			t.Errorf("mutates = %d", recs.mutates)
		}
	})

	t.Run("not linked", func(t *testing.T) {
		record := linkedRecord()
		record.CRM = nil
		s := newTestSync(&crmStub{configured: true}, &recordsStub{record: record}, nil)

		_, err := s.SetStage(context.Background(), "rec-1", StageCommand{StageID: "s2"})
		if !errors.Is(err, ErrNotLinked) {
			t.Errorf("err = %v, want ErrNotLinked", err)
		}
	})
}

func TestSetPriority(t *testing.T) {
	t.Run("invalid priority rejected before any write", func(t *testing.T) {
		recs := &recordsStub{record: linkedRecord()}
		s := newTestSync(&crmStub{configured: true}, recs, nil)

		_, err := s.SetPriority(context.Background(), "rec-1", "urgent")
		if !errors.Is(err, ErrInvalidPriority) {
			t.Fatalf("err = %v, want ErrInvalidPriority", err)
		}
	})

	t.Run("priority normalized to lowercase", func(t *testing.T) {
		recs := &recordsStub{record: linkedRecord()}
		crmSys := &crmStub{
			configured: true,
			updateDeal: func(id string, props map[string]string) (*crm.Deal, error) {
				if props[crm.PropDealPriority] != "high" {
					t.Errorf("props = %v", props)
				}
				return &crm.Deal{ID: id, Priority: "high"}, nil
			},
		}

		s := newTestSync(crmSys, recs, nil)
		r, err := s.SetPriority(context.Background(), "rec-1", " HIGH ")
		if err != nil {
			t.Fatalf("SetPriority: %v", err)
		}
		if r.CRM.Priority != "high" {
			t.Errorf("priority = %q", r.CRM.Priority)
		}
	})
}

func TestUpdateCompanyFieldsPerFieldIndependence(t *testing.T) {
	recs := &recordsStub{record: linkedRecord()}
	crmSys := &crmStub{
		configured: true,
		updateDeal: func(_ string, props map[string]string) (*crm.Deal, error) {
			// funding_amount routes to the deal amount property; fail it
			if _, ok := props["amount"]; ok {
				return nil, crm.ErrWriteFailed
			}
			return &crm.Deal{ID: "deal-1"}, nil
		},
		updateCompany: func(_ string, props map[string]string) (*crm.Company, error) {
			if _, ok := props["total_money_raised"]; ok {
				return nil, crm.ErrWriteFailed
			}
			return &crm.Company{ID: "co-1"}, nil
		},
	}

	s := newTestSync(crmSys, recs, nil)
	results, err := s.UpdateCompanyFields(context.Background(), "rec-1", map[string]string{
		"funding_amount": "$4,000,000",
		"arr":            "$1.2M",
	})
	if err != nil {
		t.Fatalf("UpdateCompanyFields: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %+v", results)
	}

	// sorted order: arr first, then funding_amount
	if results[0].Field != "arr" || !results[0].Committed {
		t.Errorf("arr result = %+v", results[0])
	}
	if results[1].Field != "funding_amount" || results[1].Committed {
		t.Errorf("funding_amount result = %+v", results[1])
	}

	// the failed field must not reach the local record
	if _, ok := recs.record.Metrics["funding_amount"]; ok {
		t.Error("failed field persisted locally")
	}
	got, ok := recs.record.Metrics["arr"]
	if !ok || got.Source != records.SourceManual {
		t.Errorf("arr metric = %+v", got)
	}
	// arr has no deal property; the committed value is company-normalized
	if got.Value != "1200000" {
		t.Errorf("arr value = %q, want normalized dollars", got.Value)
	}
}

func TestAutoLink(t *testing.T) {
	t.Run("already linked", func(t *testing.T) {
		s := newTestSync(&crmStub{configured: true}, &recordsStub{record: linkedRecord()}, nil)

		result, err := s.AutoLink(context.Background(), "rec-1")
		if err != nil {
			t.Fatalf("AutoLink: %v", err)
		}
		if result.Status != LinkAlreadyLinked {
			t.Errorf("status = %q", result.Status)
		}
	})

	t.Run("no match", func(t *testing.T) {
		record := linkedRecord()
		record.CRM = nil
		crmSys := &crmStub{
			configured: true,
			search:     func(string) ([]crm.Deal, error) { return nil, nil },
		}

		s := newTestSync(crmSys, &recordsStub{record: record}, nil)
		result, err := s.AutoLink(context.Background(), "rec-1")
		if err != nil {
			t.Fatalf("AutoLink: %v", err)
		}
		if result.Status != LinkNoMatch {
			t.Errorf("status = %q", result.Status)
		}
	})

	t.Run("ambiguous", func(t *testing.T) {
		record := linkedRecord()
		record.CRM = nil
		crmSys := &crmStub{
			configured: true,
			search: func(string) ([]crm.Deal, error) {
				return []crm.Deal{
					{ID: "1", Name: "Acme Robotics"},
					{ID: "2", Name: "Acme Labs"},
				}, nil
			},
		}

		s := newTestSync(crmSys, &recordsStub{record: record}, nil)
		result, err := s.AutoLink(context.Background(), "rec-1")
		if err != nil {
			t.Fatalf("AutoLink: %v", err)
		}
		if result.Status != LinkAmbiguous || result.Candidates != 2 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("exact match links and triggers rescore", func(t *testing.T) {
		record := linkedRecord()
		record.CRM = nil
		recs := &recordsStub{record: record}
		crmSys := &crmStub{
			configured: true,
			search: func(string) ([]crm.Deal, error) {
				return []crm.Deal{
					{ID: "1", Name: "acme", CompanyID: "co-9", StageID: "s1"},
					{ID: "2", Name: "Acme Holdings"},
				}, nil
			},
			getCompany: func(id string) (*crm.Company, error) {
				return &crm.Company{ID: id, Name: "Acme", Properties: map[string]string{
					"name":               "Acme",
					"total_money_raised": "4000000",
				}}, nil
			},
		}
		rescorer := &rescorerStub{}

		s := newTestSync(crmSys, recs, rescorer)
		result, err := s.AutoLink(context.Background(), "rec-1")
		if err != nil {
			t.Fatalf("AutoLink: %v", err)
		}
		if result.Status != LinkLinked {
			t.Fatalf("status = %q", result.Status)
		}
		if result.Record.CRM == nil || result.Record.CRM.DealID != "1" || result.Record.CRM.CompanyID != "co-9" {
			t.Errorf("link = %+v", result.Record.CRM)
		}
		// linking is the one read-path write; snapshot metrics come with it
		if got := result.Record.Metrics["funding_amount"]; got.Value != "4000000" ||
			got.Source != records.SourceAuto || got.SourceDetail != "auto_link" {
			t.Errorf("funding_amount = %+v", got)
		}
		if len(rescorer.triggered) != 1 || rescorer.triggered[0] != "rec-1" {
			t.Errorf("rescores = %v", rescorer.triggered)
		}
	})
}

func TestSelectCandidate(t *testing.T) {
	tests := []struct {
		name       string
		company    string
		candidates []crm.Deal
		wantID     string
	}{
		{"single exact match wins over others", "Acme",
			[]crm.Deal{{ID: "1", Name: "acme"}, {ID: "2", Name: "Acme Labs"}}, "1"},
		{"sole candidate wins without exact match", "Acme",
			[]crm.Deal{{ID: "3", Name: "Acme Robotics"}}, "3"},
		{"multiple exact matches ambiguous", "Acme",
			[]crm.Deal{{ID: "1", Name: "Acme"}, {ID: "2", Name: "acme"}}, ""},
		{"multiple loose matches ambiguous", "Acme",
			[]crm.Deal{{ID: "1", Name: "Acme Labs"}, {ID: "2", Name: "Acme Robotics"}}, ""},
		{"no candidates", "Acme", nil, ""},
		{"whitespace-insensitive exact match", "Acme",
			[]crm.Deal{{ID: "1", Name: "  Acme "}, {ID: "2", Name: "Acme Labs"}}, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := selectCandidate(tt.company, tt.candidates)
			switch {
			case tt.wantID == "" && got != nil:
				t.Errorf("selected %q, want none", got.ID)
			case tt.wantID != "" && (got == nil || got.ID != tt.wantID):
				t.Errorf("selected %+v, want id %q", got, tt.wantID)
			}
		})
	}
}

func TestCreateInCRM(t *testing.T) {
	record := linkedRecord()
	record.CRM = nil
	record.Industry = "robotics"
	record.Metrics["valuation"] = records.MetricValue{Value: "$20M", Source: records.SourceAuto}
	record.Metrics["funding_amount"] = records.MetricValue{Value: "$1M", Source: records.SourceAuto}
	recs := &recordsStub{record: record}

	crmSys := &crmStub{
		configured: true,
		createCompany: func(props map[string]string) (*crm.Company, error) {
			if props["name"] != "Acme" || props["industry"] != "robotics" {
				t.Errorf("company props = %v", props)
			}
			return &crm.Company{ID: "co-1", Name: "Acme", Properties: map[string]string{
				"name":               "Acme",
				"total_money_raised": "4000000",
			}}, nil
		},
		createDeal: func(props map[string]string, companyID string) (*crm.Deal, error) {
			if companyID != "co-1" {
				t.Errorf("companyID = %q", companyID)
			}
			if props[crm.PropDealPriority] != "high" {
				t.Errorf("deal props = %v", props)
			}
			return &crm.Deal{ID: "deal-9", Priority: "high", Properties: map[string]string{}}, nil
		},
	}
	rescorer := &rescorerStub{}

	s := newTestSync(crmSys, recs, rescorer)
	r, err := s.CreateInCRM(context.Background(), "rec-1", CreateCommand{
		Priority: "high",
		Metrics:  map[string]string{"runway": "6-12 months"},
	})
	if err != nil {
		t.Fatalf("CreateInCRM: %v", err)
	}

	if r.CRM == nil || r.CRM.DealID != "deal-9" || r.CRM.CompanyID != "co-1" {
		t.Fatalf("link = %+v", r.CRM)
	}
	if r.CRM.Priority != "high" {
		t.Errorf("priority = %q", r.CRM.Priority)
	}

	// explicit override wins
	if got := r.Metrics["runway"]; got.Value != "6-12 months" || got.Source != records.SourceManual {
		t.Errorf("runway = %+v", got)
	}
	// funding_amount resolves from the company snapshot through the registry
	if got := r.Metrics["funding_amount"]; got.Value != "4000000" {
		t.Errorf("funding_amount = %+v", got)
	}
	// existing local value survives as the last candidate
	if got := r.Metrics["valuation"]; got.Value != "$20M" {
		t.Errorf("valuation = %+v", got)
	}
	if got := r.Metrics["valuation"]; got.SourceDetail != "crm_create" {
		t.Errorf("valuation provenance = %+v", got)
	}

	if len(rescorer.triggered) != 1 {
		t.Errorf("rescores = %v", rescorer.triggered)
	}
}

func TestCreateInCRMAlreadyLinked(t *testing.T) {
	s := newTestSync(&crmStub{configured: true}, &recordsStub{record: linkedRecord()}, nil)

	_, err := s.CreateInCRM(context.Background(), "rec-1", CreateCommand{})
	if !errors.Is(err, ErrAlreadyLinked) {
		t.Errorf("err = %v, want ErrAlreadyLinked", err)
	}
}

func TestOverlay(t *testing.T) {
	t.Run("refreshes live fields and pulls metrics without persisting", func(t *testing.T) {
		record := linkedRecord()
		record.Metrics = map[string]records.MetricValue{
			"arr":            {Value: "999", Source: records.SourceManual},
			"funding_amount": {Value: "1000000", Source: records.SourceAuto},
		}
		recs := &recordsStub{record: record}
		crmSys := &crmStub{
			configured: true,
			getDeal: func(id string) (*crm.Deal, error) {
				return &crm.Deal{
					ID: id, StageID: "s2", PipelineID: "p1",
					Amount: "500000", Priority: "high", CompanyID: "co-1",
				}, nil
			},
			getCompany: func(id string) (*crm.Company, error) {
				return &crm.Company{ID: id, Properties: map[string]string{
					"name":                   "Acme",
					"total_money_raised":     "4000000",
					"annualrecurringrevenue": "2400000",
				}}, nil
			},
			pipelines: func() ([]crm.Pipeline, error) {
				return []crm.Pipeline{{
					ID: "p1", Label: "Seed",
					Stages: []crm.Stage{{ID: "s2", Label: "Diligence"}},
				}}, nil
			},
		}

		s := newTestSync(crmSys, recs, nil)
		if err := s.Overlay(context.Background(), record); err != nil {
			t.Fatalf("Overlay: %v", err)
		}

		if record.CRM.StageID != "s2" || record.CRM.StageLabel != "Diligence" {
			t.Errorf("stage = %q %q", record.CRM.StageID, record.CRM.StageLabel)
		}
		if record.CRM.PipelineLabel != "Seed" || record.CRM.Amount != "500000" || record.CRM.Priority != "high" {
			t.Errorf("link = %+v", record.CRM)
		}
		if record.CRM.Company["total_money_raised"] != "4000000" {
			t.Errorf("company snapshot = %v", record.CRM.Company)
		}

		// pulled value refreshes the auto slot through the field registry
		if got := record.Metrics["funding_amount"]; got.Value != "4000000" ||
			got.Source != records.SourceAuto || got.SourceDetail != "crm_pull" {
			t.Errorf("funding_amount = %+v", got)
		}
		// manual value is authoritative
		if got := record.Metrics["arr"]; got.Value != "999" || got.Source != records.SourceManual {
			t.Errorf("arr = %+v", got)
		}

		if recs.mutates != 0 {
			t.Errorf("read path persisted: mutates = %d", recs.mutates)
		}
	})

	t.Run("not linked is a no-op", func(t *testing.T) {
		record := linkedRecord()
		record.CRM = nil
		s := newTestSync(&crmStub{configured: true}, &recordsStub{record: record}, nil)

		if err := s.Overlay(context.Background(), record); err != nil {
			t.Fatalf("Overlay: %v", err)
		}
		if record.CRM != nil {
			t.Errorf("link = %+v", record.CRM)
		}
	})

	t.Run("not configured is a no-op", func(t *testing.T) {
		record := linkedRecord()
		s := newTestSync(&crmStub{configured: false}, &recordsStub{record: record}, nil)

		if err := s.Overlay(context.Background(), record); err != nil {
			t.Fatalf("Overlay: %v", err)
		}
		if record.CRM.StageID != "s1" {
			t.Errorf("stage = %q", record.CRM.StageID)
		}
	})
}

func TestUpdateCompanyFieldsNoWritePath(t *testing.T) {
	// Linked to a deal with no company association: a company-only field
	// has nowhere to write and must not be persisted as committed.
	record := linkedRecord()
	record.CRM.CompanyID = ""
	recs := &recordsStub{record: record}

	s := newTestSync(&crmStub{configured: true}, recs, nil)
	results, err := s.UpdateCompanyFields(context.Background(), "rec-1", map[string]string{
		"arr": "$2.4M",
	})
	if err != nil {
		t.Fatalf("UpdateCompanyFields: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("results = %+v", results)
	}
	got := results[0]
	if got.Committed || got.Path != metrics.WriteNone {
		t.Errorf("result = %+v", got)
	}
	if !strings.Contains(got.Error, "no writable") {
		t.Errorf("error = %q", got.Error)
	}
	if recs.mutates != 0 {
		t.Errorf("mutates = %d", recs.mutates)
	}
	if _, ok := record.Metrics["arr"]; ok {
		t.Error("arr persisted locally without a CRM write")
	}
}
