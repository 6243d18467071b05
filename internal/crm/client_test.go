package crm_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/strata-vc/dealdesk/internal/crm"
)

func newTestClient(t *testing.T) crm.System {
	t.Helper()
	httpmock.Activate()
	t.Cleanup(httpmock.DeactivateAndReset)

	return crm.NewClient(&crm.Config{
		BaseURL:     "https://crm.test",
		AccessToken: "token",
		Timeout:     "5s",
	})
}

func TestClientNotConfigured(t *testing.T) {
	c := crm.NewClient(&crm.Config{})

	if c.Configured() {
		t.Error("empty config reported configured")
	}

	_, err := c.GetDeal(context.Background(), "1", nil)
	if !errors.Is(err, crm.ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}
}

func TestGetDeal(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("GET", "https://crm.test/crm/v3/objects/deals/42",
		httpmock.NewStringResponder(200, `{
			"id": "42",
			"properties": {
				"dealname": "Acme Seed",
				"dealstage": "qualified",
				"pipeline": "default",
				"amount": "4000000",
				"priority": "high",
				"empty_prop": null
			},
			"associations": {"companies": [{"id": "7"}]}
		}`))

	deal, err := c.GetDeal(context.Background(), "42", []string{"dealname"})
	if err != nil {
		t.Fatalf("GetDeal: %v", err)
	}

	if deal.ID != "42" || deal.Name != "Acme Seed" || deal.StageID != "qualified" {
		t.Errorf("deal = %+v", deal)
	}
	if deal.Amount != "4000000" || deal.Priority != "high" || deal.CompanyID != "7" {
		t.Errorf("deal = %+v", deal)
	}
	if _, ok := deal.Properties["empty_prop"]; ok {
		t.Error("null property not dropped")
	}
}

func TestGetDealNotFound(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("GET", "https://crm.test/crm/v3/objects/deals/99",
		httpmock.NewStringResponder(404, `{"status":"error"}`))

	_, err := c.GetDeal(context.Background(), "99", nil)
	if !errors.Is(err, crm.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestGetDealMissingID(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("GET", "https://crm.test/crm/v3/objects/deals/42",
		httpmock.NewStringResponder(200, `{"properties": {}}`))

	_, err := c.GetDeal(context.Background(), "42", nil)
	if !errors.Is(err, crm.ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestUpdateDealWriteFailure(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("PATCH", "https://crm.test/crm/v3/objects/deals/42",
		httpmock.NewStringResponder(500, `{"status":"error"}`))

	_, err := c.UpdateDeal(context.Background(), "42", map[string]string{"dealstage": "won"})
	if !errors.Is(err, crm.ErrWriteFailed) {
		t.Errorf("err = %v, want ErrWriteFailed", err)
	}
}

func TestUpdateDeal(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("PATCH", "https://crm.test/crm/v3/objects/deals/42",
		func(req *http.Request) (*http.Response, error) {
			if auth := req.Header.Get("Authorization"); auth != "Bearer token" {
				t.Errorf("Authorization = %q", auth)
			}
			return httpmock.NewStringResponse(200,
				`{"id": "42", "properties": {"dealstage": "won"}}`), nil
		})

	deal, err := c.UpdateDeal(context.Background(), "42", map[string]string{"dealstage": "won"})
	if err != nil {
		t.Fatalf("UpdateDeal: %v", err)
	}
	if deal.StageID != "won" {
		t.Errorf("deal = %+v", deal)
	}
}

func TestSearchDealsByName(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("POST", "https://crm.test/crm/v3/objects/deals/search",
		httpmock.NewStringResponder(200, `{
			"total": 2,
			"results": [
				{"id": "1", "properties": {"dealname": "Acme"}},
				{"id": "2", "properties": {"dealname": "Acme Robotics"}}
			]
		}`))

	deals, err := c.SearchDealsByName(context.Background(), "Acme", 25)
	if err != nil {
		t.Fatalf("SearchDealsByName: %v", err)
	}
	if len(deals) != 2 || deals[0].Name != "Acme" || deals[1].ID != "2" {
		t.Errorf("deals = %+v", deals)
	}
}

func TestListPipelines(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("GET", "https://crm.test/crm/v3/pipelines/deals",
		httpmock.NewStringResponder(200, `{
			"results": [
				{"id": "default", "label": "Sales", "stages": [
					{"id": "s1", "label": "Qualified"},
					{"id": "s2", "label": "Won"}
				]}
			]
		}`))

	pipelines, err := c.ListPipelines(context.Background())
	if err != nil {
		t.Fatalf("ListPipelines: %v", err)
	}
	if len(pipelines) != 1 || pipelines[0].ID != "default" || len(pipelines[0].Stages) != 2 {
		t.Errorf("pipelines = %+v", pipelines)
	}
}

func TestListPipelinesMalformed(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("GET", "https://crm.test/crm/v3/pipelines/deals",
		httpmock.NewStringResponder(200, `{"results": [{"label": "no id"}]}`))

	_, err := c.ListPipelines(context.Background())
	if !errors.Is(err, crm.ErrMalformedResponse) {
		t.Errorf("err = %v, want ErrMalformedResponse", err)
	}
}

func TestCreateDealAssociatesCompany(t *testing.T) {
	c := newTestClient(t)

	httpmock.RegisterResponder("POST", "https://crm.test/crm/v3/objects/deals",
		func(req *http.Request) (*http.Response, error) {
			var body struct {
				Properties   map[string]string `json:"properties"`
				Associations []any             `json:"associations"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				t.Errorf("decode create body: %v", err)
			}
			if len(body.Associations) == 0 {
				t.Error("company association missing from create body")
			}
			return httpmock.NewStringResponse(201,
				`{"id": "50", "properties": {"dealname": "Acme Seed"}}`), nil
		})

	deal, err := c.CreateDeal(context.Background(), map[string]string{"dealname": "Acme Seed"}, "7")
	if err != nil {
		t.Fatalf("CreateDeal: %v", err)
	}
	if deal.ID != "50" {
		t.Errorf("deal = %+v", deal)
	}
}
