// Package crm implements the client for the external CRM that serves as the
// system of record for deal stage, pipeline, amount, and priority. Responses
// are parsed defensively: any shape violation surfaces ErrMalformedResponse
// rather than propagating partially decoded data.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// System defines the public contract for CRM operations. All updates are
// partial: unspecified properties are left untouched on the remote object.
type System interface {
	Configured() bool

	GetDeal(ctx context.Context, id string, properties []string) (*Deal, error)
	UpdateDeal(ctx context.Context, id string, properties map[string]string) (*Deal, error)
	CreateDeal(ctx context.Context, properties map[string]string, companyID string) (*Deal, error)

	GetCompany(ctx context.Context, id string, properties []string) (*Company, error)
	UpdateCompany(ctx context.Context, id string, properties map[string]string) (*Company, error)
	CreateCompany(ctx context.Context, properties map[string]string) (*Company, error)

	SearchDealsByName(ctx context.Context, name string, limit int) ([]Deal, error)
	ListPipelines(ctx context.Context) ([]Pipeline, error)
}

type client struct {
	http    *http.Client
	baseURL string
	token   string
}

// NewClient creates the CRM system from config. A client built without a
// base URL or token is valid but reports Configured() false and returns
// ErrNotConfigured from every operation.
func NewClient(cfg *Config) System {
	return &client{
		http:    &http.Client{Timeout: cfg.TimeoutDuration()},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AccessToken,
	}
}

func (c *client) Configured() bool {
	return c.baseURL != "" && c.token != ""
}

func (c *client) GetDeal(ctx context.Context, id string, properties []string) (*Deal, error) {
	envelope, err := c.getObject(ctx, "/crm/v3/objects/deals/"+url.PathEscape(id), properties)
	if err != nil {
		return nil, err
	}
	return envelope.toDeal()
}

func (c *client) UpdateDeal(ctx context.Context, id string, properties map[string]string) (*Deal, error) {
	envelope, err := c.patchObject(ctx, "/crm/v3/objects/deals/"+url.PathEscape(id), properties)
	if err != nil {
		return nil, err
	}
	return envelope.toDeal()
}

func (c *client) CreateDeal(ctx context.Context, properties map[string]string, companyID string) (*Deal, error) {
	body := map[string]any{"properties": properties}
	if companyID != "" {
		body["associations"] = []map[string]any{
			{"to": map[string]string{"id": companyID}, "types": []map[string]any{
				{"associationCategory": "HUBSPOT_DEFINED", "associationTypeId": 5},
			}},
		}
	}

	var envelope objectEnvelope
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/deals", body, &envelope, true); err != nil {
		return nil, err
	}
	return envelope.toDeal()
}

func (c *client) GetCompany(ctx context.Context, id string, properties []string) (*Company, error) {
	envelope, err := c.getObject(ctx, "/crm/v3/objects/companies/"+url.PathEscape(id), properties)
	if err != nil {
		return nil, err
	}
	return envelope.toCompany()
}

func (c *client) UpdateCompany(ctx context.Context, id string, properties map[string]string) (*Company, error) {
	envelope, err := c.patchObject(ctx, "/crm/v3/objects/companies/"+url.PathEscape(id), properties)
	if err != nil {
		return nil, err
	}
	return envelope.toCompany()
}

func (c *client) CreateCompany(ctx context.Context, properties map[string]string) (*Company, error) {
	var envelope objectEnvelope
	body := map[string]any{"properties": properties}
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/companies", body, &envelope, true); err != nil {
		return nil, err
	}
	return envelope.toCompany()
}

func (c *client) SearchDealsByName(ctx context.Context, name string, limit int) ([]Deal, error) {
	body := map[string]any{
		"filterGroups": []map[string]any{
			{"filters": []map[string]string{
				{"propertyName": PropDealName, "operator": "CONTAINS_TOKEN", "value": name},
			}},
		},
		"properties": []string{PropDealName, PropDealStage, PropDealPipeline, PropDealAmount, PropDealPriority},
		"limit":      limit,
	}

	var envelope searchEnvelope
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/deals/search", body, &envelope, false); err != nil {
		return nil, err
	}

	deals := make([]Deal, 0, len(envelope.Results))
	for _, raw := range envelope.Results {
		deal, err := raw.toDeal()
		if err != nil {
			return nil, err
		}
		deals = append(deals, *deal)
	}
	return deals, nil
}

func (c *client) ListPipelines(ctx context.Context) ([]Pipeline, error) {
	var envelope pipelineEnvelope
	if err := c.do(ctx, http.MethodGet, "/crm/v3/pipelines/deals", nil, &envelope, false); err != nil {
		return nil, err
	}
	return envelope.toPipelines()
}

func (c *client) getObject(ctx context.Context, path string, properties []string) (*objectEnvelope, error) {
	if len(properties) > 0 {
		path += "?properties=" + url.QueryEscape(strings.Join(properties, ","))
	}

	var envelope objectEnvelope
	if err := c.do(ctx, http.MethodGet, path, nil, &envelope, false); err != nil {
		return nil, err
	}
	return &envelope, nil
}

func (c *client) patchObject(ctx context.Context, path string, properties map[string]string) (*objectEnvelope, error) {
	var envelope objectEnvelope
	body := map[string]any{"properties": properties}
	if err := c.do(ctx, http.MethodPatch, path, body, &envelope, true); err != nil {
		return nil, err
	}
	return &envelope, nil
}

// do executes one CRM API call. isWrite selects the error wrapped for
// non-2xx responses so write-through callers can distinguish rejected writes
// from read failures.
func (c *client) do(ctx context.Context, method, path string, body, out any, isWrite bool) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode crm request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build crm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isWrite {
			return fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		return fmt.Errorf("crm request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read crm response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400 && isWrite:
		return fmt.Errorf("%w: status %d: %s", ErrWriteFailed, resp.StatusCode, summary(data))
	case resp.StatusCode >= 400:
		return fmt.Errorf("crm returned status %d: %s", resp.StatusCode, summary(data))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

func summary(data []byte) string {
	s := strings.TrimSpace(string(data))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
