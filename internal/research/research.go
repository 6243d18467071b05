// Package research provides the external web research collaborator used
// during scoring context assembly: page fetches and web search against a
// configurable search API.
package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/k3a/html2text"
)

// ErrNotConfigured indicates no search endpoint is set. Scoring proceeds
// without external research when this is returned.
var ErrNotConfigured = errors.New("research is not configured: set search endpoint and api key")

// Page is a fetched web page reduced to text.
type Page struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Hit is one web search result.
type Hit struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// System defines the public contract for research operations.
type System interface {
	Configured() bool
	FetchPage(ctx context.Context, pageURL string) (*Page, error)
	Search(ctx context.Context, query string) ([]Hit, error)
}

const (
	maxPageBytes = 2 << 20
	maxPageText  = 20_000
)

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

type client struct {
	http     *http.Client
	endpoint string
	apiKey   string
}

// New creates the research system from config.
func New(cfg *Config) System {
	return &client{
		http:     &http.Client{Timeout: cfg.TimeoutDuration()},
		endpoint: cfg.SearchEndpoint,
		apiKey:   cfg.APIKey,
	}
}

func (c *client) Configured() bool {
	return c.endpoint != "" && c.apiKey != ""
}

func (c *client) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read page: %w", err)
	}

	html := string(data)
	text := html2text.HTML2Text(html)
	if len(text) > maxPageText {
		text = text[:maxPageText]
	}

	return &Page{Title: pageTitle(html), Text: text}, nil
}

func (c *client) Search(ctx context.Context, query string) ([]Hit, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	endpoint := c.endpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: status %d", resp.StatusCode)
	}

	var payload struct {
		Results []Hit `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return payload.Results, nil
}

func pageTitle(html string) string {
	match := titlePattern.FindStringSubmatch(html)
	if len(match) < 2 {
		return ""
	}
	return strings.TrimSpace(html2text.HTML2Text(match[1]))
}
