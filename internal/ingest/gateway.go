// Package ingest implements the link ingestion gateway: it resolves
// externally hosted document links, both ordinary web pages and the gated
// pitch-deck hosting pattern, into extracted text with an explicit outcome
// classification.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/k3a/html2text"
)

// Status classifies the outcome of a link resolution.
type Status string

const (
	StatusIngested      Status = "ingested"
	StatusEmailRequired Status = "email_required"
	StatusFailed        Status = "failed"
)

// Result carries the resolution outcome and any extracted text.
type Result struct {
	Status Status `json:"status"`
	Text   string `json:"text,omitempty"`
	Title  string `json:"title,omitempty"`
}

// Page is the simple-path fetch result for non-gated links.
type Page struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// System defines the public contract for link resolution.
type System interface {
	// Resolve runs the full gated-hosting algorithm against the link.
	// accessEmail may be empty; without it a gated link resolves to
	// StatusEmailRequired instead of attempting a bypass.
	Resolve(ctx context.Context, link, accessEmail string) (Result, error)
	// FetchPage fetches a non-gated page and returns title plus body text,
	// truncated to a bounded size.
	FetchPage(ctx context.Context, link string) (Page, error)
}

type gateway struct {
	client    *http.Client
	mirrorURL string
	maxBytes  int64
	logger    *slog.Logger
}

// New creates a link ingestion gateway. Each fetch attempt is bounded by the
// client timeout from cfg; mirrorURL, when set, is a server-side rendering
// mirror used as the final fallback for gated hosts.
func New(cfg *Config, logger *slog.Logger) System {
	return &gateway{
		client:    &http.Client{Timeout: cfg.FetchTimeoutDuration()},
		mirrorURL: cfg.MirrorURL,
		maxBytes:  cfg.MaxFetchBytes,
		logger:    logger.With("system", "ingest"),
	}
}

var (
	titlePattern    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaDescPattern = regexp.MustCompile(`(?is)<meta\s+name=["']description["']\s+content=["']([^"']*)["']`)

	gatePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)enter your (work )?email`),
		regexp.MustCompile(`(?i)email (address )?to (view|access|continue)`),
		regexp.MustCompile(`(?i)verify your email`),
		regexp.MustCompile(`(?i)requires? an email`),
		regexp.MustCompile(`(?i)name=["']visitor\[email\]["']`),
	}

	// Gated hosts embed a numbered sequence of per-page data endpoints in
	// the initial HTML; each resolves to page text or JSON-wrapped text.
	pageDataPattern = regexp.MustCompile(`["']((?:https?://[^"']+|/)[^"']*page[_-]?data[^"']*?\d+[^"']*)["']`)
)

// Field-name variants tried when posting an access email through a gate.
var gateFormFields = []string{"email", "visitor[email]", "user_email", "viewer_email"}

func (g *gateway) Resolve(ctx context.Context, link, accessEmail string) (Result, error) {
	if !validURL(link) {
		return Result{}, fmt.Errorf("%w: %s", ErrInvalidURL, link)
	}

	body, err := g.fetch(ctx, link)
	if err != nil {
		g.logger.Warn("direct fetch failed", "url", link, "error", err)
		return g.mirrorFallback(ctx, link, StatusFailed)
	}

	if !isGated(body) {
		text := htmlToText(body)
		if !LowQuality(text, link) {
			return Result{Status: StatusIngested, Text: text, Title: extractTitle(body)}, nil
		}
		return g.mirrorFallback(ctx, link, StatusFailed)
	}

	if accessEmail != "" {
		if result, ok := g.bypassGate(ctx, link, accessEmail); ok {
			return result, nil
		}
	}

	if text := g.fetchPageData(ctx, link, body); text != "" {
		return Result{Status: StatusIngested, Text: text, Title: extractTitle(body)}, nil
	}

	fallbackStatus := StatusEmailRequired
	if accessEmail != "" {
		// Bypass was attempted and failed; a retry with the same email
		// will not fare better.
		fallbackStatus = StatusFailed
	}
	return g.mirrorFallback(ctx, link, fallbackStatus)
}

func (g *gateway) FetchPage(ctx context.Context, link string) (Page, error) {
	if !validURL(link) {
		return Page{}, fmt.Errorf("%w: %s", ErrInvalidURL, link)
	}

	body, err := g.fetch(ctx, link)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	title := extractTitle(body)
	text := htmlToText(body)

	if desc := extractMetaDescription(body); desc != "" {
		text = desc + "\n\n" + text
	}
	if title != "" {
		text = title + "\n\n" + text
	}

	return Page{Title: title, Text: truncateText(text, 8192)}, nil
}

// bypassGate posts candidate form payloads with several field-name variants,
// accepting the first response that no longer looks gated.
func (g *gateway) bypassGate(ctx context.Context, link, email string) (Result, bool) {
	for _, field := range gateFormFields {
		form := url.Values{field: {email}}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, link, strings.NewReader(form.Encode()))
		if err != nil {
			continue
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		body, err := g.do(req)
		if err != nil {
			continue
		}

		if !isGated(body) {
			text := htmlToText(body)
			if !LowQuality(text, link) {
				g.logger.Info("gate bypassed", "url", link, "field", field)
				return Result{Status: StatusIngested, Text: text, Title: extractTitle(body)}, true
			}
		}
	}

	return Result{}, false
}

// fetchPageData enumerates page-data endpoints discovered in the initial
// HTML and concatenates page-tagged chunks of whatever text they expose.
func (g *gateway) fetchPageData(ctx context.Context, link, body string) string {
	matches := pageDataPattern.FindAllStringSubmatch(body, -1)
	if len(matches) == 0 {
		return ""
	}

	base, err := url.Parse(link)
	if err != nil {
		return ""
	}

	var sb strings.Builder
	seen := make(map[string]bool)

	for i, match := range matches {
		endpoint := match[1]
		if seen[endpoint] {
			continue
		}
		seen[endpoint] = true

		ref, err := url.Parse(endpoint)
		if err != nil {
			continue
		}

		pageBody, err := g.fetch(ctx, base.ResolveReference(ref).String())
		if err != nil {
			continue
		}

		text := extractPageText(pageBody)
		if strings.TrimSpace(text) == "" {
			continue
		}

		fmt.Fprintf(&sb, "[Page %d]\n%s\n\n", i+1, text)
	}

	return strings.TrimSpace(sb.String())
}

func (g *gateway) mirrorFallback(ctx context.Context, link string, exhausted Status) (Result, error) {
	if g.mirrorURL == "" {
		return Result{Status: exhausted}, nil
	}

	body, err := g.fetch(ctx, g.mirrorURL+url.QueryEscape(link))
	if err != nil {
		g.logger.Warn("mirror fetch failed", "url", link, "error", err)
		return Result{Status: exhausted}, nil
	}

	text := htmlToText(body)
	if LowQuality(text, link) {
		return Result{Status: exhausted}, nil
	}

	return Result{Status: StatusIngested, Text: text}, nil
}

func (g *gateway) fetch(ctx context.Context, link string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return "", err
	}
	return g.do(req)
}

func (g *gateway) do(req *http.Request) (string, error) {
	req.Header.Set("User-Agent", "dealdesk/1.0")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, g.maxBytes))
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// extractPageText pulls text signals from a page-data response: JSON string
// fields named like text/content when the body is JSON, HTML text otherwise.
func extractPageText(body string) string {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			var sb strings.Builder
			collectTextFields(decoded, &sb)
			return sb.String()
		}
	}
	return htmlToText(body)
}

func collectTextFields(v any, sb *strings.Builder) {
	switch t := v.(type) {
	case map[string]any:
		for key, val := range t {
			lower := strings.ToLower(key)
			if s, ok := val.(string); ok && (strings.Contains(lower, "text") || strings.Contains(lower, "content") || lower == "title") {
				sb.WriteString(s)
				sb.WriteString("\n")
				continue
			}
			collectTextFields(val, sb)
		}
	case []any:
		for _, item := range t {
			collectTextFields(item, sb)
		}
	}
}

func isGated(body string) bool {
	for _, pattern := range gatePatterns {
		if pattern.MatchString(body) {
			return true
		}
	}
	return false
}

func htmlToText(body string) string {
	return strings.TrimSpace(html2text.HTML2Text(body))
}

func extractTitle(body string) string {
	if m := titlePattern.FindStringSubmatch(body); len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func extractMetaDescription(body string) string {
	if m := metaDescPattern.FindStringSubmatch(body); len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func validURL(link string) bool {
	u, err := url.Parse(link)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func truncateText(text string, limit int) string {
	if len(text) > limit {
		return text[:limit]
	}
	return text
}
