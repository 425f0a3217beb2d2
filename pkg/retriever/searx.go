package retriever

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openresearch/conductor/pkg/domain"
)

// SearxClient implements the Retriever interface for a SearxNG instance
type SearxClient struct {
	endpoint   string
	httpClient *http.Client
}

// SearxResponse represents a response from the SearxNG JSON API
type SearxResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// NewSearxClient creates a new SearxNG client
func NewSearxClient(endpoint string, timeout time.Duration) (*SearxClient, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("searx endpoint is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &SearxClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name identifies the backend in logs and metrics
func (c *SearxClient) Name() string {
	return "searx"
}

// Search implements domain.Retriever. Domain restrictions are expressed as
// site: operators since SearxNG has no structured domain filter.
func (c *SearxClient) Search(ctx context.Context, query string, queryDomains []string, maxResults int) ([]domain.SearchResult, error) {
	params := url.Values{}
	params.Set("q", buildSiteQuery(query, queryDomains))
	params.Set("format", "json")

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"GET",
		fmt.Sprintf("%s/search?%s", c.endpoint, params.Encode()),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("searx returned status %d: %s", resp.StatusCode, string(body))
	}

	var searxResp SearxResponse
	if err := json.NewDecoder(resp.Body).Decode(&searxResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]domain.SearchResult, 0, maxResults)
	for _, r := range searxResp.Results {
		if len(results) >= maxResults {
			break
		}
		results = append(results, domain.SearchResult{
			Href:    r.URL,
			Title:   r.Title,
			Snippet: r.Content,
		})
	}

	return results, nil
}

// buildSiteQuery appends site: operators for the requested domains
func buildSiteQuery(query string, queryDomains []string) string {
	if len(queryDomains) == 0 {
		return query
	}

	sites := make([]string, 0, len(queryDomains))
	for _, d := range queryDomains {
		if d != "" {
			sites = append(sites, "site:"+d)
		}
	}
	if len(sites) == 0 {
		return query
	}
	return query + " " + strings.Join(sites, " OR ")
}
