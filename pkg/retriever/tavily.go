package retriever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/openresearch/conductor/pkg/domain"
)

const defaultTavilyEndpoint = "https://api.tavily.com"

// TavilyClient implements the Retriever interface for the Tavily search API
type TavilyClient struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// TavilyRequest represents a request to the Tavily search API
type TavilyRequest struct {
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	SearchDepth    string   `json:"search_depth,omitempty"`
}

// TavilyResponse represents a response from the Tavily search API
type TavilyResponse struct {
	Results []struct {
		URL     string `json:"url"`
		Title   string `json:"title"`
		Content string `json:"content"`
	} `json:"results"`
}

// NewTavilyClient creates a new Tavily client
func NewTavilyClient(endpoint, apiKey string, timeout time.Duration) (*TavilyClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("tavily api key is required")
	}
	if endpoint == "" {
		endpoint = defaultTavilyEndpoint
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &TavilyClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// Name identifies the backend in logs and metrics
func (c *TavilyClient) Name() string {
	return "tavily"
}

// Search implements domain.Retriever
func (c *TavilyClient) Search(ctx context.Context, query string, queryDomains []string, maxResults int) ([]domain.SearchResult, error) {
	req := TavilyRequest{
		Query:          query,
		MaxResults:     maxResults,
		IncludeDomains: queryDomains,
		SearchDepth:    "basic",
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		"POST",
		fmt.Sprintf("%s/search", c.endpoint),
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("tavily returned status %d: %s", resp.StatusCode, string(body))
	}

	var tavilyResp TavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&tavilyResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(tavilyResp.Results))
	for _, r := range tavilyResp.Results {
		results = append(results, domain.SearchResult{
			Href:    r.URL,
			Title:   r.Title,
			Snippet: r.Content,
		})
	}

	return results, nil
}
