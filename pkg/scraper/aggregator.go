package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/sync/semaphore"

	"github.com/openresearch/conductor/pkg/domain"
	"github.com/openresearch/conductor/pkg/observability"
)

// Aggregator fetches page content for a batch of URLs. Fetches run
// concurrently under a semaphore cap; a URL that fails to fetch or yields
// no text is skipped, never surfaced as an error. HTML responses are
// reduced to their visible text.
type Aggregator struct {
	httpClient     *http.Client
	userAgent      string
	maxBodyBytes   int64
	maxConcurrency int64
	logger         *observability.StructuredLogger
}

// Options configures an Aggregator
type Options struct {
	Timeout        time.Duration
	UserAgent      string
	MaxConcurrency int
	MaxBodyBytes   int64
}

// NewAggregator creates a scrape aggregator
func NewAggregator(opts Options) *Aggregator {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "research-conductor/0.1"
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 8
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 2 << 20
	}

	return &Aggregator{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		userAgent:      opts.UserAgent,
		maxBodyBytes:   opts.MaxBodyBytes,
		maxConcurrency: int64(opts.MaxConcurrency),
		logger:         observability.NewStructuredLogger("scraper"),
	}
}

// Browse implements domain.Scraper. Results keep the order of the input
// URLs; failed URLs are absent.
func (a *Aggregator) Browse(ctx context.Context, urls []string) ([]domain.Document, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	gathered := make([]*domain.Document, len(urls))
	sem := semaphore.NewWeighted(a.maxConcurrency)

	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func(idx int, target string) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			doc, err := a.fetch(ctx, target)
			if err != nil {
				a.logger.Warn(ctx, "Scrape failed",
					map[string]interface{}{
						"url":   target,
						"error": err.Error(),
					},
				)
				return
			}
			gathered[idx] = doc
		}(i, url)
	}
	wg.Wait()

	documents := make([]domain.Document, 0, len(urls))
	for _, doc := range gathered {
		if doc != nil {
			documents = append(documents, *doc)
		}
	}
	return documents, nil
}

// fetch retrieves one URL and extracts its text content
func (a *Aggregator) fetch(ctx context.Context, url string) (*domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, a.maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	content := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		content = ExtractText(content)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("no text content")
	}

	return &domain.Document{
		RawContent: content,
		Source:     url,
	}, nil
}

// ExtractText reduces an HTML document to its visible text. Script and
// style subtrees are dropped; block boundaries become newlines.
func ExtractText(htmlContent string) string {
	root, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return htmlContent
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "br", "li", "h1", "h2", "h3", "h4", "h5", "h6", "tr":
				sb.WriteString("\n")
			}
		}
	}
	walk(root)

	lines := strings.Split(sb.String(), "\n")
	var cleaned []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}
