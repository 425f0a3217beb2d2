package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openresearch/conductor/pkg/domain"
	"github.com/openresearch/conductor/pkg/observability"
	"github.com/openresearch/conductor/pkg/scraper"
)

// OnlineLoader fetches research documents from a list of URLs. Like the
// filesystem loader it skips individual failures and returns ErrNoDocuments
// when nothing could be fetched.
type OnlineLoader struct {
	urls       []string
	httpClient *http.Client
	logger     *observability.StructuredLogger
}

// NewOnlineLoader creates a loader over the given URLs
func NewOnlineLoader(urls []string, timeout time.Duration) *OnlineLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &OnlineLoader{
		urls: urls,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: observability.NewStructuredLogger("online_loader"),
	}
}

// Load implements domain.DocumentLoader
func (l *OnlineLoader) Load(ctx context.Context) ([]domain.Document, error) {
	gathered := make([]*domain.Document, len(l.urls))

	g, ctx := errgroup.WithContext(ctx)
	for i, url := range l.urls {
		g.Go(func() error {
			doc, err := l.fetch(ctx, url)
			if err != nil {
				l.logger.Warn(ctx, "Skipping unreachable document",
					map[string]interface{}{
						"url":   url,
						"error": err.Error(),
					},
				)
				return nil
			}
			gathered[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	documents := make([]domain.Document, 0, len(l.urls))
	for _, doc := range gathered {
		if doc != nil {
			documents = append(documents, *doc)
		}
	}

	if len(documents) == 0 {
		return nil, fmt.Errorf("loading %d urls: %w", len(l.urls), domain.ErrNoDocuments)
	}
	return documents, nil
}

// fetch retrieves one document URL
func (l *OnlineLoader) fetch(ctx context.Context, url string) (*domain.Document, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	content := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		content = scraper.ExtractText(content)
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
