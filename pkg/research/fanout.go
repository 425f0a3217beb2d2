package research

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/openresearch/conductor/pkg/domain"
	"github.com/openresearch/conductor/pkg/observability"
	"github.com/openresearch/conductor/pkg/state"
)

// RetrieverFanout discovers candidate URLs for a sub-query by invoking
// every configured retriever backend concurrently, deduplicating the merged
// results through the run's URL ledger, and shuffling the survivors so that
// no single backend's ranking dominates the capped scrape downstream.
type RetrieverFanout struct {
	retrievers []domain.Retriever
	maxResults int
	sink       domain.NotificationSink
	telemetry  *observability.Telemetry
	metrics    *observability.Metrics
	logger     *observability.StructuredLogger
}

// NewRetrieverFanout creates a fan-out over the given backends
func NewRetrieverFanout(
	retrievers []domain.Retriever,
	maxResults int,
	sink domain.NotificationSink,
	telemetry *observability.Telemetry,
	metrics *observability.Metrics,
) (*RetrieverFanout, error) {
	if len(retrievers) == 0 {
		return nil, fmt.Errorf("at least one retriever is required")
	}
	if maxResults <= 0 {
		maxResults = 5
	}
	if sink == nil {
		sink = domain.NopSink{}
	}

	return &RetrieverFanout{
		retrievers: retrievers,
		maxResults: maxResults,
		sink:       sink,
		telemetry:  telemetry,
		metrics:    metrics,
		logger:     observability.NewStructuredLogger("retriever_fanout"),
	}, nil
}

// Discover returns the new, deduplicated, shuffled URLs for the sub-query.
// Each backend runs on its own goroutine so one slow backend does not stall
// the others, and a failing backend is contained: its error is logged and
// it contributes zero URLs.
func (f *RetrieverFanout) Discover(ctx context.Context, run *state.RunState, subQuery string, queryDomains []string) []string {
	// Gather positionally so the merge order is the backend registration
	// order, independent of completion order.
	perBackend := make([][]string, len(f.retrievers))

	var wg sync.WaitGroup
	for i, retriever := range f.retrievers {
		wg.Add(1)
		go func(idx int, r domain.Retriever) {
			defer wg.Done()
			perBackend[idx] = f.searchBackend(ctx, r, subQuery, queryDomains)
		}(i, retriever)
	}
	wg.Wait()

	var candidates []string
	for _, urls := range perBackend {
		candidates = append(candidates, urls...)
	}

	fresh := run.Ledger.Register(candidates)

	if f.metrics != nil {
		f.metrics.RecordURLsDiscovered(ctx, len(fresh))
	}
	if run.Task.Verbose {
		for _, url := range fresh {
			f.sink.Notify(ctx, domain.EventAddedSourceURL,
				fmt.Sprintf("✅ Added source url to research: %s", url), url)
		}
	}

	rand.Shuffle(len(fresh), func(i, j int) {
		fresh[i], fresh[j] = fresh[j], fresh[i]
	})

	return fresh
}

// searchBackend runs one backend and absorbs its failure
func (f *RetrieverFanout) searchBackend(ctx context.Context, r domain.Retriever, subQuery string, queryDomains []string) []string {
	var urls []string

	search := func(ctx context.Context) (int, error) {
		results, err := r.Search(ctx, subQuery, queryDomains, f.maxResults)
		if err != nil {
			return 0, err
		}
		for _, result := range results {
			if result.Href != "" {
				urls = append(urls, result.Href)
			}
		}
		return len(urls), nil
	}

	startTime := time.Now()

	var err error
	if f.telemetry != nil {
		err = f.telemetry.InstrumentRetrieverSearch(ctx, r.Name(), subQuery, search)
	} else {
		_, err = search(ctx)
	}

	if f.metrics != nil {
		f.metrics.RecordRetrieverSearch(ctx, r.Name(), time.Since(startTime), err)
	}

	if err != nil {
		// One failing backend must not abort discovery from the others.
		f.logger.Warn(ctx, "Retriever backend failed",
			map[string]interface{}{
				"backend": r.Name(),
				"query":   subQuery,
				"error":   err.Error(),
			},
		)
		return nil
	}

	return urls
}
