package domain

import (
	"context"
	"errors"
)

// ErrNoDocuments is returned by document loaders when nothing could be
// loaded. It is fatal for the local, hybrid and document-seeded strategies.
var ErrNoDocuments = errors.New("no documents could be loaded")

// Planner produces the ordered sub-query plan for a research query.
// A planner failure aborts the orchestration pass that requested it.
type Planner interface {
	// Plan returns the sub-queries derived from the query. documentContext
	// may carry a preview of loaded documents to steer the plan; it is
	// empty for pure web research.
	Plan(ctx context.Context, query string, queryDomains []string, documentContext string) ([]string, error)
}

// CostAwarePlanner is an optional upgrade of Planner for implementations
// that can report their LLM spend to a run-scoped cost meter.
type CostAwarePlanner interface {
	Planner
	PlanWithCosts(ctx context.Context, query string, queryDomains []string, documentContext string, costs CostMeter) ([]string, error)
}

// Retriever is a single search backend. Several retrievers may be active
// at once; the fan-out invokes each and merges their results.
type Retriever interface {
	// Name identifies the backend in logs and metrics
	Name() string

	// Search returns candidate results for the query. Implementations may
	// block; callers run Search off the orchestration goroutine.
	Search(ctx context.Context, query string, queryDomains []string, maxResults int) ([]SearchResult, error)
}

// Scraper fetches raw page content for a set of URLs. Scraping is opaque
// to the conduction core: it may be slow, it may fail for some or all URLs,
// and retry policy belongs to the implementation, not the caller.
type Scraper interface {
	// Browse returns a document per successfully scraped URL. An empty
	// result is not an error.
	Browse(ctx context.Context, urls []string) ([]Document, error)
}

// ContextFilter trims a document set down to the content relevant to a
// query. Empty output means "nothing relevant", not failure.
type ContextFilter interface {
	Filter(ctx context.Context, query string, documents []Document) (string, error)
}

// DocumentLoader loads documents from files, directories or URLs.
// Implementations return ErrNoDocuments when the result set is empty.
type DocumentLoader interface {
	Load(ctx context.Context) ([]Document, error)
}

// VectorStore is the optional external vector index. Load is called with
// scraped or loaded documents as they are produced; Query resolves a
// sub-query directly against the index.
type VectorStore interface {
	Load(ctx context.Context, documents []Document) error

	// Query returns relevant stored content as text. filter restricts the
	// search to the given sources; nil means no restriction.
	Query(ctx context.Context, query string, filter []string) (string, error)
}

// SourceCurator re-ranks and prunes assembled research context. Curation
// failures must not lose the raw context: callers fall back to it.
type SourceCurator interface {
	Curate(ctx context.Context, researchData []string) ([]string, error)
}

// NotificationSink receives progress events during a run. Notify is
// fire-and-forget: implementations must not block and their failures are
// never surfaced to the pipeline.
type NotificationSink interface {
	Notify(ctx context.Context, eventType, message string, payload interface{})
}

// NopSink discards all notifications. It is the default sink, keeping the
// pipeline free of any transport dependency.
type NopSink struct{}

// Notify implements NotificationSink
func (NopSink) Notify(ctx context.Context, eventType, message string, payload interface{}) {}

// CostMeter accumulates the monetary cost of a run
type CostMeter interface {
	AddCost(amount float64)
	Total() float64
}

// JoinPolicy combines the document-derived and web-derived context legs of
// a hybrid run into one text.
type JoinPolicy interface {
	JoinLocalWeb(docsContext, webContext string) string
}

// LLM contracts, consumed by the planner and the embedding-backed
// vector store.

// LLMClient defines the interface for language model interactions
type LLMClient interface {
	// Chat performs a chat completion
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (*ChatResponse, error)

	// Stream performs a streaming chat completion
	Stream(ctx context.Context, messages []Message, opts ChatOptions) (<-chan ChatStreamResponse, error)

	// Embed generates embeddings for text
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Message represents a chat message
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatOptions provides options for chat completions
type ChatOptions struct {
	Model       string   `json:"model,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	Content      string     `json:"content"`
	Usage        TokenUsage `json:"usage"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// ChatStreamResponse represents a streaming chat response chunk
type ChatStreamResponse struct {
	Content string      `json:"content,omitempty"`
	Usage   *TokenUsage `json:"usage,omitempty"`
	Done    bool        `json:"done"`
	Error   error       `json:"error,omitempty"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
