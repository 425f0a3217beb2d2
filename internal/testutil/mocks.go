package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/openresearch/conductor/pkg/domain"
)

// MockPlanner is a mock implementation of Planner for testing
type MockPlanner struct {
	mu          sync.Mutex
	SubQueries  []string
	CallCount   int
	LastQuery   string
	LastContext string
	ShouldError bool
	// PlanFunc allows custom planning behavior for tests
	PlanFunc func(ctx context.Context, query string, queryDomains []string, documentContext string) ([]string, error)
}

// Plan implements domain.Planner
func (m *MockPlanner) Plan(ctx context.Context, query string, queryDomains []string, documentContext string) ([]string, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastQuery = query
	m.LastContext = documentContext
	m.mu.Unlock()

	if m.PlanFunc != nil {
		return m.PlanFunc(ctx, query, queryDomains, documentContext)
	}
	if m.ShouldError {
		return nil, fmt.Errorf("mock planning error")
	}
	return append([]string(nil), m.SubQueries...), nil
}

// GetCallCount returns the number of Plan calls made
func (m *MockPlanner) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockRetriever is a mock implementation of Retriever for testing
type MockRetriever struct {
	mu          sync.Mutex
	BackendName string
	Results     []domain.SearchResult
	CallCount   int
	LastQuery   string
	ShouldError bool
	// SearchFunc allows custom search behavior for tests
	SearchFunc func(ctx context.Context, query string, queryDomains []string, maxResults int) ([]domain.SearchResult, error)
}

// Name implements domain.Retriever
func (m *MockRetriever) Name() string {
	if m.BackendName == "" {
		return "mock"
	}
	return m.BackendName
}

// Search implements domain.Retriever
func (m *MockRetriever) Search(ctx context.Context, query string, queryDomains []string, maxResults int) ([]domain.SearchResult, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastQuery = query
	m.mu.Unlock()

	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, queryDomains, maxResults)
	}
	if m.ShouldError {
		return nil, fmt.Errorf("mock search error")
	}
	return append([]domain.SearchResult(nil), m.Results...), nil
}

// GetCallCount returns the number of Search calls made
func (m *MockRetriever) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockScraper is a mock implementation of Scraper for testing
type MockScraper struct {
	mu          sync.Mutex
	Documents   []domain.Document
	CallCount   int
	SeenURLs    [][]string
	ShouldError bool
	// BrowseFunc allows custom scraping behavior for tests
	BrowseFunc func(ctx context.Context, urls []string) ([]domain.Document, error)
}

// Browse implements domain.Scraper
func (m *MockScraper) Browse(ctx context.Context, urls []string) ([]domain.Document, error) {
	m.mu.Lock()
	m.CallCount++
	m.SeenURLs = append(m.SeenURLs, append([]string(nil), urls...))
	m.mu.Unlock()

	if m.BrowseFunc != nil {
		return m.BrowseFunc(ctx, urls)
	}
	if m.ShouldError {
		return nil, fmt.Errorf("mock scraping error")
	}
	return append([]domain.Document(nil), m.Documents...), nil
}

// GetCallCount returns the number of Browse calls made
func (m *MockScraper) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// MockContextFilter is a mock implementation of ContextFilter for testing
type MockContextFilter struct {
	mu          sync.Mutex
	Content     string
	CallCount   int
	ShouldError bool
	// FilterFunc allows custom filtering behavior for tests
	FilterFunc func(ctx context.Context, query string, documents []domain.Document) (string, error)
}

// Filter implements domain.ContextFilter
func (m *MockContextFilter) Filter(ctx context.Context, query string, documents []domain.Document) (string, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()

	if m.FilterFunc != nil {
		return m.FilterFunc(ctx, query, documents)
	}
	if m.ShouldError {
		return "", fmt.Errorf("mock filter error")
	}
	return m.Content, nil
}

// MockDocumentLoader is a mock implementation of DocumentLoader for testing
type MockDocumentLoader struct {
	Documents []domain.Document
	Err       error
}

// Load implements domain.DocumentLoader
func (m *MockDocumentLoader) Load(ctx context.Context) ([]domain.Document, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return append([]domain.Document(nil), m.Documents...), nil
}

// MockVectorStore is a mock implementation of VectorStore for testing
type MockVectorStore struct {
	mu          sync.Mutex
	Loaded      []domain.Document
	QueryResult string
	QueryCount  int
	LoadErr     error
	QueryErr    error
}

// Load implements domain.VectorStore
func (m *MockVectorStore) Load(ctx context.Context, documents []domain.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return m.LoadErr
	}
	m.Loaded = append(m.Loaded, documents...)
	return nil
}

// Query implements domain.VectorStore
func (m *MockVectorStore) Query(ctx context.Context, query string, filter []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QueryCount++
	if m.QueryErr != nil {
		return "", m.QueryErr
	}
	return m.QueryResult, nil
}

// LoadedCount returns how many documents were loaded
func (m *MockVectorStore) LoadedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Loaded)
}

// MockCurator is a mock implementation of SourceCurator for testing
type MockCurator struct {
	Curated     []string
	CallCount   int
	ShouldError bool
}

// Curate implements domain.SourceCurator
func (m *MockCurator) Curate(ctx context.Context, researchData []string) ([]string, error) {
	m.CallCount++
	if m.ShouldError {
		return nil, fmt.Errorf("mock curation error")
	}
	return m.Curated, nil
}

// RecordingSink records every notification it receives
type RecordingSink struct {
	mu     sync.Mutex
	Events []SinkEvent
}

// SinkEvent is one recorded notification
type SinkEvent struct {
	Type    string
	Message string
	Payload interface{}
}

// Notify implements domain.NotificationSink
func (s *RecordingSink) Notify(ctx context.Context, eventType, message string, payload interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, SinkEvent{Type: eventType, Message: message, Payload: payload})
}

// EventsOfType returns the recorded events with the given type
func (s *RecordingSink) EventsOfType(eventType string) []SinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []SinkEvent
	for _, event := range s.Events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// MockLLMClient is a mock implementation of LLMClient for testing
type MockLLMClient struct {
	mu           sync.Mutex
	Responses    map[string]string
	CallCount    int
	LastMessages []domain.Message
	ShouldError  bool
	ErrorMessage string
	Embedding    []float64
	// ChatFunc allows custom chat behavior for tests
	ChatFunc func(ctx context.Context, messages []domain.Message, options domain.ChatOptions) (*domain.ChatResponse, error)
	// EmbedFunc allows custom embedding behavior for tests
	EmbedFunc func(ctx context.Context, text string) ([]float64, error)
}

// NewMockLLMClient creates a new mock LLM client
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{
		Responses: make(map[string]string),
	}
}

// Chat implements domain.LLMClient
func (m *MockLLMClient) Chat(ctx context.Context, messages []domain.Message, options domain.ChatOptions) (*domain.ChatResponse, error) {
	m.mu.Lock()
	m.CallCount++
	m.LastMessages = messages
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, messages, options)
	}
	if m.ShouldError {
		return nil, fmt.Errorf("%s", m.ErrorMessage)
	}

	var content string
	if len(messages) > 0 {
		lastMsg := messages[len(messages)-1]
		if resp, ok := m.Responses[lastMsg.Content]; ok {
			content = resp
		} else if resp, ok := m.Responses["default"]; ok {
			content = resp
		} else {
			content = "Mock response"
		}
	}

	return &domain.ChatResponse{
		Content: content,
		Usage: domain.TokenUsage{
			PromptTokens:     50,
			CompletionTokens: 50,
			TotalTokens:      100,
		},
		FinishReason: "stop",
	}, nil
}

// Stream implements domain.LLMClient
func (m *MockLLMClient) Stream(ctx context.Context, messages []domain.Message, options domain.ChatOptions) (<-chan domain.ChatStreamResponse, error) {
	if m.ShouldError {
		return nil, fmt.Errorf("%s", m.ErrorMessage)
	}

	ch := make(chan domain.ChatStreamResponse, 1)
	go func() {
		defer close(ch)
		ch <- domain.ChatStreamResponse{
			Content: "Mock stream response",
			Done:    true,
		}
	}()
	return ch, nil
}

// Embed implements domain.LLMClient
func (m *MockLLMClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, text)
	}
	if m.ShouldError {
		return nil, fmt.Errorf("%s", m.ErrorMessage)
	}
	if m.Embedding != nil {
		return m.Embedding, nil
	}
	return []float64{0.1, 0.2, 0.3, 0.4, 0.5}, nil
}

// GetCallCount returns the number of Chat calls made
func (m *MockLLMClient) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
