package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/openresearch/conductor/pkg/domain"
)

// MemoryStore is an in-memory VectorStore backed by an embedding model.
// Load splits documents into chunks and embeds them; Query embeds the query
// and returns the top-k chunks by cosine similarity.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []chunk

	llm       domain.LLMClient
	chunkSize int
	topK      int
}

type chunk struct {
	content   string
	source    string
	embedding []float64
}

// MemoryStoreOptions configures a MemoryStore
type MemoryStoreOptions struct {
	LLM       domain.LLMClient
	ChunkSize int
	TopK      int
}

// NewMemoryStore creates an in-memory vector store
func NewMemoryStore(opts MemoryStoreOptions) (*MemoryStore, error) {
	if opts.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 1000
	}
	if opts.TopK <= 0 {
		opts.TopK = 4
	}

	return &MemoryStore{
		llm:       opts.LLM,
		chunkSize: opts.ChunkSize,
		topK:      opts.TopK,
	}, nil
}

// Load implements domain.VectorStore
func (s *MemoryStore) Load(ctx context.Context, documents []domain.Document) error {
	var fresh []chunk

	for _, doc := range documents {
		for _, piece := range splitChunks(doc.RawContent, s.chunkSize) {
			embedding, err := s.llm.Embed(ctx, piece)
			if err != nil {
				return fmt.Errorf("embedding chunk from %s: %w", doc.Source, err)
			}
			fresh = append(fresh, chunk{
				content:   piece,
				source:    doc.Source,
				embedding: embedding,
			})
		}
	}

	s.mu.Lock()
	s.chunks = append(s.chunks, fresh...)
	s.mu.Unlock()
	return nil
}

// Query implements domain.VectorStore. filter restricts results to chunks
// from the named sources; nil means no restriction.
func (s *MemoryStore) Query(ctx context.Context, query string, filter []string) (string, error) {
	queryEmbedding, err := s.llm.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("embedding query: %w", err)
	}

	allowed := make(map[string]struct{}, len(filter))
	for _, source := range filter {
		allowed[source] = struct{}{}
	}

	type scored struct {
		chunk chunk
		score float64
	}

	s.mu.RLock()
	var candidates []scored
	for _, c := range s.chunks {
		if len(allowed) > 0 {
			if _, ok := allowed[c.source]; !ok {
				continue
			}
		}
		candidates = append(candidates, scored{chunk: c, score: cosine(queryEmbedding, c.embedding)})
	}
	s.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > s.topK {
		candidates = candidates[:s.topK]
	}

	var parts []string
	for _, c := range candidates {
		parts = append(parts, c.chunk.content)
	}
	return strings.Join(parts, "\n\n"), nil
}

// Len returns the number of stored chunks
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// splitChunks cuts text into pieces of at most size bytes on word
// boundaries where possible
func splitChunks(text string, size int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	for len(text) > size {
		cut := size
		if idx := strings.LastIndexByte(text[:size], ' '); idx > size/2 {
			cut = idx
		}
		chunks = append(chunks, strings.TrimSpace(text[:cut]))
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}

// cosine computes cosine similarity, zero for mismatched or zero vectors
func cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
