package relevance

import (
	"context"
	"fmt"

	"github.com/openresearch/conductor/pkg/domain"
)

const curationSystemPrompt = `You are a research editor. You receive raw research context and return it cleaned up: duplicated passages removed, filler removed, the substantive findings kept in their original wording. Return only the cleaned context.`

// LLMCurator is a SourceCurator that asks the language model to prune and
// tidy assembled research context. Callers treat curation as best-effort
// and keep the raw context when it fails.
type LLMCurator struct {
	llm domain.LLMClient
}

// NewLLMCurator creates a curator
func NewLLMCurator(llm domain.LLMClient) (*LLMCurator, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	return &LLMCurator{llm: llm}, nil
}

// Curate implements domain.SourceCurator
func (c *LLMCurator) Curate(ctx context.Context, researchData []string) ([]string, error) {
	curated := make([]string, 0, len(researchData))

	for _, data := range researchData {
		if data == "" {
			continue
		}

		response, err := c.llm.Chat(ctx, []domain.Message{
			{Role: "system", Content: curationSystemPrompt},
			{Role: "user", Content: data},
		}, domain.ChatOptions{})
		if err != nil {
			return nil, fmt.Errorf("curation chat failed: %w", err)
		}
		if response.Content == "" {
			// An empty rewrite loses everything; keep the original piece.
			curated = append(curated, data)
			continue
		}
		curated = append(curated, response.Content)
	}

	return curated, nil
}
