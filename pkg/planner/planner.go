package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openresearch/conductor/pkg/domain"
	"github.com/openresearch/conductor/pkg/observability"
)

const planningSystemPrompt = `You are a research planning assistant. Given a research task, you break it into focused search queries that together cover the task. Respond with a JSON array of strings and nothing else, for example: ["query one", "query two"].`

// LLMPlanner derives sub-queries for a research task. It takes an initial
// search snapshot from a retriever backend to ground the plan in current
// results, then asks the language model for the sub-query list.
type LLMPlanner struct {
	llm            domain.LLMClient
	retriever      domain.Retriever
	maxSubQueries  int
	maxSnippets    int
	tokenCostPer1K float64
	logger         *observability.StructuredLogger
}

// PlannerOptions configures an LLMPlanner
type PlannerOptions struct {
	LLM           domain.LLMClient
	Retriever     domain.Retriever // optional initial-search backend
	MaxSubQueries int
	MaxSnippets   int
	// TokenCostPer1K converts token usage to monetary cost. Zero means the
	// model is free to run (the default for local models).
	TokenCostPer1K float64
}

// NewLLMPlanner creates a planner
func NewLLMPlanner(opts PlannerOptions) (*LLMPlanner, error) {
	if opts.LLM == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if opts.MaxSubQueries <= 0 {
		opts.MaxSubQueries = 5
	}
	if opts.MaxSnippets <= 0 {
		opts.MaxSnippets = 5
	}

	return &LLMPlanner{
		llm:            opts.LLM,
		retriever:      opts.Retriever,
		maxSubQueries:  opts.MaxSubQueries,
		maxSnippets:    opts.MaxSnippets,
		tokenCostPer1K: opts.TokenCostPer1K,
		logger:         observability.NewStructuredLogger("planner"),
	}, nil
}

// Plan implements domain.Planner
func (p *LLMPlanner) Plan(ctx context.Context, query string, queryDomains []string, documentContext string) ([]string, error) {
	return p.PlanWithCosts(ctx, query, queryDomains, documentContext, nil)
}

// PlanWithCosts implements domain.CostAwarePlanner
func (p *LLMPlanner) PlanWithCosts(ctx context.Context, query string, queryDomains []string, documentContext string, costs domain.CostMeter) ([]string, error) {
	snapshot := p.initialSnapshot(ctx, query, queryDomains)

	messages := []domain.Message{
		{Role: "system", Content: planningSystemPrompt},
		{Role: "user", Content: p.buildPrompt(query, snapshot, documentContext)},
	}

	response, err := p.llm.Chat(ctx, messages, domain.ChatOptions{})
	if err != nil {
		return nil, fmt.Errorf("planning chat failed: %w", err)
	}

	if costs != nil && p.tokenCostPer1K > 0 {
		costs.AddCost(float64(response.Usage.TotalTokens) / 1000 * p.tokenCostPer1K)
	}

	subQueries := parseSubQueries(response.Content)
	if len(subQueries) == 0 {
		return nil, fmt.Errorf("no sub-queries in planner output: %q", response.Content)
	}
	if len(subQueries) > p.maxSubQueries {
		subQueries = subQueries[:p.maxSubQueries]
	}

	return subQueries, nil
}

// initialSnapshot grounds the plan in a quick search. Snapshot failures are
// absorbed: a plan without grounding beats no plan.
func (p *LLMPlanner) initialSnapshot(ctx context.Context, query string, queryDomains []string) string {
	if p.retriever == nil {
		return ""
	}

	results, err := p.retriever.Search(ctx, query, queryDomains, p.maxSnippets)
	if err != nil {
		p.logger.Warn(ctx, "Initial search failed",
			map[string]interface{}{
				"backend": p.retriever.Name(),
				"error":   err.Error(),
			},
		)
		return ""
	}

	var lines []string
	for _, r := range results {
		if r.Snippet == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", r.Title, r.Snippet))
	}
	return strings.Join(lines, "\n")
}

func (p *LLMPlanner) buildPrompt(query, snapshot, documentContext string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Research task: %s\n\n", query)
	if snapshot != "" {
		fmt.Fprintf(&sb, "Current search results for context:\n%s\n\n", snapshot)
	}
	if documentContext != "" {
		fmt.Fprintf(&sb, "The research must draw on these documents:\n%s\n\n", documentContext)
	}
	fmt.Fprintf(&sb, "Produce up to %d search queries as a JSON array of strings.", p.maxSubQueries)
	return sb.String()
}

// parseSubQueries extracts the sub-query list from model output. It accepts
// a JSON string array, optionally wrapped in code fences or prose, and falls
// back to one query per non-empty line.
func parseSubQueries(content string) []string {
	content = strings.TrimSpace(content)

	if queries := tryJSONList(content); queries != nil {
		return queries
	}

	// The array may be embedded in surrounding prose or a code fence
	if start := strings.Index(content, "["); start >= 0 {
		if end := strings.LastIndex(content, "]"); end > start {
			if queries := tryJSONList(content[start : end+1]); queries != nil {
				return queries
			}
		}
	}

	// Line-based fallback
	var queries []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789. ")
		line = strings.Trim(line, `"`)
		if line == "" || line == "[" || line == "]" || line == "```" {
			continue
		}
		queries = append(queries, strings.TrimSuffix(line, ","))
	}
	return queries
}

func tryJSONList(content string) []string {
	var queries []string
	if err := json.Unmarshal([]byte(content), &queries); err != nil {
		return nil
	}

	var cleaned []string
	for _, q := range queries {
		q = strings.TrimSpace(q)
		if q != "" {
			cleaned = append(cleaned, q)
		}
	}
	return cleaned
}
