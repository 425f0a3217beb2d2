package relevance

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/openresearch/conductor/pkg/domain"
)

// LexicalFilter is a ContextFilter that scores documents by token overlap
// with the query and keeps the best ones within a byte budget. It is the
// default filter when no embedding-based one is wired in.
type LexicalFilter struct {
	maxBytes int
}

// NewLexicalFilter creates a filter with the given context budget in bytes
func NewLexicalFilter(maxBytes int) *LexicalFilter {
	if maxBytes <= 0 {
		maxBytes = 16 << 10
	}
	return &LexicalFilter{maxBytes: maxBytes}
}

// Filter implements domain.ContextFilter. Documents with no overlap at all
// are dropped; an empty result means nothing relevant, not failure.
func (f *LexicalFilter) Filter(ctx context.Context, query string, documents []domain.Document) (string, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 || len(documents) == 0 {
		return "", nil
	}

	type scored struct {
		doc   domain.Document
		score float64
	}

	var candidates []scored
	for _, doc := range documents {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		s := overlapScore(queryTokens, tokenize(doc.RawContent))
		if s > 0 {
			candidates = append(candidates, scored{doc: doc, score: s})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	var sb strings.Builder
	for _, c := range candidates {
		content := c.doc.RawContent
		remaining := f.maxBytes - sb.Len()
		if remaining <= 0 {
			break
		}
		if len(content) > remaining {
			content = truncateRunes(content, remaining)
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Source: ")
		sb.WriteString(c.doc.Source)
		sb.WriteString("\n")
		sb.WriteString(content)
	}

	return sb.String(), nil
}

// overlapScore is the fraction of query tokens present in the document
func overlapScore(queryTokens []string, docTokens []string) float64 {
	docSet := make(map[string]struct{}, len(docTokens))
	for _, t := range docTokens {
		docSet[t] = struct{}{}
	}

	matched := 0
	for _, t := range queryTokens {
		if _, ok := docSet[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTokens))
}

// truncateRunes cuts s to at most max bytes without splitting a rune
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping very
// short tokens that carry no signal
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	var tokens []string
	for _, f := range fields {
		if len(f) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
