package relevance

import (
	"context"
	"testing"

	"github.com/openresearch/conductor/internal/testutil"
	"github.com/openresearch/conductor/pkg/domain"
)

func TestLLMCurator_RewritesEachPiece(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	llm := testutil.NewMockLLMClient()
	llm.Responses["raw one"] = "clean one"
	llm.Responses["raw two"] = "clean two"

	curator, err := NewLLMCurator(llm)
	testutil.AssertNoError(t, err, "creating curator")

	curated, err := curator.Curate(ctx, []string{"raw one", "", "raw two"})

	testutil.AssertNoError(t, err, "curate")
	testutil.AssertEqual(t, 2, len(curated), "empty pieces dropped")
	testutil.AssertEqual(t, "clean one", curated[0], "first piece rewritten")
	testutil.AssertEqual(t, "clean two", curated[1], "second piece rewritten")
}

func TestLLMCurator_KeepsOriginalOnEmptyRewrite(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	llm := testutil.NewMockLLMClient()
	llm.ChatFunc = func(ctx context.Context, messages []domain.Message, options domain.ChatOptions) (*domain.ChatResponse, error) {
		return &domain.ChatResponse{Content: ""}, nil
	}

	curator, err := NewLLMCurator(llm)
	testutil.AssertNoError(t, err, "creating curator")

	curated, err := curator.Curate(ctx, []string{"precious data"})

	testutil.AssertNoError(t, err, "curate")
	testutil.AssertEqual(t, 1, len(curated), "piece kept")
	testutil.AssertEqual(t, "precious data", curated[0], "original preserved")
}

func TestLLMCurator_ChatFailurePropagates(t *testing.T) {
	ctx := testutil.NewTestContext(t)

	llm := testutil.NewMockLLMClient()
	llm.ShouldError = true
	llm.ErrorMessage = "model offline"

	curator, err := NewLLMCurator(llm)
	testutil.AssertNoError(t, err, "creating curator")

	_, err = curator.Curate(ctx, []string{"raw"})
	testutil.AssertError(t, err, "callers fall back to the raw context")
}
