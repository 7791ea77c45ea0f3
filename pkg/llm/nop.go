package llm

import (
	"context"

	"github.com/matzehuels/stacktower/pkg/errors"
)

// NopClient always reports the LLM as unavailable. Used when no API key is
// configured so analyzers can unconditionally hold a Client and treat
// "unavailable" as an ordinary, gracefully-handled outcome rather than a
// branch on whether LLM analysis is enabled.
type NopClient struct{}

func (NopClient) Analyze(ctx context.Context, packageName, script string) (Verdict, error) {
	return Verdict{}, errors.New(errors.ErrCodeLLMUnavailable, "LLM analysis not configured")
}

var _ Client = NopClient{}
