// Package llm provides the provider-agnostic interface the ecosystem
// analyzers use to escalate complex or heavily-obfuscated install scripts
// beyond static pattern matching, plus an OpenAI-shaped client for the one
// provider the pipeline ships with.
package llm

import (
	"context"
)

// Verdict is an LLM's structured opinion on whether a script is malicious,
// mirroring the schema the analysis prompt asks the model to return.
type Verdict struct {
	IsSuspicious bool
	Confidence   float64
	Severity     string
	Threats      []string
	Reasoning    string
}

// Client analyzes a script and returns a Verdict. Implementations must
// treat ctx cancellation as a hard stop and never block past it.
type Client interface {
	Analyze(ctx context.Context, packageName, script string) (Verdict, error)
}
