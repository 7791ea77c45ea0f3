// Package config binds the process's environment into a single immutable
// Config, read once at startup rather than scattering os.Getenv calls
// through the pipeline.
package config

import "os"

// Config holds every environment-derived setting the audit pipeline reads.
type Config struct {
	// OpenAIAPIKey is read from OPENAI_API_KEY; HasLLM reports whether it
	// is set. No command builds an LLM client from it, so install-script
	// analysis run from the CLI is pattern-only.
	OpenAIAPIKey string
	// OpenAIModel selects the chat-completions model; empty uses the
	// client's own default.
	OpenAIModel string
	// GitHubToken authenticates repo-cloning operations. Unused by any
	// operation in this module (repo cloning is a Non-goal) but read here
	// so the binding surface matches the environment contract exactly.
	GitHubToken string
	// CacheEnabled gates the durable sqlite cache backend; false forces
	// memory-only operation.
	CacheEnabled bool
	// OutputDirectory is read from OUTPUT_DIRECTORY. No command reads it:
	// scan and graph print their output to stdout.
	OutputDirectory string
}

// Load reads the process environment into a Config. Missing variables take
// their zero value; CACHE_ENABLED defaults to true unless explicitly set
// to a falsy value.
func Load() Config {
	return Config{
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     os.Getenv("OPENAI_MODEL"),
		GitHubToken:     firstNonEmpty(os.Getenv("GITHUB_TOKEN"), os.Getenv("GITHUB_PAT_TOKEN")),
		CacheEnabled:    cacheEnabled(),
		OutputDirectory: os.Getenv("OUTPUT_DIRECTORY"),
	}
}

// HasLLM reports whether an OpenAI API key is configured.
func (c Config) HasLLM() bool {
	return c.OpenAIAPIKey != ""
}

func cacheEnabled() bool {
	v, ok := os.LookupEnv("CACHE_ENABLED")
	if !ok {
		return true
	}
	switch v {
	case "0", "false", "False", "FALSE":
		return false
	default:
		return true
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
