package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	stackerrors "github.com/matzehuels/stacktower/pkg/errors"
)

const (
	defaultBaseURL = "https://api.openai.com/v1/chat/completions"
	systemPrompt   = "You are a security expert analyzing Python setup.py scripts for supply chain attacks. Be precise and avoid false positives. Legitimate build scripts often use subprocess for compilation."
	maxScriptChars = 2000
)

// OpenAIClient calls the Chat Completions API directly over net/http; the
// pack carries no official OpenAI SDK, so this is a deliberately thin
// client rather than a hand-rolled imitation of one.
type OpenAIClient struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

// NewOpenAIClient builds a client. apiKey must be non-empty; callers
// should check config before constructing one and fall back to NopClient
// otherwise.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// verdictPayload mirrors the JSON the analysis prompt instructs the model
// to emit.
type verdictPayload struct {
	IsSuspicious bool     `json:"is_suspicious"`
	Confidence   float64  `json:"confidence"`
	Severity     string   `json:"severity"`
	Threats      []string `json:"threats"`
	Reasoning    string   `json:"reasoning"`
}

// Analyze sends the script to the configured model and parses its verdict.
// Scripts are truncated to the first maxScriptChars characters, matching
// the cost-conscious prompt the pattern layer escalates to.
func (c *OpenAIClient) Analyze(ctx context.Context, packageName, script string) (Verdict, error) {
	if c.apiKey == "" {
		return Verdict{}, stackerrors.New(stackerrors.ErrCodeLLMUnavailable, "OpenAI API key not configured")
	}

	truncated := script
	if len(truncated) > maxScriptChars {
		truncated = truncated[:maxScriptChars]
	}

	prompt := buildPrompt(packageName, truncated)
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.1,
		MaxTokens:   500,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return Verdict{}, stackerrors.Wrap(stackerrors.ErrCodeInternal, err, "encoding LLM request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return Verdict{}, stackerrors.Wrap(stackerrors.ErrCodeInternal, err, "building LLM request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Verdict{}, stackerrors.Wrap(stackerrors.ErrCodeLLMUnavailable, err, "calling OpenAI API")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Verdict{}, stackerrors.Wrap(stackerrors.ErrCodeLLMUnavailable, err, "reading OpenAI response")
	}
	if resp.StatusCode != http.StatusOK {
		return Verdict{}, stackerrors.New(stackerrors.ErrCodeLLMUnavailable, "OpenAI API returned %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Verdict{}, stackerrors.Wrap(stackerrors.ErrCodeLLMUnavailable, err, "decoding OpenAI response")
	}
	if len(parsed.Choices) == 0 {
		return Verdict{}, stackerrors.New(stackerrors.ErrCodeLLMUnavailable, "OpenAI response contained no choices")
	}

	return parseVerdict(parsed.Choices[0].Message.Content)
}

func buildPrompt(packageName, script string) string {
	return fmt.Sprintf(`Analyze this Python setup.py script for malicious behavior:

Package: %s
Script content (first %d chars):
%s

Look for:
1. Remote code execution (downloading and executing code)
2. Data exfiltration (sending files/data to external servers)
3. Obfuscation techniques (base64, hex encoding, eval, exec)
4. System modification (changing permissions, modifying system files)
5. Credential theft (accessing environment variables, config files, SSH keys)
6. Backdoors or persistence mechanisms
7. Suspicious network connections to unknown domains
8. File system manipulation outside the package directory

Consider that legitimate setup.py scripts may:
- Compile C extensions
- Check Python version requirements
- Install package dependencies
- Create necessary directories in site-packages
- Run build tools (setuptools, distutils)

Respond in JSON format:
{
    "is_suspicious": true/false,
    "confidence": 0.0-1.0,
    "severity": "critical"/"high"/"medium"/"low",
    "threats": ["list of specific threats found"],
    "reasoning": "brief explanation of why this is or isn't suspicious"
}`, packageName, maxScriptChars, script)
}

// parseVerdict extracts the JSON object from a completion, stripping a
// surrounding markdown code fence if the model added one.
func parseVerdict(text string) (Verdict, error) {
	text = strings.TrimSpace(text)
	if strings.Contains(text, "```json") {
		parts := strings.SplitN(text, "```json", 2)
		if len(parts) == 2 {
			text = strings.SplitN(parts[1], "```", 2)[0]
		}
	} else if strings.Contains(text, "```") {
		parts := strings.SplitN(text, "```", 3)
		if len(parts) >= 2 {
			text = parts[1]
		}
	}
	text = strings.TrimSpace(text)

	var payload verdictPayload
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return Verdict{}, stackerrors.Wrap(stackerrors.ErrCodeLLMUnavailable, err, "parsing LLM verdict JSON")
	}

	return Verdict{
		IsSuspicious: payload.IsSuspicious,
		Confidence:   payload.Confidence,
		Severity:     payload.Severity,
		Threats:      payload.Threats,
		Reasoning:    payload.Reasoning,
	}, nil
}

var _ Client = (*OpenAIClient)(nil)
