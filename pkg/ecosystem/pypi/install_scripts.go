package pypi

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/matzehuels/stacktower/pkg/cache"
	"github.com/matzehuels/stacktower/pkg/ecosystem"
)

// complexityWeights are string-to-weight indicators for obfuscation,
// dynamic execution, network, and system-call surface area, grounded
// verbatim on the Python analyzer's complexity heuristic.
var complexityWeights = []struct {
	pattern *regexp.Regexp
	weight  float64
}{
	{regexp.MustCompile(`(?i)base64\.(?:b64decode|b64encode)`), 0.3},
	{regexp.MustCompile(`(?i)hex\s*\(`), 0.2},
	{regexp.MustCompile(`(?i)chr\s*\(`), 0.2},
	{regexp.MustCompile(`(?i)ord\s*\(`), 0.2},
	{regexp.MustCompile(`\\x[0-9a-fA-F]{2}`), 0.2},
	{regexp.MustCompile(`\\u[0-9a-fA-F]{4}`), 0.2},
	{regexp.MustCompile(`(?i)eval\s*\(`), 0.4},
	{regexp.MustCompile(`(?i)exec\s*\(`), 0.4},
	{regexp.MustCompile(`(?i)compile\s*\(`), 0.3},
	{regexp.MustCompile(`(?i)__import__\s*\(`), 0.3},
	{regexp.MustCompile(`(?i)\.join\s*\(`), 0.1},
	{regexp.MustCompile(`(?i)\.replace\s*\(`), 0.1},
	{regexp.MustCompile(`(?i)\.decode\s*\(`), 0.15},
	{regexp.MustCompile(`(?i)\.encode\s*\(`), 0.1},
	{regexp.MustCompile(`(?i)urllib\.request`), 0.2},
	{regexp.MustCompile(`(?i)requests\.(?:get|post)`), 0.2},
	{regexp.MustCompile(`(?i)socket\.socket`), 0.25},
	{regexp.MustCompile(`(?i)http\.client`), 0.2},
	{regexp.MustCompile(`(?i)os\.system`), 0.3},
	{regexp.MustCompile(`(?i)subprocess\.`), 0.3},
	{regexp.MustCompile(`(?i)os\.popen`), 0.3},
	{regexp.MustCompile(`/etc/`), 0.2},
	{regexp.MustCompile(`/root/`), 0.2},
	{regexp.MustCompile(`~/\.ssh`), 0.25},
	{regexp.MustCompile(`\.bashrc`), 0.2},
	{regexp.MustCompile(`\(\s*\(`), 0.1},
}

// complexityScore mirrors the Python analyzer's weighted heuristic: each
// matched indicator contributes weight scaled by min(1, matchCount/3), each
// line over 200 characters adds 0.05 (at most 0.2 in total), scripts over
// 1000 and over 5000 characters add 0.1 and a further 0.2, and more than
// five distinct indicators firing together adds 0.2. Capped at 1.0.
func complexityScore(content string) float64 {
	score := 0.0
	matchedIndicators := 0

	for _, ind := range complexityWeights {
		matches := ind.pattern.FindAllStringIndex(content, -1)
		if len(matches) == 0 {
			continue
		}
		matchedIndicators++
		factor := float64(len(matches)) / 3.0
		if factor > 1.0 {
			factor = 1.0
		}
		score += ind.weight * factor
	}

	longLines := 0
	for _, line := range strings.Split(content, "\n") {
		if len(line) > 200 {
			longLines++
		}
	}
	if longLines > 0 {
		bump := float64(longLines) * 0.05
		if bump > 0.2 {
			bump = 0.2
		}
		score += bump
	}

	if len(content) > 1000 {
		score += 0.1
	}
	if len(content) > 5000 {
		score += 0.2
	}
	if matchedIndicators > 5 {
		score += 0.2
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// hookRE finds setup(...) keyword arguments that indicate custom
// installation-time hooks. Syntactic, not an AST walk: it looks for the
// keyword name followed by '=' anywhere in the file, which is sufficient
// for setup.py's conventional single top-level setup() call.
var hookRE = regexp.MustCompile(`\b(cmdclass|setup_requires)\s*=`)

// AnalyzeInstallScripts inspects setup.py for installation hooks (AST-lite)
// and for malicious code via pattern matching with opt-in LLM escalation.
// Non-setup.py PyPI packages (wheel-only, pyproject-only) have nothing to
// analyze here and yield no findings.
func (a *Analyzer) AnalyzeInstallScripts(ctx context.Context, dir string) ([]ecosystem.Finding, error) {
	path := filepath.Join(dir, "setup.py")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil
	}
	content := string(data)
	pkgName := filepath.Base(dir)

	var findings []ecosystem.Finding
	if f, ok := hooksFinding(pkgName, content); ok {
		findings = append(findings, f)
	}
	if f, ok := a.patternAndLLMFinding(ctx, pkgName, content); ok {
		findings = append(findings, f)
	}
	return findings, nil
}

func hooksFinding(pkgName, content string) (ecosystem.Finding, bool) {
	hooks := hookRE.FindAllString(content, -1)
	if len(hooks) == 0 {
		return ecosystem.Finding{}, false
	}
	evidence := make([]string, 0, len(hooks))
	for _, h := range hooks {
		evidence = append(evidence, fmt.Sprintf("setup.py declares %s", strings.TrimSuffix(strings.TrimSpace(h), "=")))
	}
	return ecosystem.Finding{
		Package:     pkgName,
		Version:     "*",
		FindingType: ecosystem.FindingInstallationHooks,
		Severity:    ecosystem.SeverityMedium,
		Confidence:  0.6,
		Evidence:    evidence,
		Recommendations: []string{
			"Review the installation hooks to ensure they don't execute malicious code",
			"Check if cmdclass or setup_requires are necessary for legitimate functionality",
			"Consider using pyproject.toml instead of setup.py for safer configuration",
		},
		Source: "ecosystem.pypi.ast",
	}, true
}

// patternAndLLMFinding runs the pattern bank over setup.py's content and,
// for complex or multiply-flagged scripts, escalates to the LLM client
// (cache-first). The combination rule favors the LLM's verdict when it
// reports suspicious behavior, otherwise falls back to the pattern-only
// result; a clean LLM verdict lowers confidence in an otherwise-flagged
// pattern match rather than discarding it.
func (a *Analyzer) patternAndLLMFinding(ctx context.Context, pkgName, content string) (ecosystem.Finding, bool) {
	var detected []string
	maxSeverity := ecosystem.SeverityLow
	for severity, exprs := range compiled {
		for _, re := range exprs {
			if re.MatchString(content) {
				detected = append(detected, re.String())
				if severityOrder[severity] > severityOrder[maxSeverity] {
					maxSeverity = severity
				}
			}
		}
	}

	score := complexityScore(content)
	isComplex := score >= 0.5
	if len(detected) == 0 && !isComplex {
		return ecosystem.Finding{}, false
	}

	var verdict *llmVerdictResult
	if isComplex || len(detected) >= 2 {
		verdict = a.analyzeWithLLM(ctx, pkgName, content)
	}

	if verdict != nil && verdict.IsSuspicious {
		evidence := []string{
			fmt.Sprintf("LLM analysis: %s", verdict.Reasoning),
		}
		if len(detected) > 0 {
			evidence = append(evidence, fmt.Sprintf("pattern matching detected %d suspicious patterns", len(detected)))
			for _, p := range capStrings(detected, 3) {
				evidence = append(evidence, "pattern: "+p)
			}
		}
		for _, threat := range capStrings(verdict.Threats, 5) {
			evidence = append(evidence, "threat: "+threat)
		}

		severity := maxSeverity
		if severityOrder[verdict.Severity] > severityOrder[severity] {
			severity = verdict.Severity
		}
		confidence := verdict.Confidence
		if confidence == 0 {
			confidence = 0.7
		}

		return ecosystem.Finding{
			Package:     pkgName,
			Version:     "*",
			FindingType: ecosystem.FindingMaliciousScript,
			Severity:    severity,
			Confidence:  confidence,
			Evidence:    evidence,
			Recommendations: []string{
				"URGENT: Review this setup.py file immediately for malicious code",
				"Do not install this package until verified safe",
				"Check the package source and author reputation",
				"Consider reporting this package to PyPI security team",
			},
			Source:         "ecosystem.pypi",
			AnalysisSource: "llm",
		}, true
	}

	if len(detected) == 0 {
		return ecosystem.Finding{}, false
	}

	evidence := []string{fmt.Sprintf("detected %d malicious patterns", len(detected))}
	for _, p := range capStrings(detected, 5) {
		evidence = append(evidence, "pattern: "+p)
	}
	confidence := 0.8
	if verdict != nil {
		confidence = 0.6 // LLM looked and said not suspicious; lower confidence
	}

	return ecosystem.Finding{
		Package:     pkgName,
		Version:     "*",
		FindingType: ecosystem.FindingMaliciousScript,
		Severity:    maxSeverity,
		Confidence:  confidence,
		Evidence:    evidence,
		Recommendations: []string{
			"URGENT: Review this setup.py file immediately for malicious code",
			"Do not install this package until verified safe",
			"Check the package source and author reputation",
			"Consider reporting this package to PyPI security team",
		},
		Source:         "ecosystem.pypi",
		AnalysisSource: "pattern_only",
	}, true
}

func capStrings(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

type llmVerdictResult struct {
	IsSuspicious bool
	Confidence   float64
	Severity     string
	Threats      []string
	Reasoning    string
}

const llmCachePrefix = "llm_python"
const llmTTLHours = 168.0 // 7 days, matching cache.DefaultLLMTTLHours

// analyzeWithLLM checks the cache before ever calling the configured LLM
// client; a cache miss on an unconfigured analyzer (a.llm == nil, matching
// the Python original's "OpenAI not configured" skip) or a too-short
// script both return nil without touching the network.
func (a *Analyzer) analyzeWithLLM(ctx context.Context, pkgName, content string) *llmVerdictResult {
	if a.llm == nil || len(content) < 50 {
		return nil
	}

	var key string
	if a.cache != nil {
		key = cache.Key("python:"+pkgName+":"+content, llmCachePrefix)
		if raw, ok := a.cache.Get(ctx, key); ok {
			return decodeVerdict(raw)
		}
	}

	v, err := a.llm.Analyze(ctx, pkgName, content)
	if err != nil {
		return nil
	}

	result := &llmVerdictResult{
		IsSuspicious: v.IsSuspicious,
		Confidence:   v.Confidence,
		Severity:     v.Severity,
		Threats:      v.Threats,
		Reasoning:    v.Reasoning,
	}

	if a.cache != nil && key != "" {
		if raw, err := encodeVerdict(result); err == nil {
			a.cache.Store(ctx, key, raw, llmTTLHours)
		}
	}
	return result
}
