package malicious

import "github.com/matzehuels/stacktower/pkg/ecosystem"

// init seeds a small set of publicly documented supply-chain incidents
// across both supported ecosystems. This is illustrative coverage, not an
// exhaustive feed: production deployments are expected to load a larger
// table from an external source at startup via Register.
func init() {
	for _, e := range []ecosystem.MaliciousEntry{
		{
			Name:       "ctx",
			Version:    "*",
			Reason:     "typosquat of the standard library that exfiltrated environment variables on import",
			Severity:   ecosystem.SeverityCritical,
			References: []string{"https://pypi.org/project/ctx/"},
		},
		{
			Name:       "colourama",
			Version:    "*",
			Reason:     "typosquat of colorama bundling a clipboard-hijacking payload",
			Severity:   ecosystem.SeverityCritical,
			References: []string{"https://pypi.org/project/colourama/"},
		},
	} {
		Register("pypi", e)
	}

	for _, e := range []ecosystem.MaliciousEntry{
		{
			Name:       "event-stream",
			Version:    ">=3.3.6",
			Reason:     "injected dependency (flatmap-stream) targeting a bitcoin wallet's private keys",
			Severity:   ecosystem.SeverityCritical,
			References: []string{"https://github.com/dominictarr/event-stream/issues/116"},
		},
		{
			Name:       "eslint-scope",
			Version:    "3.7.2",
			Reason:     "compromised publish that exfiltrated npm tokens from .npmrc",
			Severity:   ecosystem.SeverityCritical,
			References: []string{"https://eslint.org/blog/2018/07/postmortem-for-malicious-package-publishes"},
		},
	} {
		Register("npm", e)
	}
}
