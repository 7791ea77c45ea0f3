// Package npm wires package.json manifest parsing and install-script
// pattern matching into the ecosystem.Analyzer interface.
//
// Manifest detection recognizes package.json, package-lock.json, yarn.lock,
// and npm-shrinkwrap.json; only package.json is parsed for dependencies and
// lifecycle scripts. Dependencies are tagged "runtime", "peer", "dev", or
// "optional" by which package.json object they were declared in.
//
// Install-script analysis is pattern-only: preinstall, install, and
// postinstall scripts are matched against a severity-banked regex table
// (critical/high/medium) grounded on real npm supply-chain incidents —
// shell download-and-execute pipelines, base64-encoded payloads passed to
// eval/Buffer.from, privilege escalation, and known exfiltration endpoints.
// A script matching more than one pattern is reported at its highest
// matched severity. There is no LLM escalation layer for npm; that is
// reserved for setup.py analysis where static patterns alone
// under-detect dynamic Python payloads.
//
// An Analyzer registers itself with the default ecosystem registry on
// import via init(); construct a standalone instance with New() for tests
// or isolated registries.
package npm
