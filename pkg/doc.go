// Package pkg provides the core libraries for the auditor supply-chain
// scanner.
//
// # Overview
//
// auditor resolves a project's transitive dependencies and screens them for
// supply-chain risk: known-malicious packages, suspicious install-time
// hooks, circular dependencies, version conflicts, and low package
// reputation. The pkg directory is organized into the following areas:
//
//  1. Ecosystem abstraction ([ecosystem], [ecosystem/npm], [ecosystem/pypi])
//  2. Registry access ([integrations], [httputil])
//  3. Dependency resolution ([resolver])
//  4. Graph analysis ([depgraph])
//  5. Risk signals ([malicious], [reputation], [llm])
//  6. Orchestration ([audit])
//  7. Shared infrastructure ([cache], [errors], [observability], [buildinfo])
//
// # Architecture
//
// The typical data flow through auditor:
//
//	Manifest file (package.json, requirements.txt, ...)
//	         ↓
//	   [ecosystem] package (detect ecosystem, extract direct dependencies)
//	         ↓
//	   [resolver] package (resolve full transitive tree via [integrations])
//	         ↓
//	   [depgraph] package (build graph, detect cycles/conflicts)
//	         ↓
//	   [malicious] + [reputation] + [llm] (screen each resolved package)
//	         ↓
//	   [audit] package (aggregate findings into a Report)
//
// # Quick Start
//
//	import (
//	    "context"
//	    "github.com/matzehuels/stacktower/pkg/audit"
//	    "github.com/matzehuels/stacktower/pkg/cache"
//	    "github.com/matzehuels/stacktower/pkg/ecosystem"
//	    _ "github.com/matzehuels/stacktower/pkg/ecosystem/npm"
//	    _ "github.com/matzehuels/stacktower/pkg/ecosystem/pypi"
//	)
//
//	c := cache.New(cache.Config{Dir: "/tmp/auditor-cache"})
//	orch := audit.New(c, ecosystem.Default, nil)
//	report, err := orch.Run(context.Background(), audit.Options{
//	    ManifestPath: "package.json",
//	})
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/depgraph/...           # Specific package
package pkg
