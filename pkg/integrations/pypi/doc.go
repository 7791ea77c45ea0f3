// Package pypi provides an HTTP client for the Python Package Index API.
//
// # Overview
//
// This package fetches package metadata from PyPI (https://pypi.org), the
// official repository for Python packages.
//
// # Usage
//
//	client := pypi.NewClient(c, 24) // cache TTL in hours
//
//	pkg, err := client.FetchPackage(ctx, "fastapi")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	fmt.Println(pkg.Name, pkg.Version)
//	fmt.Println("Dependencies:", pkg.Dependencies)
//
// # PackageInfo
//
// [FetchPackage] returns a [PackageInfo] containing:
//
//   - Name, Version: Package identity
//   - Dependencies: Direct runtime dependency name -> version spec (extras filtered out)
//   - Summary: Package description
//   - License, Author: Package metadata
//   - ProjectURLs, HomePage: Links for enrichment
//
// # Caching
//
// Responses are cached via the shared cache package under the "pypi"
// namespace; the TTL is set when creating the client.
//
// # Dependency Filtering
//
// Dependencies are extracted from requires_dist, discarding any entry whose
// environment marker gates it behind an "extra ==" clause — PyPI's way of
// expressing optional extras groups, which are never part of the base
// install.
//
// Package names are normalized following PEP 503.
package pypi
