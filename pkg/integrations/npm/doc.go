// Package npm provides an HTTP client for the npm registry API.
//
// # Overview
//
// This package fetches package metadata from the npm registry
// (https://registry.npmjs.org), used to resolve the "latest" dist-tag
// version of a JavaScript/TypeScript package and its runtime dependencies.
//
// # Usage
//
//	client := npm.NewClient(c, 24)
//
//	pkg, err := client.FetchPackage(ctx, "express")
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
//   - Name, Version: Package identity (latest version)
//   - Dependencies: Union of "dependencies" and "peerDependencies"
//   - Description: Package description
//   - License, Author: Package metadata
//   - Repository, HomePage: URLs for enrichment
//
// # Caching
//
// Responses are cached via the shared cache package under the "npm"
// namespace; the TTL is set when creating the client.
//
// # Version Selection
//
// The client fetches the version tagged as "latest" in dist-tags.
// devDependencies and optionalDependencies are never included.
package npm
