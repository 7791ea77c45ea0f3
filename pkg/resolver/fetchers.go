package resolver

import (
	"context"

	"github.com/matzehuels/stacktower/pkg/integrations"
	"github.com/matzehuels/stacktower/pkg/integrations/npm"
	"github.com/matzehuels/stacktower/pkg/integrations/pypi"
)

// npmFetcher adapts npm.Client to the resolver's ecosystem-agnostic
// fetcher interface.
type npmFetcher struct {
	client *npm.Client
}

func (f npmFetcher) namespace() string { return EcosystemNPM }

func (f npmFetcher) fetch(ctx context.Context, name, version string) (*Metadata, error) {
	info, err := f.client.FetchVersion(ctx, name, version)
	if err != nil {
		return nil, err
	}
	return &Metadata{
		Name:         info.Name,
		Version:      info.Version,
		Dependencies: info.Dependencies,
		Repository:   info.Repository, // already normalized by npm.Client
	}, nil
}

// pypiFetcher adapts pypi.Client to the resolver's ecosystem-agnostic
// fetcher interface.
type pypiFetcher struct {
	client *pypi.Client
}

func (f pypiFetcher) namespace() string { return EcosystemPyPI }

func (f pypiFetcher) fetch(ctx context.Context, name, version string) (*Metadata, error) {
	info, err := f.client.FetchVersion(ctx, name, version)
	if err != nil {
		return nil, err
	}
	repo := info.ProjectURLs["Source"]
	if repo == "" {
		repo = info.HomePage
	}
	return &Metadata{
		Name:         info.Name,
		Version:      info.Version,
		Dependencies: info.Dependencies,
		Repository:   integrations.NormalizeRepoURL(repo),
	}, nil
}
