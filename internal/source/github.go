package source

import (
	"context"
	"fmt"

	"github.com/chorizite/plugin-index/internal/release"
	"github.com/google/go-github/v59/github"
)

type FetchError struct {
	Repo string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch releases of %s: %v", e.Repo, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// GitHub lists repository releases through the GitHub API.
type GitHub struct {
	client *github.Client
}

func NewGitHub(client *github.Client) *GitHub {
	return &GitHub{client: client}
}

// ListReleases returns all published releases of owner/repo. Drafts are
// skipped.
func (g *GitHub) ListReleases(ctx context.Context, owner, repo string) ([]*release.RawRelease, error) {
	fullRepo := owner + "/" + repo
	ret := make([]*release.RawRelease, 0)
	opts := &github.ListOptions{Page: 1, PerPage: 100}
	for {
		releases, resp, err := g.client.Repositories.ListReleases(ctx, owner, repo, opts)
		if err != nil {
			return nil, &FetchError{Repo: fullRepo, Err: err}
		}
		for _, r := range releases {
			if r.GetDraft() {
				continue
			}
			ret = append(ret, toRawRelease(r))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return ret, nil
}

func toRawRelease(r *github.RepositoryRelease) *release.RawRelease {
	assets := make([]*release.Asset, 0, len(r.Assets))
	for _, a := range r.Assets {
		assets = append(assets, &release.Asset{
			Name:          a.GetName(),
			URL:           a.GetBrowserDownloadURL(),
			Size:          a.GetSize(),
			DownloadCount: a.GetDownloadCount(),
			CreatedAt:     a.GetCreatedAt().Time.UTC(),
			UpdatedAt:     a.GetUpdatedAt().Time.UTC(),
		})
	}
	return &release.RawRelease{
		Tag:         r.GetTagName(),
		Name:        r.GetName(),
		Body:        r.GetBody(),
		Prerelease:  r.GetPrerelease(),
		Draft:       r.GetDraft(),
		PublishedAt: r.GetPublishedAt().Time.UTC(),
		Assets:      assets,
	}
}
