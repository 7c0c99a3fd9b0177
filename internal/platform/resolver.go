package platform

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/chorizite/plugin-index/internal/release"
	"github.com/chorizite/plugin-index/internal/selector"
	"github.com/chorizite/plugin-index/pkg/index"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrNoRelease = errors.New("no platform release found")

type ReleaseLister interface {
	ListReleases(ctx context.Context, owner, repo string) ([]*release.RawRelease, error)
}

// HashFunc returns the upper-case hex SHA-256 of the document at url.
type HashFunc func(ctx context.Context, url string) (string, error)

// Info is the platform release history.
type Info struct {
	Releases       []*release.Record
	Latest         *release.Record
	LatestBeta     *release.Record
	TotalDownloads int
}

// Resolver collects the releases of the platform repository and their
// installer asset.
type Resolver struct {
	log         *logrus.Logger
	lister      ReleaseLister
	owner, repo string
	asset       string
	hash        HashFunc
}

type Option func(r *Resolver)

func WithHashFunc(fn HashFunc) Option {
	return func(r *Resolver) {
		r.hash = fn
	}
}

func NewResolver(log *logrus.Logger, lister ReleaseLister, owner, repo, asset string, opts ...Option) *Resolver {
	r := &Resolver{
		log:    log,
		lister: lister,
		owner:  owner,
		repo:   repo,
		asset:  asset,
		hash:   release.HashURL,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Resolver) installerAsset(raw *release.RawRelease) *release.Asset {
	for _, a := range raw.Assets {
		if strings.Contains(a.Name, "Source code") {
			continue
		}
		if strings.Contains(a.Name, r.asset) {
			return a
		}
	}
	return nil
}

// Resolve builds the platform release history. Hashes of releases found in
// prior with an unchanged asset are reused.
func (r *Resolver) Resolve(ctx context.Context, prior *index.PlatformReleases) (*Info, error) {
	log := r.log.WithField("repository", r.owner+"/"+r.repo)
	raws, err := r.lister.ListReleases(ctx, r.owner, r.repo)
	if err != nil {
		return nil, err
	}

	records := make([]*release.Record, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, raw := range raws {
		asset := r.installerAsset(raw)
		if asset == nil {
			log.WithField("tag", raw.Tag).Debugf("no %s asset found", r.asset)
			continue
		}
		version := raw.TagVersion()
		v, err := semver.NewVersion(version)
		if err != nil {
			log.WithField("tag", raw.Tag).Warnf("skipping release with invalid version: %v", err)
			continue
		}
		rec := &release.Record{
			Version:       version,
			Name:          asset.Name,
			Changelog:     raw.Body,
			DownloadURL:   asset.URL,
			DownloadCount: asset.DownloadCount,
			CreatedAt:     asset.CreatedAt.UTC(),
			UpdatedAt:     asset.UpdatedAt.UTC(),
			IsBeta:        raw.Prerelease || v.Prerelease() != "",
		}
		if p := prior.FindRelease(version); p != nil && p.SHA256 != "" && p.Updated.Equal(rec.UpdatedAt) {
			rec.SHA256 = p.SHA256
			records[i] = rec
			continue
		}
		rec.IsNew = true
		g.Go(func() error {
			sha, err := r.hash(gctx, asset.URL)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.WithField("tag", raw.Tag).Warnf("skipping release: %v", err)
				return nil
			}
			rec.SHA256 = sha
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	info := &Info{}
	for _, rec := range records {
		if rec != nil {
			info.Releases = append(info.Releases, rec)
			info.TotalDownloads += rec.DownloadCount
		}
	}
	slices.SortStableFunc(info.Releases, selector.Compare)
	sel := selector.Select(info.Releases)
	if sel.Stable == nil {
		return nil, fmt.Errorf("%w in %s/%s", ErrNoRelease, r.owner, r.repo)
	}
	info.Latest, info.LatestBeta = sel.Stable, sel.Beta
	return info, nil
}
