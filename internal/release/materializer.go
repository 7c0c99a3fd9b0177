package release

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/go-retryablehttp"
)

// Materializer turns raw releases into records. A Materializer is safe for
// concurrent use as long as every call gets its own tag within dir.
type Materializer struct {
	client *retryablehttp.Client
}

type MaterializerOption func(m *Materializer)

func WithRetryableClient(c *retryablehttp.Client) MaterializerOption {
	return func(m *Materializer) {
		m.client = c
	}
}

func NewMaterializer(opts ...MaterializerOption) *Materializer {
	m := &Materializer{client: getDefaultRetryableClient()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Materialize reuses prior when it is set and downloads, extracts and
// validates the release package otherwise. A prior whose asset was replaced
// is downloaded again so the record carries the current hash; the result is
// flagged as modified and not new. All files are written below dir.
func (m *Materializer) Materialize(ctx context.Context, dir string, raw *RawRelease, prior *Record) (Outcome, error) {
	asset := raw.PackageAsset()
	if prior != nil {
		reused := reuse(prior, asset)
		if asset == nil || !reused.Rec.HasAssetModifications {
			return reused, nil
		}
		fresh, err := m.download(ctx, dir, raw, asset)
		if err != nil {
			return reused, nil
		}
		fresh.Rec.IsNew = false
		fresh.Rec.HasAssetModifications = true
		return fresh, nil
	}
	if asset == nil {
		return nil, &NoAssetError{Tag: raw.Tag, Assets: raw.assetNames()}
	}
	return m.download(ctx, dir, raw, asset)
}

func (m *Materializer) download(ctx context.Context, dir string, raw *RawRelease, asset *Asset) (*Fresh, error) {
	name := WorkName(raw.TagSegment())
	archivePath := filepath.Join(dir, name+".zip")
	if err := downloadFile(ctx, m.client, asset.URL, archivePath); err != nil {
		return nil, err
	}
	extractDir := filepath.Join(dir, name)
	if err := extractZip(archivePath, extractDir); err != nil {
		return nil, err
	}
	manifestPath, err := findManifest(extractDir)
	if err != nil {
		return nil, err
	}
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	sha, err := SHA256File(archivePath)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		Version:       manifest.Version,
		Name:          asset.Name,
		Changelog:     raw.Body,
		DownloadURL:   asset.URL,
		SHA256:        sha,
		DownloadCount: asset.DownloadCount,
		CreatedAt:     asset.CreatedAt.UTC(),
		UpdatedAt:     asset.UpdatedAt.UTC(),
		Dependencies:  manifest.Dependencies,
		Environments:  manifest.Environments,
		IsBeta:        raw.Prerelease || isPrerelease(manifest.Version),
		IsNew:         true,
	}
	return &Fresh{
		Rec:         rec,
		Manifest:    manifest,
		ArchivePath: archivePath,
		ExtractDir:  extractDir,
		ManifestDir: manifest.BaseDir,
	}, nil
}

func reuse(prior *Record, asset *Asset) *Reused {
	rec := prior.clone()
	rec.IsNew = false
	rec.HasAssetModifications = false
	if asset == nil {
		rec.HasAssetModifications = true
		return &Reused{Rec: rec}
	}
	rec.DownloadCount = asset.DownloadCount
	rec.HasAssetModifications = !asset.UpdatedAt.Equal(prior.UpdatedAt)
	return &Reused{Rec: rec}
}

func isPrerelease(version string) bool {
	v, err := semver.NewVersion(version)
	if err != nil {
		return strings.Contains(version, "-")
	}
	return v.Prerelease() != ""
}

// WorkName maps a tag segment to a file name that stays inside its directory.
func WorkName(segment string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_', r == '+':
			return r
		}
		return '_'
	}, segment)
	if strings.Trim(name, ".") == "" {
		return "release"
	}
	return name
}
