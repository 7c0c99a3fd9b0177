package release

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
)

// RawRelease is a release as reported by the hosting platform.
type RawRelease struct {
	Tag         string
	Name        string
	Body        string
	Prerelease  bool
	Draft       bool
	PublishedAt time.Time
	Assets      []*Asset
}

type Asset struct {
	Name          string
	URL           string
	Size          int
	DownloadCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TagSegment returns the last path segment of the tag, e.g. "v1.2.0" for
// "plugins/lua/v1.2.0".
func (r *RawRelease) TagSegment() string {
	tag := r.Tag
	if i := strings.LastIndex(tag, "/"); i >= 0 {
		tag = tag[i+1:]
	}
	return tag
}

// TagVersion returns the version encoded in the tag without a "v" prefix.
func (r *RawRelease) TagVersion() string {
	return strings.TrimPrefix(r.TagSegment(), "v")
}

// PackageAsset returns the zip asset holding the plugin package. GitHub's
// generated source archives are ignored.
func (r *RawRelease) PackageAsset() *Asset {
	for _, a := range r.Assets {
		if strings.Contains(a.Name, "Source code") {
			continue
		}
		if strings.HasSuffix(strings.ToLower(a.Name), ".zip") {
			return a
		}
	}
	return nil
}

func (r *RawRelease) assetNames() []string {
	names := make([]string, len(r.Assets))
	for i, a := range r.Assets {
		names[i] = a.Name
	}
	return names
}

// Record is the reconciled form of one release.
type Record struct {
	Version       string
	Name          string
	Changelog     string
	DownloadURL   string
	SHA256        string
	DownloadCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Dependencies  []string
	Environments  []string
	IsBeta        bool

	// run-local classification, never persisted
	IsNew                 bool
	HasAssetModifications bool
}

// SemVer parses the record version. Records only ever carry parseable
// versions, so nil means the record was built by hand.
func (r *Record) SemVer() *semver.Version {
	v, err := semver.NewVersion(r.Version)
	if err != nil {
		return nil
	}
	return v
}

func (r *Record) clone() *Record {
	c := *r
	c.Dependencies = slices.Clone(r.Dependencies)
	c.Environments = slices.Clone(r.Environments)
	return &c
}

// Outcome is the result of materializing one release: either Fresh or Reused.
type Outcome interface {
	Record() *Record
	isOutcome()
}

// Fresh is a release that was downloaded, extracted and validated in this run.
type Fresh struct {
	Rec         *Record
	Manifest    *Manifest
	ArchivePath string
	ExtractDir  string
	ManifestDir string
}

func (f *Fresh) Record() *Record { return f.Rec }

// IconPath returns the author supplied icon or "" when the manifest names
// none. The icon must lie inside the extracted package.
func (f *Fresh) IconPath() (string, error) {
	p := f.Manifest.IconPath()
	if p == "" {
		return "", nil
	}
	root := filepath.Clean(f.ExtractDir) + string(os.PathSeparator)
	if !strings.HasPrefix(p+string(os.PathSeparator), root) {
		return "", &InvalidIconError{Icon: f.Manifest.Icon}
	}
	return p, nil
}
func (*Fresh) isOutcome()        {}

// Reused is a release whose record was taken from the published catalog.
type Reused struct {
	Rec *Record
}

func (r *Reused) Record() *Record { return r.Rec }
func (*Reused) isOutcome()        {}

// SameVersion reports whether a and b denote the same semantic version,
// falling back to string equality for unparseable input.
func SameVersion(a, b string) bool {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	if errA != nil || errB != nil {
		return strings.TrimPrefix(a, "v") == strings.TrimPrefix(b, "v")
	}
	return va.Equal(vb) && va.Metadata() == vb.Metadata()
}
