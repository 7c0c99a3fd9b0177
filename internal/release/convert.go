package release

import (
	"slices"

	"github.com/chorizite/plugin-index/pkg/index"
)

// RecordFromDetails converts a published release back into a record.
func RecordFromDetails(d *index.ReleaseDetails) *Record {
	if d == nil {
		return nil
	}
	return &Record{
		Version:       d.Version,
		Name:          d.Name,
		Changelog:     d.Changelog,
		DownloadURL:   d.DownloadURL,
		SHA256:        d.SHA256,
		DownloadCount: d.Downloads,
		CreatedAt:     d.Created,
		UpdatedAt:     d.Updated,
		Dependencies:  slices.Clone(d.Dependencies),
		Environments:  slices.Clone(d.Environments),
		IsBeta:        d.IsBeta,
	}
}

// Details converts the record into its published form.
func (r *Record) Details() *index.ReleaseDetails {
	return &index.ReleaseDetails{
		Name:         r.Name,
		Changelog:    r.Changelog,
		DownloadURL:  r.DownloadURL,
		SHA256:       r.SHA256,
		Version:      r.Version,
		IsBeta:       r.IsBeta,
		Downloads:    r.DownloadCount,
		Created:      r.CreatedAt,
		Updated:      r.UpdatedAt,
		Dependencies: slices.Clone(r.Dependencies),
		Environments: slices.Clone(r.Environments),
	}
}

// Pointer converts the record into a channel pointer of the index.
func (r *Record) Pointer() *index.Release {
	if r == nil {
		return nil
	}
	return &index.Release{
		Version:                 r.Version,
		DownloadURL:             r.DownloadURL,
		SHA256:                  r.SHA256,
		Downloads:               r.DownloadCount,
		Created:                 r.CreatedAt,
		Updated:                 r.UpdatedAt,
		HasReleaseModifications: r.HasAssetModifications,
	}
}

// FindPrior returns the published release matching the version encoded in
// raw's tag.
func FindPrior(published *index.PluginDetails, raw *RawRelease) *Record {
	if published == nil {
		return nil
	}
	version := raw.TagVersion()
	for _, d := range published.Releases {
		if SameVersion(d.Version, version) {
			return RecordFromDetails(d)
		}
	}
	return nil
}
