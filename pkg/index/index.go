package index

import (
	"time"
)

const (
	IndexSchemaFile            = "release-index-schema.json"
	PluginDetailsSchemaFile    = "plugin-details-schema.json"
	PlatformReleasesSchemaFile = "chorizite-releases-schema.json"
)

// GlobalIndex is the document published as index.json.
type GlobalIndex struct {
	Schema    string           `json:"$schema"`
	Chorizite *PlatformInfo    `json:"chorizite,omitempty" jsonschema:"description=Latest Chorizite releases"`
	Plugins   []*PluginListing `json:"plugins,omitempty" jsonschema:"description=All plugins with at least one stable release"`
}

type PlatformInfo struct {
	Latest     *Release `json:"latest"`
	LatestBeta *Release `json:"latestBeta,omitempty"`
}

// Release is a channel pointer as listed in the index.
type Release struct {
	Version                 string    `json:"version"`
	DownloadURL             string    `json:"downloadUrl"`
	SHA256                  string    `json:"sha256"`
	Downloads               int       `json:"downloads"`
	Created                 time.Time `json:"created"`
	Updated                 time.Time `json:"updated"`
	HasReleaseModifications bool      `json:"hasReleaseModifications"`
}

type PluginListing struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Website        string   `json:"website"`
	Description    string   `json:"description"`
	Author         string   `json:"author"`
	IsDefault      bool     `json:"isDefault"`
	IsOfficial     bool     `json:"isOfficial"`
	TotalDownloads int      `json:"totalDownloads"`
	Latest         *Release `json:"latest"`
	LatestBeta     *Release `json:"latestBeta,omitempty"`
	Dependencies   []string `json:"dependencies,omitempty"`
	Environments   []string `json:"environments,omitempty"`
}

// PluginDetails is the document published as plugins/<id>.json. It carries
// the full release history and is read back by the next run.
type PluginDetails struct {
	Schema         string            `json:"$schema"`
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Website        string            `json:"website"`
	Author         string            `json:"author"`
	Description    string            `json:"description"`
	IsDefault      bool              `json:"isDefault"`
	IsOfficial     bool              `json:"isOfficial"`
	TotalDownloads int               `json:"totalDownloads"`
	Releases       []*ReleaseDetails `json:"releases,omitempty"`
}

type ReleaseDetails struct {
	Name         string    `json:"name"`
	Changelog    string    `json:"changelog"`
	DownloadURL  string    `json:"downloadUrl"`
	SHA256       string    `json:"sha256"`
	Version      string    `json:"version"`
	IsBeta       bool      `json:"isBeta"`
	Downloads    int       `json:"downloads"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
	Dependencies []string  `json:"dependencies,omitempty"`
	Environments []string  `json:"environments,omitempty"`
}

// PlatformReleases is the document published as chorizite.json.
type PlatformReleases struct {
	Schema         string            `json:"$schema"`
	TotalDownloads int               `json:"totalDownloads" jsonschema:"description=The total number of downloads for chorizite"`
	Releases       []*ReleaseDetails `json:"releases,omitempty" jsonschema:"description=The list of available releases for chorizite"`
}

// FindRelease returns the release with the given version or nil.
func (d *PluginDetails) FindRelease(version string) *ReleaseDetails {
	if d == nil {
		return nil
	}
	for _, r := range d.Releases {
		if r.Version == version {
			return r
		}
	}
	return nil
}

func (p *PlatformReleases) FindRelease(version string) *ReleaseDetails {
	if p == nil {
		return nil
	}
	for _, r := range p.Releases {
		if r.Version == version {
			return r
		}
	}
	return nil
}
