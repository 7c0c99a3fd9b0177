package catalog

import (
	"net/url"
	"slices"
	"strings"

	"github.com/chorizite/plugin-index/internal/platform"
	"github.com/chorizite/plugin-index/internal/reconcile"
	"github.com/chorizite/plugin-index/internal/release"
	"github.com/chorizite/plugin-index/pkg/client"
	"github.com/chorizite/plugin-index/pkg/index"
)

// Catalog is everything published by one run.
type Catalog struct {
	Index    *index.GlobalIndex
	Details  []*index.PluginDetails
	Icons    map[string][]byte
	Platform *index.PlatformReleases
}

type Assembler struct {
	baseURL string
}

// NewAssembler returns an assembler whose documents reference their schemas
// below baseURL.
func NewAssembler(baseURL string) *Assembler {
	return &Assembler{baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (a *Assembler) SchemaURL(name string) string {
	u, err := url.JoinPath(a.baseURL, client.SchemaPath(name))
	if err != nil {
		return a.baseURL + "/" + client.SchemaPath(name)
	}
	return u
}

// Include reports whether a state may appear in the catalog.
func Include(s *reconcile.State) bool {
	return s != nil && len(s.Releases) > 0 && s.LatestStable != nil
}

// Assemble merges the repository states into a catalog. States without a
// stable release are skipped, plat may be nil.
func (a *Assembler) Assemble(plat *platform.Info, states []*reconcile.State) *Catalog {
	c := &Catalog{
		Index: &index.GlobalIndex{
			Schema: a.SchemaURL(index.IndexSchemaFile),
		},
		Icons: make(map[string][]byte),
	}
	included := make([]*reconcile.State, 0, len(states))
	for _, s := range states {
		if Include(s) {
			included = append(included, s)
		}
	}
	slices.SortFunc(included, func(x, y *reconcile.State) int {
		return strings.Compare(x.Repository.ID, y.Repository.ID)
	})

	for _, s := range included {
		listing, details := a.plugin(s)
		c.Index.Plugins = append(c.Index.Plugins, listing)
		c.Details = append(c.Details, details)
		if len(s.Icon) > 0 {
			c.Icons[s.Repository.ID] = s.Icon
		}
	}

	if plat != nil && plat.Latest != nil {
		c.Index.Chorizite = &index.PlatformInfo{
			Latest:     plat.Latest.Pointer(),
			LatestBeta: plat.LatestBeta.Pointer(),
		}
		c.Platform = &index.PlatformReleases{
			Schema:         a.SchemaURL(index.PlatformReleasesSchemaFile),
			TotalDownloads: plat.TotalDownloads,
		}
		for _, r := range plat.Releases {
			c.Platform.Releases = append(c.Platform.Releases, r.Details())
		}
	}
	return c
}

func totalDownloads(records []*release.Record) int {
	total := 0
	for _, r := range records {
		total += r.DownloadCount
	}
	return total
}

func normalizedDetails(r *release.Record) *index.ReleaseDetails {
	d := r.Details()
	d.Dependencies = NormalizeDependencies(d.Dependencies)
	d.Environments = NormalizeEnvironments(d.Environments)
	return d
}

func (a *Assembler) plugin(s *reconcile.State) (*index.PluginListing, *index.PluginDetails) {
	total := totalDownloads(s.Releases)
	listing := &index.PluginListing{
		ID:             s.Repository.ID,
		Name:           s.Name,
		Website:        s.Repository.URL,
		Description:    s.Description,
		Author:         s.Author,
		IsDefault:      s.IsDefault,
		IsOfficial:     s.IsOfficial,
		TotalDownloads: total,
		Latest:         s.LatestStable.Pointer(),
		LatestBeta:     s.LatestBeta.Pointer(),
		Dependencies:   NormalizeDependencies(s.LatestStable.Dependencies),
		Environments:   NormalizeEnvironments(s.LatestStable.Environments),
	}
	details := &index.PluginDetails{
		Schema:         a.SchemaURL(index.PluginDetailsSchemaFile),
		ID:             s.Repository.ID,
		Name:           s.Name,
		Website:        s.Repository.URL,
		Author:         s.Author,
		Description:    s.Description,
		IsDefault:      s.IsDefault,
		IsOfficial:     s.IsOfficial,
		TotalDownloads: total,
	}
	for _, r := range s.Releases {
		details.Releases = append(details.Releases, normalizedDetails(r))
	}
	return listing, details
}
