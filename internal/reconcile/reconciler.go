package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"unicode/utf8"

	"github.com/chorizite/plugin-index/internal/config"
	"github.com/chorizite/plugin-index/internal/icon"
	"github.com/chorizite/plugin-index/internal/metrics"
	"github.com/chorizite/plugin-index/internal/mirror"
	"github.com/chorizite/plugin-index/internal/release"
	"github.com/chorizite/plugin-index/internal/selector"
	"github.com/chorizite/plugin-index/pkg/client"
	"github.com/chorizite/plugin-index/pkg/index"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type ReleaseLister interface {
	ListReleases(ctx context.Context, owner, repo string) ([]*release.RawRelease, error)
}

// DetailsFetcher reads the previously published catalog.
type DetailsFetcher interface {
	GetPluginDetails(ctx context.Context, id string) (*index.PluginDetails, error)
	GetPluginIcon(ctx context.Context, id string) ([]byte, error)
}

type Materializer interface {
	Materialize(ctx context.Context, dir string, raw *release.RawRelease, prior *release.Record) (release.Outcome, error)
}

type IconRenderer interface {
	Render(source []byte, glyph rune) ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, packageID, version, path string) (mirror.Result, error)
}

// State is the reconciled view of one repository. LatestStable and
// LatestBeta point into Releases.
type State struct {
	Repository   config.Repository
	Name         string
	Author       string
	Description  string
	IsDefault    bool
	IsOfficial   bool
	Releases     []*release.Record
	LatestStable *release.Record
	LatestBeta   *release.Record
	Icon         []byte

	Fresh        int
	Reused       int
	Failed       int
	Publications []Publication
}

type Publication struct {
	Version string
	Result  mirror.Result
	Err     error
}

// ModifiedReleases returns the reused releases whose package asset changed.
func (s *State) ModifiedReleases() []*release.Record {
	var ret []*release.Record
	for _, r := range s.Releases {
		if !r.IsNew && r.HasAssetModifications {
			ret = append(ret, r)
		}
	}
	return ret
}

type Reconciler struct {
	log          *logrus.Logger
	cfg          *config.BuilderConfig
	lister       ReleaseLister
	details      DetailsFetcher
	materializer Materializer
	renderer     IconRenderer
	publisher    Publisher
	workDir      string
}

type Option func(r *Reconciler)

func WithPublisher(p Publisher) Option {
	return func(r *Reconciler) {
		r.publisher = p
	}
}

func WithWorkDir(dir string) Option {
	return func(r *Reconciler) {
		r.workDir = dir
	}
}

func New(log *logrus.Logger, cfg *config.BuilderConfig, lister ReleaseLister, details DetailsFetcher, materializer Materializer, renderer IconRenderer, opts ...Option) *Reconciler {
	r := &Reconciler{
		log:          log,
		cfg:          cfg,
		lister:       lister,
		details:      details,
		materializer: materializer,
		renderer:     renderer,
		workDir:      "tmp",
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Reconciler) downloadLimit() int {
	return max(1, r.cfg.MaxConcurrentDownloads)
}

// Reconcile builds the state of repo. It returns a nil state without error
// when the repository has no stable release.
func (r *Reconciler) Reconcile(ctx context.Context, repo config.Repository) (*State, error) {
	log := r.log.WithFields(logrus.Fields{"repository": repo.FullName(), "plugin": repo.ID})
	owner, name := repo.Owner(), repo.Name()
	if owner == "" {
		return nil, fmt.Errorf("invalid repository url: %s", repo.URL)
	}
	dir := filepath.Join(r.workDir, owner, name)
	if err := os.RemoveAll(dir); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	raws, err := r.lister.ListReleases(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	log.Infof("found %d releases", len(raws))

	published, err := r.details.GetPluginDetails(ctx, repo.ID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) {
			log.Info("no published details found, treating all releases as new")
		} else {
			log.Warnf("failed to fetch published details: %v", err)
		}
		published = nil
	}

	state := &State{
		Repository: repo,
		IsDefault:  r.cfg.IsDefaultPlugin(repo.ID),
		IsOfficial: owner == r.cfg.OfficialOwner,
	}
	outcomes := r.materializeAll(ctx, log, dir, uniqueTags(log, raws), published, state)

	records, fresh := collect(log, outcomes)
	slices.SortStableFunc(records, selector.Compare)
	sel := selector.Select(records)
	if sel.Stable == nil {
		log.Warnf("no stable release among %d valid releases, skipping", len(records))
		return nil, nil
	}
	state.Releases = records
	state.LatestStable = sel.Stable
	state.LatestBeta = sel.Beta

	newest := newestFresh(fresh)
	state.Name, state.Author, state.Description = resolveMetadata(newest, published, owner, name)
	state.Icon = r.resolveIcon(ctx, log, repo.ID, newest, newest != nil)
	state.Publications = r.publishAll(ctx, log, repo.ID, fresh)
	return state, nil
}

// uniqueTags drops releases whose tag maps onto the working files of an
// earlier release.
func uniqueTags(log *logrus.Entry, raws []*release.RawRelease) []*release.RawRelease {
	seen := make(map[string]bool, len(raws))
	ret := make([]*release.RawRelease, 0, len(raws))
	for _, raw := range raws {
		seg := release.WorkName(raw.TagSegment())
		if seen[seg] {
			log.WithField("tag", raw.Tag).Warn("duplicate release tag, skipping")
			continue
		}
		seen[seg] = true
		ret = append(ret, raw)
	}
	return ret
}

func (r *Reconciler) materializeAll(ctx context.Context, log *logrus.Entry, dir string, raws []*release.RawRelease, published *index.PluginDetails, state *State) []release.Outcome {
	outcomes := make([]release.Outcome, len(raws))
	g := new(errgroup.Group)
	g.SetLimit(r.downloadLimit())
	for i, raw := range raws {
		g.Go(func() error {
			rlog := log.WithField("tag", raw.Tag)
			out, err := r.materializer.Materialize(ctx, dir, raw, release.FindPrior(published, raw))
			if err != nil {
				rlog.Warnf("skipping release: %v", err)
				metrics.Record(ctx, metrics.CounterReleases, metrics.OutcomeFailed)
				return nil
			}
			switch out.(type) {
			case *release.Fresh:
				rlog.Debug("materialized release")
				metrics.Record(ctx, metrics.CounterReleases, metrics.OutcomeFresh)
			case *release.Reused:
				rlog.Debug("reused published release")
				metrics.Record(ctx, metrics.CounterReleases, metrics.OutcomeReused)
			}
			outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		switch out.(type) {
		case *release.Fresh:
			state.Fresh++
		case *release.Reused:
			state.Reused++
		default:
			state.Failed++
		}
	}
	return outcomes
}

// collect returns the records in listing order with duplicate versions
// removed, together with the fresh outcomes that survived.
func collect(log *logrus.Entry, outcomes []release.Outcome) ([]*release.Record, []*release.Fresh) {
	seen := make(map[string]bool, len(outcomes))
	records := make([]*release.Record, 0, len(outcomes))
	var fresh []*release.Fresh
	for _, out := range outcomes {
		if out == nil {
			continue
		}
		rec := out.Record()
		v := rec.SemVer()
		if v == nil {
			log.WithField("version", rec.Version).Warn("skipping release with invalid version")
			continue
		}
		key := v.String()
		if seen[key] {
			log.WithField("version", rec.Version).Warn("duplicate release version, skipping")
			continue
		}
		seen[key] = true
		records = append(records, rec)
		if f, ok := out.(*release.Fresh); ok {
			fresh = append(fresh, f)
		}
	}
	return records, fresh
}

// newestFresh returns the newest release that was not published before.
// Re-downloaded releases with replaced assets do not count.
func newestFresh(fresh []*release.Fresh) *release.Fresh {
	var newest *release.Fresh
	for _, f := range fresh {
		if !f.Rec.IsNew {
			continue
		}
		if newest == nil || selector.Compare(f.Rec, newest.Rec) < 0 {
			newest = f
		}
	}
	return newest
}

func resolveMetadata(newest *release.Fresh, published *index.PluginDetails, owner, repoName string) (string, string, string) {
	name, author, description := repoName, owner, ""
	if published != nil {
		name = firstNonEmpty(published.Name, name)
		author = firstNonEmpty(published.Author, author)
		description = firstNonEmpty(published.Description, description)
	}
	if newest != nil {
		name = firstNonEmpty(newest.Manifest.Name, name)
		author = firstNonEmpty(newest.Manifest.Author, author)
		description = firstNonEmpty(newest.Manifest.Description, description)
	}
	return name, author, description
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (r *Reconciler) resolveIcon(ctx context.Context, log *logrus.Entry, id string, newest *release.Fresh, hasFresh bool) []byte {
	glyph, _ := utf8.DecodeRuneInString(id)
	if !hasFresh {
		data, err := r.details.GetPluginIcon(ctx, id)
		if err == nil {
			return data
		}
		log.Warnf("failed to fetch published icon, rendering a new one: %v", err)
		return r.renderIcon(log, nil, glyph)
	}

	var source []byte
	path, err := newest.IconPath()
	if err != nil {
		log.Warnf("ignoring icon: %v", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err != nil:
			log.Warnf("icon %s not found: %v", newest.Manifest.Icon, err)
		case !icon.Supported(data):
			log.Warnf("icon %s is not a supported image", newest.Manifest.Icon)
		default:
			source = data
		}
	}
	return r.renderIcon(log, source, glyph)
}

func (r *Reconciler) renderIcon(log *logrus.Entry, source []byte, glyph rune) []byte {
	data, err := r.renderer.Render(source, glyph)
	if err != nil && source != nil {
		log.Warnf("failed to render author icon: %v", err)
		data, err = r.renderer.Render(nil, glyph)
	}
	if err != nil {
		log.Errorf("failed to render icon: %v", err)
		return nil
	}
	return data
}

func (r *Reconciler) publishAll(ctx context.Context, log *logrus.Entry, id string, fresh []*release.Fresh) []Publication {
	if r.publisher == nil || len(fresh) == 0 {
		return nil
	}
	packageID := r.cfg.PackageID(id)
	pubs := make([]Publication, len(fresh))
	g := new(errgroup.Group)
	g.SetLimit(r.downloadLimit())
	for i, f := range fresh {
		g.Go(func() error {
			version := f.Rec.Version
			plog := log.WithFields(logrus.Fields{"package": packageID, "version": version})
			res, err := r.publisher.Publish(ctx, packageID, version, f.ArchivePath)
			pubs[i] = Publication{Version: version, Result: res, Err: err}
			if err != nil {
				plog.Warnf("failed to mirror package: %v", err)
				metrics.Record(ctx, metrics.CounterPublishes, metrics.OutcomeFailed)
				return nil
			}
			plog.Infof("package %s", res)
			if res == mirror.Published {
				metrics.Record(ctx, metrics.CounterPublishes, metrics.OutcomePublished)
			} else {
				metrics.Record(ctx, metrics.CounterPublishes, metrics.OutcomeAlreadyExists)
			}
			return nil
		})
	}
	_ = g.Wait()
	return pubs
}
