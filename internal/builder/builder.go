package builder

import (
	"context"
	"errors"
	"fmt"

	"github.com/chorizite/plugin-index/internal/catalog"
	"github.com/chorizite/plugin-index/internal/config"
	"github.com/chorizite/plugin-index/internal/metrics"
	"github.com/chorizite/plugin-index/internal/notify"
	"github.com/chorizite/plugin-index/internal/platform"
	"github.com/chorizite/plugin-index/internal/reconcile"
	"github.com/chorizite/plugin-index/pkg/client"
	"github.com/chorizite/plugin-index/pkg/index"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var ErrNoPlugins = errors.New("no repository produced a catalog entry")

type Reconciler interface {
	Reconcile(ctx context.Context, repo config.Repository) (*reconcile.State, error)
}

type PlatformResolver interface {
	Resolve(ctx context.Context, prior *index.PlatformReleases) (*platform.Info, error)
}

// PublishedReader reads the previously published platform document.
type PublishedReader interface {
	GetPlatformReleases(ctx context.Context) (*index.PlatformReleases, error)
}

type Uploader interface {
	Upload(ctx context.Context, files catalog.Files) (int, error)
}

type Notifier interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Result describes one run.
type Result struct {
	// States holds one entry per input repository in input order. Excluded
	// repositories have a nil state.
	States   []*reconcile.State
	Errors   []error
	Catalog  *catalog.Catalog
	Files    catalog.Files
	Uploaded int
}

type Builder struct {
	log        *logrus.Logger
	cfg        *config.BuilderConfig
	reconciler Reconciler
	assembler  *catalog.Assembler
	output     string
	platform   PlatformResolver
	published  PublishedReader
	uploader   Uploader
	notifier   Notifier
}

type Option func(b *Builder)

func WithPlatform(resolver PlatformResolver, published PublishedReader) Option {
	return func(b *Builder) {
		b.platform = resolver
		b.published = published
	}
}

func WithUploader(u Uploader) Option {
	return func(b *Builder) {
		b.uploader = u
	}
}

func WithNotifier(n Notifier) Option {
	return func(b *Builder) {
		b.notifier = n
	}
}

func WithOutput(dir string) Option {
	return func(b *Builder) {
		b.output = dir
	}
}

func New(log *logrus.Logger, cfg *config.BuilderConfig, reconciler Reconciler, opts ...Option) *Builder {
	b := &Builder{
		log:        log,
		cfg:        cfg,
		reconciler: reconciler,
		assembler:  catalog.NewAssembler(cfg.PublishedBaseURL),
		output:     "out",
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build reconciles repos, writes the catalog to the output directory and
// optionally uploads it and sends notifications. Failures of single
// repositories exclude them from the catalog without failing the run.
func (b *Builder) Build(ctx context.Context, repos []config.Repository) (*Result, error) {
	res := &Result{
		States: make([]*reconcile.State, len(repos)),
		Errors: make([]error, len(repos)),
	}

	g := new(errgroup.Group)
	g.SetLimit(max(1, b.cfg.MaxConcurrentRepositories))
	for i, repo := range repos {
		g.Go(func() error {
			log := b.log.WithField("plugin", repo.ID)
			state, err := b.reconciler.Reconcile(ctx, repo)
			switch {
			case err != nil:
				log.Warnf("excluding repository %s: %v", repo.URL, err)
				res.Errors[i] = err
			case !catalog.Include(state):
				log.Warnf("excluding repository %s: no stable release", repo.URL)
				state = nil
			default:
				log.Infof("reconciled %s (%s)", repo.FullName(), state.LatestStable.Version)
			}
			if state == nil {
				metrics.Record(ctx, metrics.CounterRepositories, metrics.OutcomeExcluded)
			} else {
				metrics.Record(ctx, metrics.CounterRepositories, metrics.OutcomeIncluded)
			}
			res.States[i] = state
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res.Catalog = b.assembler.Assemble(b.resolvePlatform(ctx), res.States)
	if len(res.Catalog.Index.Plugins) == 0 {
		return res, ErrNoPlugins
	}

	files, err := b.assembler.Render(res.Catalog)
	if err != nil {
		return res, err
	}
	if err := b.validate(files); err != nil {
		return res, err
	}
	if err := catalog.Commit(b.output, files); err != nil {
		return res, err
	}
	res.Files = files
	b.log.Infof("wrote %d plugins to %s", len(res.Catalog.Index.Plugins), b.output)

	if b.uploader != nil {
		n, err := b.uploader.Upload(ctx, files)
		res.Uploaded = n
		if err != nil {
			return res, fmt.Errorf("failed to upload output: %w", err)
		}
		b.log.Infof("uploaded %d changed files", n)
	}

	b.notify(ctx, res.States)
	return res, nil
}

func (b *Builder) resolvePlatform(ctx context.Context) *platform.Info {
	if b.platform == nil {
		return nil
	}
	var prior *index.PlatformReleases
	if b.published != nil {
		p, err := b.published.GetPlatformReleases(ctx)
		switch {
		case err == nil:
			prior = p
		case errors.Is(err, client.ErrNotFound):
			b.log.Info("no published platform releases found")
		default:
			b.log.Warnf("failed to fetch published platform releases: %v", err)
		}
	}
	info, err := b.platform.Resolve(ctx, prior)
	if err != nil {
		b.log.Warnf("failed to resolve platform releases: %v", err)
		return nil
	}
	return info
}

func (b *Builder) validate(files catalog.Files) error {
	schemas, err := b.assembler.Schemas()
	if err != nil {
		return err
	}
	v, err := catalog.NewValidator(schemas)
	if err != nil {
		return err
	}
	return v.ValidateFiles(files)
}
