package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chorizite/plugin-index/internal/builder"
	"github.com/chorizite/plugin-index/internal/catalog"
	"github.com/chorizite/plugin-index/internal/config"
	"github.com/chorizite/plugin-index/internal/icon"
	"github.com/chorizite/plugin-index/internal/metrics"
	"github.com/chorizite/plugin-index/internal/platform"
	"github.com/chorizite/plugin-index/internal/reconcile"
	"github.com/chorizite/plugin-index/internal/release"
	"github.com/chorizite/plugin-index/internal/source"
	"github.com/chorizite/plugin-index/pkg/client"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

func setupLogger() *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return log
}

func main() {
	log := setupLogger()
	cmd := &cobra.Command{
		Use:     "plugin-index-builder [repositories.json]",
		Short:   "Build the Chorizite plugin index",
		Version: version,
		Args:    cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := run(log, cmd, args); err != nil {
				log.Errorf("ERROR: %v", err)
				os.Exit(1)
			}
		},
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	cmd.PersistentFlags().StringP("output", "o", "out", "the output directory")
	cmd.PersistentFlags().StringP("workdir", "w", "tmp", "the working directory for downloaded packages")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().SortFlags = false

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func run(log *logrus.Logger, cmd *cobra.Command, args []string) error {
	if must(cmd.PersistentFlags().GetBool("verbose")) {
		log.SetLevel(logrus.DebugLevel)
	}
	log.Infof("starting plugin-index-builder (version=%s)", version)
	output := must(cmd.PersistentFlags().GetString("output"))
	workDir := must(cmd.PersistentFlags().GetString("workdir"))

	cfg, err := config.NewBuilderConfigFromEnv()
	if err != nil {
		return err
	}
	cfg.Version = version

	repos, err := config.LoadRepositories(args[0])
	if err != nil {
		return err
	}
	log.Infof("loaded %d repositories from %s", len(repos), args[0])

	if cfg.MetricsEnabled() {
		log.Info("starting metrics exporter...")
		exporter, err := metrics.NewExporter(cfg)
		if err != nil {
			return err
		}
		defer func() {
			exporter.Flush()
			exporter.StopMetricsExporter()
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	releases := source.NewGitHub(cfg.CreateGitHubClient())
	published := client.New(cfg.PublishedBaseURL)
	renderer, err := icon.NewRenderer()
	if err != nil {
		return err
	}

	var recOpts []reconcile.Option
	recOpts = append(recOpts, reconcile.WithWorkDir(workDir))
	if publisher := cfg.CreatePublisher(); publisher != nil {
		log.Infof("mirroring packages to %s", cfg.MirrorRegistry)
		recOpts = append(recOpts, reconcile.WithPublisher(publisher))
	}
	rec := reconcile.New(log, cfg, releases, published, release.NewMaterializer(), renderer, recOpts...)

	platformRepo := cfg.PlatformRepository()
	opts := []builder.Option{
		builder.WithOutput(output),
		builder.WithPlatform(platform.NewResolver(log, releases, platformRepo.Owner(), platformRepo.Name(), cfg.PlatformAsset), published),
	}
	if notifier := cfg.CreateNotifier(); notifier != nil {
		opts = append(opts, builder.WithNotifier(notifier))
	}
	if cfg.UploadEnabled() {
		s3Client, err := cfg.CreateS3Client()
		if err != nil {
			return err
		}
		log.Infof("uploading output to bucket %s", *cfg.GetBucket())
		opts = append(opts, builder.WithUploader(catalog.NewUploader(log, s3Client, cfg.GetBucket())))
	}

	res, err := builder.New(log, cfg, rec, opts...).Build(ctx, repos)
	if res != nil {
		builder.WriteSummary(os.Stdout, repos, res)
	}
	return err
}
