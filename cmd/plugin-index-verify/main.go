package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chorizite/plugin-index/internal/catalog"
	"github.com/chorizite/plugin-index/pkg/client"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "dev"

var defaultIndexURLs = []string{
	"https://chorizite.github.io/plugin-index",
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	cmd := &cobra.Command{
		Use:     "plugin-index-verify",
		Short:   "Validate a published plugin index against its schemas",
		Version: version,
		Args:    cobra.NoArgs,
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

	cmd.PersistentFlags().StringArrayP("index-url", "u", defaultIndexURLs, "the published index URL")
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

func run(log *logrus.Logger, cmd *cobra.Command, _ []string) error {
	log.Infof("starting plugin-index-verify (version=%s)", version)
	indexURLs := must(cmd.PersistentFlags().GetStringArray("index-url"))
	if len(indexURLs) == 0 {
		return errors.New("no index URLs provided")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	failed := false
	for _, url := range indexURLs {
		url = strings.TrimSuffix(url, "/")
		log.Infof("verifying plugin index: %s", url)
		report, err := catalog.Verify(ctx, client.New(url))
		if err != nil {
			log.Errorf("failed to verify plugin index %s: %v", url, err)
			failed = true
			continue
		}
		for _, err := range report.Errs {
			log.Errorf("%s: %v", url, err)
		}
		if len(report.Errs) > 0 {
			failed = true
			continue
		}
		log.Infof("%s: %d documents valid", url, len(report.Checked))
	}
	if failed {
		return errors.New("plugin index verification failed")
	}
	return nil
}
