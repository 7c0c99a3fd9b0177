package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/chorizite/plugin-index/internal/mirror"
	"github.com/chorizite/plugin-index/internal/notify"
	"github.com/google/go-github/v59/github"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/oauth2"
)

type BuilderConfig struct {
	GitHubToken                 string        `envconfig:"GITHUB_TOKEN"`
	GitHubUser                  string        `envconfig:"GITHUB_USER"`
	PublishedBaseURL            string        `envconfig:"PUBLISHED_BASE_URL" default:"https://chorizite.github.io/plugin-index"`
	OfficialOwner               string        `envconfig:"OFFICIAL_OWNER" default:"Chorizite"`
	PlatformRepo                string        `envconfig:"PLATFORM_REPO" default:"Chorizite/Chorizite"`
	PlatformAsset               string        `envconfig:"PLATFORM_ASSET" default:"Installer"`
	DefaultPlugins              []string      `envconfig:"DEFAULT_PLUGINS" default:"Lua,RmlUi,Launcher,AC,PluginManagerUI"`
	MaxConcurrentRepositories   int           `envconfig:"MAX_CONCURRENT_REPOSITORIES" default:"8"`
	MaxConcurrentDownloads      int           `envconfig:"MAX_CONCURRENT_DOWNLOADS" default:"4"`
	MirrorRegistry              string        `envconfig:"MIRROR_REGISTRY"`
	MirrorUsername              string        `envconfig:"MIRROR_USERNAME"`
	MirrorPassword              string        `envconfig:"MIRROR_PASSWORD"`
	PublishTimeout              time.Duration `envconfig:"PUBLISH_TIMEOUT" default:"5m"`
	DiscordWebhook              string        `envconfig:"DISCORD_WEBHOOK"`
	CloudflareR2Bucket          string        `envconfig:"CLOUDFLARE_R2_BUCKET"`
	CloudflareR2AccessKeyID     string        `envconfig:"CLOUDFLARE_R2_ACCESS_KEY_ID"`
	CloudflareR2SecretAccessKey string        `envconfig:"CLOUDFLARE_R2_SECRET_ACCESS_KEY"`
	CloudflareAccountID         string        `envconfig:"CLOUDFLARE_ACCOUNT_ID"`
	ProjectID                   string        `envconfig:"GOOGLE_CLOUD_PROJECT_ID"`
	DisableMetrics              bool          `envconfig:"DISABLE_METRICS"`
	Version                     string        `ignored:"true"`
}

func NewBuilderConfigFromEnv() (*BuilderConfig, error) {
	var bCfg BuilderConfig
	err := envconfig.Process("", &bCfg)
	if err != nil {
		return nil, err
	}
	if bCfg.GitHubToken == "" {
		bCfg.GitHubToken = os.Getenv("GH_TOKEN")
	}
	if bCfg.GitHubUser == "" {
		bCfg.GitHubUser = os.Getenv("GH_USER")
	}
	if err := bCfg.Validate(); err != nil {
		return nil, err
	}
	return &bCfg, nil
}

func (b *BuilderConfig) Validate() error {
	var errs []error
	if b.GitHubToken == "" {
		errs = append(errs, errors.New("GITHUB_TOKEN (or GH_TOKEN) is missing"))
	}
	if b.MaxConcurrentRepositories < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_REPOSITORIES must be positive: %d", b.MaxConcurrentRepositories))
	}
	if b.MaxConcurrentDownloads < 1 {
		errs = append(errs, fmt.Errorf("MAX_CONCURRENT_DOWNLOADS must be positive: %d", b.MaxConcurrentDownloads))
	}
	if b.PublishTimeout <= 0 {
		errs = append(errs, fmt.Errorf("PUBLISH_TIMEOUT must be positive: %s", b.PublishTimeout))
	}
	if b.UploadEnabled() && (b.CloudflareR2AccessKeyID == "" || b.CloudflareR2SecretAccessKey == "" || b.CloudflareAccountID == "") {
		errs = append(errs, errors.New("CLOUDFLARE_R2_BUCKET requires CLOUDFLARE_R2_ACCESS_KEY_ID, CLOUDFLARE_R2_SECRET_ACCESS_KEY and CLOUDFLARE_ACCOUNT_ID"))
	}
	return errors.Join(errs...)
}

func (b *BuilderConfig) IsDefaultPlugin(id string) bool {
	return slices.Contains(b.DefaultPlugins, id)
}

// PackageID is the mirror package name of a plugin.
func (b *BuilderConfig) PackageID(id string) string {
	if b.IsDefaultPlugin(id) {
		return "Chorizite.Plugins." + id
	}
	return id
}

// PlatformRepository returns the repository the platform is released from.
func (b *BuilderConfig) PlatformRepository() Repository {
	return Repository{ID: "Chorizite", URL: "https://github.com/" + b.PlatformRepo}
}

func (b *BuilderConfig) MetricsEnabled() bool {
	return !b.DisableMetrics && b.ProjectID != ""
}

func (b *BuilderConfig) UploadEnabled() bool {
	return b.CloudflareR2Bucket != ""
}

func (b *BuilderConfig) CreateGitHubClient() *github.Client {
	oauthClient := oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: b.GitHubToken}))
	return github.NewClient(oauthClient)
}

func (b *BuilderConfig) r2CloudflareEndpointResolver(_, _ string, _ ...interface{}) (aws.Endpoint, error) {
	return aws.Endpoint{
		URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", b.CloudflareAccountID),
	}, nil
}

func (b *BuilderConfig) CreateS3Client() (*s3.Client, error) {
	staticCredentialsProvider := credentials.NewStaticCredentialsProvider(
		b.CloudflareR2AccessKeyID,
		b.CloudflareR2SecretAccessKey,
		"",
	)
	s3Cfg, err := awsConfig.LoadDefaultConfig(context.TODO(),
		awsConfig.WithRegion("auto"),
		awsConfig.WithEndpointResolverWithOptions(aws.EndpointResolverWithOptionsFunc(b.r2CloudflareEndpointResolver)),
		awsConfig.WithCredentialsProvider(staticCredentialsProvider),
	)
	if err != nil {
		return nil, err
	}
	return s3.NewFromConfig(s3Cfg), nil
}

func (b *BuilderConfig) GetBucket() *string {
	return &b.CloudflareR2Bucket
}

// CreatePublisher returns nil when no mirror registry is configured. Missing
// mirror credentials fall back to the GitHub user and token.
func (b *BuilderConfig) CreatePublisher() *mirror.OCIPublisher {
	if b.MirrorRegistry == "" {
		return nil
	}
	username, password := b.MirrorUsername, b.MirrorPassword
	if username == "" {
		username = b.GitHubUser
	}
	if password == "" {
		password = b.GitHubToken
	}
	return mirror.NewOCIPublisher(b.MirrorRegistry,
		mirror.WithTimeout(b.PublishTimeout),
		mirror.WithCredentials(username, password),
	)
}

// CreateNotifier returns nil when no webhook is configured.
func (b *BuilderConfig) CreateNotifier() *notify.Discord {
	if b.DiscordWebhook == "" {
		return nil
	}
	return notify.NewDiscord(b.DiscordWebhook)
}
