package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRepositories(t *testing.T) {
	repos, err := ParseRepositories([]byte(`{"repositories":{
		"RmlUi": "https://github.com/Chorizite/RmlUi",
		"Lua": "https://github.com/Chorizite/Lua/",
		"Tools": "https://github.com/someone/tools.git"
	}}`))
	require.NoError(t, err)
	require.Len(t, repos, 3)
	require.Equal(t, "Lua", repos[0].ID)
	require.Equal(t, "Chorizite", repos[0].Owner())
	require.Equal(t, "Lua", repos[0].Name())
	require.Equal(t, "Chorizite/RmlUi", repos[1].FullName())
	require.Equal(t, "tools", repos[2].Name())
}

func TestParseRepositoriesInvalid(t *testing.T) {
	_, err := ParseRepositories([]byte(`{"repositories":{}}`))
	require.Error(t, err)
	_, err = ParseRepositories([]byte(`{"repositories":{"x":"https://example.com"}}`))
	require.ErrorContains(t, err, "invalid repository url for x")
	_, err = ParseRepositories([]byte(`{"repositories":{"../x":"https://github.com/a/b"}}`))
	require.ErrorContains(t, err, "invalid repository id")
	_, err = ParseRepositories([]byte(`[]`))
	require.Error(t, err)
}

func TestLoadRepositories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repositories.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"repositories":{"Lua":"https://github.com/Chorizite/Lua"}}`), 0o644))
	repos, err := LoadRepositories(path)
	require.NoError(t, err)
	require.Equal(t, []Repository{{ID: "Lua", URL: "https://github.com/Chorizite/Lua"}}, repos)
}

func TestNewBuilderConfigFromEnv(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "gh-token")
	t.Setenv("GH_USER", "someone")
	t.Setenv("MIRROR_REGISTRY", "ghcr.io/chorizite/plugins")
	t.Setenv("PUBLISH_TIMEOUT", "30s")

	cfg, err := NewBuilderConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, "gh-token", cfg.GitHubToken)
	require.Equal(t, "someone", cfg.GitHubUser)
	require.Equal(t, "https://chorizite.github.io/plugin-index", cfg.PublishedBaseURL)
	require.Equal(t, 30*time.Second, cfg.PublishTimeout)
	require.Equal(t, []string{"Lua", "RmlUi", "Launcher", "AC", "PluginManagerUI"}, cfg.DefaultPlugins)
	require.False(t, cfg.UploadEnabled())
	require.False(t, cfg.MetricsEnabled())
	require.NotNil(t, cfg.CreatePublisher())
	require.Nil(t, cfg.CreateNotifier())
}

func TestNewBuilderConfigFromEnvMissingToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
	_, err := NewBuilderConfigFromEnv()
	require.ErrorContains(t, err, "GITHUB_TOKEN")
}

func TestValidateUpload(t *testing.T) {
	cfg := &BuilderConfig{
		GitHubToken:               "x",
		MaxConcurrentRepositories: 1,
		MaxConcurrentDownloads:    1,
		PublishTimeout:            time.Minute,
		CloudflareR2Bucket:        "bucket",
	}
	require.ErrorContains(t, cfg.Validate(), "CLOUDFLARE_R2_BUCKET requires")
}

func TestPackageID(t *testing.T) {
	cfg := &BuilderConfig{DefaultPlugins: []string{"Lua"}}
	require.Equal(t, "Chorizite.Plugins.Lua", cfg.PackageID("Lua"))
	require.Equal(t, "Tools", cfg.PackageID("Tools"))
	require.True(t, cfg.IsDefaultPlugin("Lua"))
}

func TestPlatformRepository(t *testing.T) {
	cfg := &BuilderConfig{PlatformRepo: "Chorizite/Chorizite"}
	repo := cfg.PlatformRepository()
	require.Equal(t, "Chorizite", repo.Owner())
	require.Equal(t, "Chorizite", repo.Name())
}
