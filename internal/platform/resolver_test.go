package platform

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/chorizite/plugin-index/internal/release"
	"github.com/chorizite/plugin-index/pkg/index"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeLister struct {
	releases []*release.RawRelease
	err      error
}

func (f *fakeLister) ListReleases(context.Context, string, string) ([]*release.RawRelease, error) {
	return f.releases, f.err
}

type countingHash struct {
	mu   sync.Mutex
	urls []string
}

func (c *countingHash) hash(_ context.Context, url string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.urls = append(c.urls, url)
	if url == "broken" {
		return "", errors.New("boom")
	}
	return "HASH:" + url, nil
}

var assetTime = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func platformRelease(tag string, prerelease bool, assets ...string) *release.RawRelease {
	raw := &release.RawRelease{Tag: tag, Prerelease: prerelease}
	for _, a := range assets {
		raw.Assets = append(raw.Assets, &release.Asset{Name: a, URL: a, DownloadCount: 10, CreatedAt: assetTime, UpdatedAt: assetTime})
	}
	return raw
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestResolve(t *testing.T) {
	lister := &fakeLister{releases: []*release.RawRelease{
		platformRelease("release/v2.1.0-beta.1", true, "ChoriziteInstaller-2.1.0-beta.1.exe"),
		platformRelease("release/v2.0.0", false, "Source code (zip)", "ChoriziteInstaller-2.0.0.exe"),
		platformRelease("release/v1.9.0", false, "ChoriziteInstaller-1.9.0.exe"),
		platformRelease("release/v1.8.0", false, "notes.txt"),
		platformRelease("nightly", false, "ChoriziteInstaller-nightly.exe"),
	}}
	h := &countingHash{}
	prior := &index.PlatformReleases{Releases: []*index.ReleaseDetails{
		{Version: "1.9.0", SHA256: "PRIOR", Updated: assetTime},
	}}

	info, err := NewResolver(testLogger(), lister, "Chorizite", "Chorizite", "Installer", WithHashFunc(h.hash)).Resolve(context.Background(), prior)
	require.NoError(t, err)
	require.Len(t, info.Releases, 3)
	require.Equal(t, "2.0.0", info.Latest.Version)
	require.Equal(t, "HASH:ChoriziteInstaller-2.0.0.exe", info.Latest.SHA256)
	require.NotNil(t, info.LatestBeta)
	require.Equal(t, "2.1.0-beta.1", info.LatestBeta.Version)
	require.Equal(t, 30, info.TotalDownloads)

	require.Equal(t, "PRIOR", info.Releases[2].SHA256)
	require.False(t, info.Releases[2].IsNew)
	require.ElementsMatch(t, []string{"ChoriziteInstaller-2.1.0-beta.1.exe", "ChoriziteInstaller-2.0.0.exe"}, h.urls)
}

func TestResolveSkipsUnhashable(t *testing.T) {
	broken := platformRelease("v2.0.0", false, "Installer")
	broken.Assets[0].URL = "broken"
	lister := &fakeLister{releases: []*release.RawRelease{broken, platformRelease("v1.0.0", false, "Installer.exe")}}
	h := &countingHash{}
	info, err := NewResolver(testLogger(), lister, "o", "r", "Installer", WithHashFunc(h.hash)).Resolve(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, "1.0.0", info.Latest.Version)
}

func TestResolveNoRelease(t *testing.T) {
	lister := &fakeLister{releases: []*release.RawRelease{platformRelease("v1.0.0-beta", true, "Installer.exe")}}
	_, err := NewResolver(testLogger(), lister, "o", "r", "Installer", WithHashFunc((&countingHash{}).hash)).Resolve(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoRelease)

	_, err = NewResolver(testLogger(), &fakeLister{err: errors.New("down")}, "o", "r", "Installer").Resolve(context.Background(), nil)
	require.Error(t, err)
}
