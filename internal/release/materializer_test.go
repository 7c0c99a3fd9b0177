package release

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func getTestServer(t *testing.T, payload []byte, failingRequests int) (*httptest.Server, *atomic.Int32) {
	var cnt atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if int(cnt.Add(1)) <= failingRequests {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, err := w.Write(payload)
		require.NoError(t, err)
	}))
	t.Cleanup(ts.Close)
	return ts, &cnt
}

func upperSHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

var assetTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testRelease(url string) *RawRelease {
	return &RawRelease{
		Tag:  "plugins/lua/v1.1.0-beta",
		Body: "changelog",
		Assets: []*Asset{
			{Name: "Source code (zip)", URL: url + "/source.zip"},
			{Name: "Lua.zip", URL: url + "/Lua.zip", DownloadCount: 7, CreatedAt: assetTime, UpdatedAt: assetTime},
		},
	}
}

func TestMaterializeFresh(t *testing.T) {
	archive := buildZip(t, map[string]string{
		"Lua/manifest.json": `{"name":"Lua","version":"1.1.0-beta","author":"Chorizite","icon":"icon.png","environments":["Client"]}`,
		"Lua/icon.png":      "png",
	})
	ts, _ := getTestServer(t, archive, 0)
	dir := t.TempDir()

	out, err := NewMaterializer().Materialize(context.Background(), dir, testRelease(ts.URL), nil)
	require.NoError(t, err)
	fresh, ok := out.(*Fresh)
	require.True(t, ok)

	rec := fresh.Record()
	require.Equal(t, "1.1.0-beta", rec.Version)
	require.Equal(t, "Lua.zip", rec.Name)
	require.Equal(t, "changelog", rec.Changelog)
	require.Equal(t, ts.URL+"/Lua.zip", rec.DownloadURL)
	require.Equal(t, upperSHA256(archive), rec.SHA256)
	require.Equal(t, 7, rec.DownloadCount)
	require.True(t, rec.IsBeta)
	require.True(t, rec.IsNew)
	require.Equal(t, []string{"Client"}, rec.Environments)

	require.Equal(t, filepath.Join(dir, "v1.1.0-beta.zip"), fresh.ArchivePath)
	require.Equal(t, filepath.Join(dir, "v1.1.0-beta", "Lua"), fresh.ManifestDir)
	require.Equal(t, filepath.Join(dir, "v1.1.0-beta"), fresh.ExtractDir)
	iconPath, err := fresh.IconPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(fresh.ManifestDir, "icon.png"), iconPath)
	require.FileExists(t, iconPath)
}

func TestMaterializeFreshRetry(t *testing.T) {
	archive := buildZip(t, map[string]string{"manifest.json": `{"name":"Lua","version":"1.0.0"}`})
	ts, cnt := getTestServer(t, archive, 1)

	out, err := NewMaterializer().Materialize(context.Background(), t.TempDir(), testRelease(ts.URL), nil)
	require.NoError(t, err)
	require.Equal(t, int32(2), cnt.Load())
	require.IsType(t, &Fresh{}, out)
}

func TestMaterializeBetaFromPrereleaseFlag(t *testing.T) {
	archive := buildZip(t, map[string]string{"manifest.json": `{"name":"Lua","version":"1.0.0"}`})
	ts, _ := getTestServer(t, archive, 0)
	raw := testRelease(ts.URL)
	raw.Prerelease = true

	out, err := NewMaterializer().Materialize(context.Background(), t.TempDir(), raw, nil)
	require.NoError(t, err)
	require.True(t, out.Record().IsBeta)
}

func TestMaterializeReused(t *testing.T) {
	ts, cnt := getTestServer(t, nil, 0)
	prior := &Record{
		Version:      "1.1.0-beta",
		Name:         "Lua.zip",
		SHA256:       "ABCD",
		UpdatedAt:    assetTime,
		Dependencies: []string{"RmlUi"},
		IsBeta:       true,
	}
	raw := testRelease(ts.URL)
	raw.Assets[1].DownloadCount = 42

	out, err := NewMaterializer().Materialize(context.Background(), t.TempDir(), raw, prior)
	require.NoError(t, err)
	reused, ok := out.(*Reused)
	require.True(t, ok)
	require.Equal(t, int32(0), cnt.Load())

	rec := reused.Record()
	require.Equal(t, "ABCD", rec.SHA256)
	require.Equal(t, 42, rec.DownloadCount)
	require.False(t, rec.IsNew)
	require.False(t, rec.HasAssetModifications)
	require.True(t, rec.IsBeta)

	// prior must not be aliased
	rec.Dependencies[0] = "changed"
	require.Equal(t, "RmlUi", prior.Dependencies[0])
}

func TestMaterializeReusedAssetModified(t *testing.T) {
	archive := buildZip(t, map[string]string{"Lua/manifest.json": `{"name":"Lua","version":"1.1.0-beta"}`})

	t.Run("downloaded again", func(t *testing.T) {
		ts, cnt := getTestServer(t, archive, 0)
		prior := &Record{Version: "1.1.0-beta", SHA256: "OLD", UpdatedAt: assetTime.Add(-time.Hour)}
		out, err := NewMaterializer().Materialize(context.Background(), t.TempDir(), testRelease(ts.URL), prior)
		require.NoError(t, err)
		require.Equal(t, int32(1), cnt.Load())
		fresh, ok := out.(*Fresh)
		require.True(t, ok)
		rec := fresh.Record()
		require.False(t, rec.IsNew)
		require.True(t, rec.HasAssetModifications)
		require.Equal(t, upperSHA256(archive), rec.SHA256)
		require.Equal(t, assetTime, rec.UpdatedAt)
	})

	t.Run("download fails", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()
		prior := &Record{Version: "1.1.0-beta", SHA256: "OLD", UpdatedAt: assetTime.Add(-time.Hour)}
		out, err := NewMaterializer().Materialize(context.Background(), t.TempDir(), testRelease(ts.URL), prior)
		require.NoError(t, err)
		require.IsType(t, &Reused{}, out)
		require.True(t, out.Record().HasAssetModifications)
		require.Equal(t, "OLD", out.Record().SHA256)
	})

	t.Run("asset removed", func(t *testing.T) {
		prior := &Record{Version: "1.1.0-beta", SHA256: "OLD", UpdatedAt: assetTime}
		raw := &RawRelease{Tag: "v1.1.0-beta"}
		out, err := NewMaterializer().Materialize(context.Background(), t.TempDir(), raw, prior)
		require.NoError(t, err)
		require.IsType(t, &Reused{}, out)
		require.True(t, out.Record().HasAssetModifications)
	})
}

func TestFreshIconPath(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "Lua")
	fresh := func(icon string) *Fresh {
		return &Fresh{ExtractDir: root, Manifest: &Manifest{Icon: icon, BaseDir: base}}
	}

	p, err := fresh("").IconPath()
	require.NoError(t, err)
	require.Empty(t, p)

	p, err = fresh("assets/icon.png").IconPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(base, "assets", "icon.png"), p)

	p, err = fresh("../shared/icon.png").IconPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "shared", "icon.png"), p)

	for _, icon := range []string{"../../icon.png", "../../../../../../../../etc/passwd"} {
		_, err = fresh(icon).IconPath()
		var invalid *InvalidIconError
		require.ErrorAs(t, err, &invalid, icon)
		require.Equal(t, icon, invalid.Icon)
	}
}

func TestMaterializeErrors(t *testing.T) {
	t.Run("no asset", func(t *testing.T) {
		raw := &RawRelease{Tag: "v1.0.0", Assets: []*Asset{{Name: "Source code (zip)"}, {Name: "notes.txt"}}}
		_, err := NewMaterializer().Materialize(context.Background(), t.TempDir(), raw, nil)
		var noAsset *NoAssetError
		require.ErrorAs(t, err, &noAsset)
		require.Equal(t, []string{"Source code (zip)", "notes.txt"}, noAsset.Assets)
	})

	t.Run("download not found", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()
		_, err := NewMaterializer().Materialize(context.Background(), t.TempDir(), testRelease(ts.URL), nil)
		var dlErr *DownloadError
		require.ErrorAs(t, err, &dlErr)
		require.Equal(t, http.StatusNotFound, dlErr.StatusCode)
	})

	cases := []struct {
		name    string
		payload []byte
		target  any
	}{
		{"corrupt archive", []byte("not a zip"), new(*ExtractError)},
		{"missing manifest", buildZip(t, map[string]string{"readme.md": "hi"}), new(*MissingManifestError)},
		{"missing name", buildZip(t, map[string]string{"manifest.json": `{"version":"1.0.0"}`}), new(*InvalidManifestError)},
		{"invalid version", buildZip(t, map[string]string{"manifest.json": `{"name":"Lua","version":"latest"}`}), new(*InvalidManifestError)},
		{"malformed json", buildZip(t, map[string]string{"manifest.json": `{"name":`}), new(*InvalidManifestError)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts, _ := getTestServer(t, tc.payload, 0)
			_, err := NewMaterializer().Materialize(context.Background(), t.TempDir(), testRelease(ts.URL), nil)
			require.Error(t, err)
			require.ErrorAs(t, err, tc.target)
		})
	}
}

func TestInvalidManifestIssues(t *testing.T) {
	_, err := parseManifest("manifest.json", []byte(`{"version":"1.0.0","dependencies":"Lua"}`))
	var invalid *InvalidManifestError
	require.ErrorAs(t, err, &invalid)
	require.NotEmpty(t, invalid.Issues)
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "evil.zip")
	require.NoError(t, os.WriteFile(archivePath, buildZip(t, map[string]string{"../escape.txt": "x"}), 0o644))

	err := extractZip(archivePath, filepath.Join(dir, "out"))
	var extractErr *ExtractError
	require.ErrorAs(t, err, &extractErr)
	require.NoFileExists(t, filepath.Join(dir, "escape.txt"))
}

func TestFindManifestPrefersShallowest(t *testing.T) {
	root := t.TempDir()
	for _, p := range []string{"b/deep/manifest.json", "b/manifest.json", "a/manifest.json"} {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("{}"), 0o644))
	}
	found, err := findManifest(root)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "a", "manifest.json"), found)
}

func TestTagVersion(t *testing.T) {
	require.Equal(t, "1.2.0", (&RawRelease{Tag: "plugins/lua/v1.2.0"}).TagVersion())
	require.Equal(t, "1.2.0", (&RawRelease{Tag: "1.2.0"}).TagVersion())
}

func TestSameVersion(t *testing.T) {
	require.True(t, SameVersion("1.0.0", "v1.0.0"))
	require.True(t, SameVersion("1.0", "1.0.0"))
	require.False(t, SameVersion("1.0.0", "1.0.0-beta"))
	require.False(t, SameVersion("1.0.0", "1.0.1"))
}

func TestWorkName(t *testing.T) {
	require.Equal(t, "v1.0.0", WorkName("v1.0.0"))
	require.Equal(t, "release", WorkName(".."))
	require.Equal(t, "a_b", WorkName(`a\b`))
}
