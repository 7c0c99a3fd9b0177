package catalog

import (
	"strings"
	"testing"

	"github.com/chorizite/plugin-index/pkg/index"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML(t *testing.T) {
	idx := &index.GlobalIndex{
		Chorizite: &index.PlatformInfo{Latest: &index.Release{Version: "0.9.1", DownloadURL: "https://example.com/Installer.exe"}},
		Plugins: []*index.PluginListing{
			{ID: "b", Name: "beta tools", Latest: &index.Release{Version: "1.0.0"}},
			{ID: "x", Name: "Xyz", IsOfficial: true, Latest: &index.Release{Version: "2.0.0"}},
			{ID: "a", Name: "Alpha <script>", Latest: &index.Release{Version: "1.0.0"}, Dependencies: []string{"Lua", "RmlUi"}},
			{ID: "l", Name: "Lua", IsOfficial: true, Latest: &index.Release{Version: "3.0.0"}, LatestBeta: &index.Release{Version: "3.1.0-beta"}},
		},
	}
	data, err := RenderHTML(idx)
	require.NoError(t, err)
	page := string(data)

	order := []string{`id="l"`, `id="x"`, `id="a"`, `id="b"`}
	last := -1
	for _, marker := range order {
		i := strings.Index(page, marker)
		require.Greater(t, i, last, marker)
		last = i
	}
	require.True(t, strings.Index(page, "Official Plugins") < strings.Index(page, `id="l"`))
	require.True(t, strings.Index(page, "Community Plugins") < strings.Index(page, `id="a"`))

	require.Contains(t, page, "0.9.1")
	require.Contains(t, page, "Lua, RmlUi")
	require.Contains(t, page, "3.1.0-beta")
	require.NotContains(t, page, "<script>")
}

func TestRenderHTMLWithoutPlatform(t *testing.T) {
	data, err := RenderHTML(&index.GlobalIndex{})
	require.NoError(t, err)
	require.NotContains(t, string(data), "Latest Chorizite Release")
}
