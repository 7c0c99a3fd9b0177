package builder

import (
	"bytes"
	"errors"
	"testing"

	"github.com/chorizite/plugin-index/internal/config"
	"github.com/chorizite/plugin-index/internal/mirror"
	"github.com/chorizite/plugin-index/internal/notify"
	"github.com/chorizite/plugin-index/internal/reconcile"
	"github.com/chorizite/plugin-index/internal/release"
	"github.com/stretchr/testify/require"
)

func TestNotifications(t *testing.T) {
	newStable := &release.Record{Version: "1.0.0", Name: "v1.0.0", Changelog: "stable notes", IsNew: true}
	oldStable := &release.Record{Version: "1.0.0", Name: "v1.0.0"}
	newBeta := &release.Record{Version: "1.1.0-beta.1", Name: "1.1.0-beta.1", Changelog: "beta notes", IsBeta: true, IsNew: true}
	modified := &release.Record{Version: "0.9.0", Name: "v0.9.0", HasAssetModifications: true}

	states := []*reconcile.State{
		{Repository: config.Repository{ID: "A", URL: "https://github.com/o/A"}, Releases: []*release.Record{newBeta, newStable}, LatestStable: newStable, LatestBeta: newBeta},
		nil,
		{Repository: config.Repository{ID: "B", URL: "https://github.com/o/B"}, Releases: []*release.Record{newBeta, oldStable, modified}, LatestStable: oldStable, LatestBeta: newBeta},
		{Repository: config.Repository{ID: "C", URL: "https://github.com/o/C"}, Releases: []*release.Record{oldStable}, LatestStable: oldStable},
	}
	got := Notifications(states)
	require.Equal(t, []notify.Notification{
		{Title: "A v1.0.0", Body: "stable notes", Color: notify.ColorGreen, URL: "https://github.com/o/A"},
		{Title: "[beta] B v1.1.0-beta.1", Body: "beta notes", Color: notify.ColorTeal, URL: "https://github.com/o/B"},
		{Title: "B", Body: "Changed v0.9.0 asset (0.9.0)", Color: notify.ColorRed, URL: "https://github.com/o/B"},
	}, got)
}

func TestWriteSummary(t *testing.T) {
	stable := &release.Record{Version: "1.0.0"}
	res := &Result{
		States: []*reconcile.State{
			{LatestStable: stable, Releases: []*release.Record{stable}, Fresh: 1, Publications: []reconcile.Publication{{Version: "1.0.0", Result: mirror.Published}}},
			nil,
		},
		Errors: []error{nil, errors.New("rate limited")},
	}
	var buf bytes.Buffer
	WriteSummary(&buf, repos, res)
	out := buf.String()
	require.Contains(t, out, "Lua")
	require.Contains(t, out, "1.0.0")
	require.Contains(t, out, "excluded: rate limited")
}
