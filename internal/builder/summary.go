package builder

import (
	"fmt"
	"io"

	"github.com/chorizite/plugin-index/internal/config"
	"github.com/chorizite/plugin-index/internal/mirror"
	"github.com/jedib0t/go-pretty/v6/table"
)

// WriteSummary renders a table of the run to w.
func WriteSummary(w io.Writer, repos []config.Repository, res *Result) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Plugin", "Stable", "Beta", "Fresh", "Reused", "Failed", "Mirrored", "Status"})
	for i, repo := range repos {
		s := res.States[i]
		if s == nil {
			status := "excluded"
			if err := res.Errors[i]; err != nil {
				status = fmt.Sprintf("excluded: %v", err)
			}
			t.AppendRow(table.Row{repo.ID, "-", "-", "-", "-", "-", "-", status})
			continue
		}
		beta := "-"
		if s.LatestBeta != nil {
			beta = s.LatestBeta.Version
		}
		mirrored := 0
		for _, p := range s.Publications {
			if p.Err == nil && p.Result == mirror.Published {
				mirrored++
			}
		}
		t.AppendRow(table.Row{repo.ID, s.LatestStable.Version, beta, s.Fresh, s.Reused, s.Failed, mirrored, "included"})
	}
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	t.Render()
}
