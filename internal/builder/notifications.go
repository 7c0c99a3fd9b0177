package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/chorizite/plugin-index/internal/notify"
	"github.com/chorizite/plugin-index/internal/reconcile"
)

// Notifications returns the messages announcing the changes of a run: a new
// latest stable release, otherwise a new latest beta, and changed assets of
// releases that were published before.
func Notifications(states []*reconcile.State) []notify.Notification {
	var ret []notify.Notification
	for _, s := range states {
		if s == nil {
			continue
		}
		id := s.Repository.ID
		switch {
		case s.LatestStable != nil && s.LatestStable.IsNew:
			ret = append(ret, notify.Notification{
				Title: fmt.Sprintf("%s %s", id, s.LatestStable.Name),
				Body:  s.LatestStable.Changelog,
				Color: notify.ColorGreen,
				URL:   s.Repository.URL,
			})
		case s.LatestBeta != nil && s.LatestBeta.IsNew:
			ret = append(ret, notify.Notification{
				Title: fmt.Sprintf("[beta] %s v%s", id, s.LatestBeta.Name),
				Body:  s.LatestBeta.Changelog,
				Color: notify.ColorTeal,
				URL:   s.Repository.URL,
			})
		}

		modified := s.ModifiedReleases()
		if len(modified) == 0 {
			continue
		}
		lines := make([]string, 0, len(modified))
		for _, r := range modified {
			lines = append(lines, fmt.Sprintf("Changed %s asset (%s)", r.Name, r.Version))
		}
		ret = append(ret, notify.Notification{
			Title: id,
			Body:  strings.Join(lines, "\n"),
			Color: notify.ColorRed,
			URL:   s.Repository.URL,
		})
	}
	return ret
}

func (b *Builder) notify(ctx context.Context, states []*reconcile.State) {
	if b.notifier == nil {
		return
	}
	for _, n := range Notifications(states) {
		if err := b.notifier.Notify(ctx, n); err != nil {
			b.log.Warnf("failed to send notification %q: %v", n.Title, err)
		}
	}
}
