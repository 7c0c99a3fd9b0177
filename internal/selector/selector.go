package selector

import (
	"github.com/Masterminds/semver/v3"
	"github.com/chorizite/plugin-index/internal/release"
)

// Selection holds the channel pointers of one repository. Both point into
// the records passed to Select.
type Selection struct {
	Stable *release.Record
	Beta   *release.Record
}

// Select picks the highest stable record and the highest beta record that is
// not numerically behind it. Beta is nil whenever Stable is nil. Records with
// unparseable versions are ignored; on equal versions the first one wins.
func Select(records []*release.Record) Selection {
	var (
		stable, beta       *release.Record
		stableVer, betaVer *semver.Version
	)
	for _, r := range records {
		v := r.SemVer()
		if v == nil {
			continue
		}
		if r.IsBeta {
			if betaVer == nil || v.GreaterThan(betaVer) {
				beta, betaVer = r, v
			}
			continue
		}
		if stableVer == nil || v.GreaterThan(stableVer) {
			stable, stableVer = r, v
		}
	}
	if stable == nil {
		return Selection{}
	}
	sel := Selection{Stable: stable}
	if beta != nil && NumericAtLeast(betaVer, stableVer) {
		sel.Beta = beta
	}
	return sel
}

// NumericAtLeast reports whether a's major.minor.patch is greater than or
// equal to b's, ignoring pre-release and build metadata.
func NumericAtLeast(a, b *semver.Version) bool {
	switch {
	case a.Major() != b.Major():
		return a.Major() > b.Major()
	case a.Minor() != b.Minor():
		return a.Minor() > b.Minor()
	default:
		return a.Patch() >= b.Patch()
	}
}

// Compare orders records by version, highest first. Unparseable versions
// sort last.
func Compare(a, b *release.Record) int {
	va, vb := a.SemVer(), b.SemVer()
	switch {
	case va == nil && vb == nil:
		return 0
	case va == nil:
		return 1
	case vb == nil:
		return -1
	}
	return vb.Compare(va)
}
