package catalog

import (
	"slices"
	"strings"
)

// DefaultEnvironments replaces environment lists that name nothing.
var DefaultEnvironments = []string{"Launcher", "Client"}

func isPlaceholder(s string) bool {
	return s == "" || strings.EqualFold(s, "None")
}

func clean(values []string) []string {
	var ret []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		if isPlaceholder(v) {
			continue
		}
		ret = append(ret, v)
	}
	return ret
}

// NormalizeDependencies drops blank and placeholder entries. An empty result
// is nil so the field is omitted from the output.
func NormalizeDependencies(deps []string) []string {
	return clean(deps)
}

// NormalizeEnvironments drops blank and placeholder entries and falls back
// to DefaultEnvironments when nothing is left.
func NormalizeEnvironments(envs []string) []string {
	ret := clean(envs)
	if len(ret) == 0 {
		return slices.Clone(DefaultEnvironments)
	}
	return ret
}
