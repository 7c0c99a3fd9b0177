package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"slices"
	"strings"
	"sync"

	"github.com/chorizite/plugin-index/pkg/index"
)

const HTMLPath = "index.html"

//go:embed templates/index.html.tmpl
var htmlTemplate string

var (
	pageTemplate     *template.Template
	pageTemplateErr  error
	pageTemplateInit sync.Once
)

func getPageTemplate() (*template.Template, error) {
	pageTemplateInit.Do(func() {
		pageTemplate, pageTemplateErr = template.New("index").Funcs(template.FuncMap{
			"join": strings.Join,
		}).Parse(htmlTemplate)
	})
	return pageTemplate, pageTemplateErr
}

type page struct {
	Chorizite *index.PlatformInfo
	Official  []*index.PluginListing
	Community []*index.PluginListing
}

func byName(x, y *index.PluginListing) int {
	if c := strings.Compare(strings.ToLower(x.Name), strings.ToLower(y.Name)); c != 0 {
		return c
	}
	return strings.Compare(x.ID, y.ID)
}

// RenderHTML renders the human readable listing of idx. Official plugins are
// listed before community plugins, each group ordered by name.
func RenderHTML(idx *index.GlobalIndex) ([]byte, error) {
	t, err := getPageTemplate()
	if err != nil {
		return nil, fmt.Errorf("failed to parse page template: %w", err)
	}
	p := page{Chorizite: idx.Chorizite}
	for _, l := range idx.Plugins {
		if l.IsOfficial {
			p.Official = append(p.Official, l)
		} else {
			p.Community = append(p.Community, l)
		}
	}
	slices.SortFunc(p.Official, byName)
	slices.SortFunc(p.Community, byName)

	var buf bytes.Buffer
	if err := t.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("failed to render page: %w", err)
	}
	return buf.Bytes(), nil
}
