package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/chorizite/plugin-index/pkg/client"
	"github.com/chorizite/plugin-index/pkg/index"
)

// File is one document of the output tree. Schema names the schema file the
// document is validated against, if any.
type File struct {
	Path   string
	Data   []byte
	Schema string
}

type Files []File

// Find returns the file at p or nil.
func (fs Files) Find(p string) *File {
	for i := range fs {
		if fs[i].Path == p {
			return &fs[i]
		}
	}
	return nil
}

func encodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Render encodes the catalog into its output tree. Plugin files come first
// and index.json last so uploads never expose an index that references
// missing files.
func (a *Assembler) Render(c *Catalog) (Files, error) {
	var files Files

	schemas, err := a.Schemas()
	if err != nil {
		return nil, err
	}
	for _, name := range []string{index.IndexSchemaFile, index.PluginDetailsSchemaFile, index.PlatformReleasesSchemaFile} {
		files = append(files, File{Path: client.SchemaPath(name), Data: schemas[name]})
	}

	for _, d := range c.Details {
		data, err := encodeJSON(d)
		if err != nil {
			return nil, fmt.Errorf("failed to encode details of %s: %w", d.ID, err)
		}
		files = append(files, File{Path: client.PluginDetailsPath(d.ID), Data: data, Schema: index.PluginDetailsSchemaFile})
		if icon, ok := c.Icons[d.ID]; ok {
			files = append(files, File{Path: client.PluginIconPath(d.ID), Data: icon})
		}
	}

	if c.Platform != nil {
		data, err := encodeJSON(c.Platform)
		if err != nil {
			return nil, fmt.Errorf("failed to encode platform releases: %w", err)
		}
		files = append(files, File{Path: client.PlatformReleasesPath, Data: data, Schema: index.PlatformReleasesSchemaFile})
	}

	page, err := RenderHTML(c.Index)
	if err != nil {
		return nil, err
	}
	files = append(files, File{Path: HTMLPath, Data: page})

	data, err := encodeJSON(c.Index)
	if err != nil {
		return nil, fmt.Errorf("failed to encode index: %w", err)
	}
	files = append(files, File{Path: client.IndexPath, Data: data, Schema: index.IndexSchemaFile})
	return files, nil
}
