package release

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const ManifestFileName = "manifest.json"

//go:embed schema/manifest.schema.json
var manifestSchemaBytes []byte

var (
	manifestSchema     *jsonschema.Schema
	manifestSchemaOnce sync.Once
	manifestSchemaErr  error

	issuePrinter = message.NewPrinter(language.English)
)

// Manifest is the plugin manifest shipped inside a release package.
type Manifest struct {
	Version      string   `json:"version"`
	Name         string   `json:"name"`
	Author       string   `json:"author"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
	Environments []string `json:"environments"`
	Icon         string   `json:"icon,omitempty"`

	// directory holding manifest.json, icon paths are relative to it
	BaseDir string `json:"-"`
}

// IconPath returns the absolute path of the author supplied icon or "".
func (m *Manifest) IconPath() string {
	if m == nil || strings.TrimSpace(m.Icon) == "" {
		return ""
	}
	return filepath.Join(m.BaseDir, filepath.FromSlash(m.Icon))
}

func getManifestSchema() (*jsonschema.Schema, error) {
	manifestSchemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(manifestSchemaBytes))
		if err != nil {
			manifestSchemaErr = fmt.Errorf("failed to unmarshal manifest schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("manifest.schema.json", doc); err != nil {
			manifestSchemaErr = fmt.Errorf("failed to add manifest schema: %w", err)
			return
		}
		manifestSchema, manifestSchemaErr = c.Compile("manifest.schema.json")
	})
	return manifestSchema, manifestSchemaErr
}

// LoadManifest reads, validates and parses the manifest at path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &InvalidManifestError{Path: path, Err: err}
	}
	return parseManifest(path, data)
}

func parseManifest(path string, data []byte) (*Manifest, error) {
	schema, err := getManifestSchema()
	if err != nil {
		return nil, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, &InvalidManifestError{Path: path, Err: err}
	}
	if err := schema.Validate(inst); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, &InvalidManifestError{Path: path, Issues: validationIssues(ve), Err: err}
		}
		return nil, &InvalidManifestError{Path: path, Err: err}
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &InvalidManifestError{Path: path, Err: err}
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return nil, &InvalidManifestError{Path: path, Issues: []string{fmt.Sprintf("/version: %q is not a semantic version", m.Version)}, Err: err}
	}
	m.BaseDir = filepath.Dir(path)
	return &m, nil
}

func validationIssues(ve *jsonschema.ValidationError) []string {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		return []string{fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(issuePrinter))}
	}
	var issues []string
	for _, c := range ve.Causes {
		issues = append(issues, validationIssues(c)...)
	}
	return issues
}
