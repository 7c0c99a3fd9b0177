package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chorizite/plugin-index/pkg/client"
	"github.com/chorizite/plugin-index/pkg/index"
)

// Published reads documents of a published catalog.
type Published interface {
	GetRaw(ctx context.Context, endpoint string) ([]byte, error)
	GetSchema(ctx context.Context, name string) ([]byte, error)
}

// VerifyReport lists the checked documents and the problems found.
type VerifyReport struct {
	Checked []string
	Errs    []error
}

func (r *VerifyReport) Err() error {
	return errors.Join(r.Errs...)
}

// Verify validates the index, every plugin details document and the platform
// releases of a published catalog against the schemas published with it.
func Verify(ctx context.Context, published Published) (*VerifyReport, error) {
	schemas := make(map[string][]byte)
	for _, name := range []string{index.IndexSchemaFile, index.PluginDetailsSchemaFile, index.PlatformReleasesSchemaFile} {
		data, err := published.GetSchema(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch schema %s: %w", name, err)
		}
		schemas[name] = data
	}
	v, err := NewValidator(schemas)
	if err != nil {
		return nil, err
	}

	report := &VerifyReport{}
	check := func(endpoint, schema string) ([]byte, bool) {
		data, err := published.GetRaw(ctx, endpoint)
		if err != nil {
			report.Errs = append(report.Errs, fmt.Errorf("failed to fetch %s: %w", endpoint, err))
			return nil, false
		}
		report.Checked = append(report.Checked, endpoint)
		if err := v.Validate(schema, endpoint, data); err != nil {
			report.Errs = append(report.Errs, err)
			return data, false
		}
		return data, true
	}

	data, ok := check(client.IndexPath, index.IndexSchemaFile)
	if !ok {
		return report, nil
	}
	var idx index.GlobalIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		report.Errs = append(report.Errs, fmt.Errorf("failed to decode %s: %w", client.IndexPath, err))
		return report, nil
	}
	for _, p := range idx.Plugins {
		check(client.PluginDetailsPath(p.ID), index.PluginDetailsSchemaFile)
	}
	if idx.Chorizite != nil {
		check(client.PlatformReleasesPath, index.PlatformReleasesSchemaFile)
	}
	return report, nil
}
