package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

// Repository is one tracked plugin repository.
type Repository struct {
	ID  string
	URL string
}

func (r Repository) ownerName() (string, string) {
	p := strings.TrimPrefix(r.URL, "https://")
	p = strings.TrimPrefix(p, "http://")
	p = strings.TrimPrefix(p, "github.com/")
	p = strings.TrimSuffix(strings.TrimSuffix(p, "/"), ".git")
	owner, name, found := strings.Cut(p, "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", ""
	}
	return owner, name
}

func (r Repository) Owner() string {
	owner, _ := r.ownerName()
	return owner
}

func (r Repository) Name() string {
	_, name := r.ownerName()
	return name
}

// FullName returns "owner/name".
func (r Repository) FullName() string {
	owner, name := r.ownerName()
	return owner + "/" + name
}

type repositoriesFile struct {
	Repositories map[string]string `json:"repositories"`
}

// LoadRepositories reads a repositories file of the form
// {"repositories": {"<id>": "<github url>"}}. The result is sorted by id.
func LoadRepositories(path string) ([]Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRepositories(data)
}

func ParseRepositories(data []byte) ([]Repository, error) {
	var f repositoriesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode repositories file: %w", err)
	}
	if len(f.Repositories) == 0 {
		return nil, errors.New("no repositories defined")
	}
	ret := make([]Repository, 0, len(f.Repositories))
	var errs []error
	for id, url := range f.Repositories {
		r := Repository{ID: id, URL: url}
		if strings.TrimSpace(id) == "" || strings.ContainsAny(id, `/\`) {
			errs = append(errs, fmt.Errorf("invalid repository id %q", id))
			continue
		}
		if r.Owner() == "" {
			errs = append(errs, fmt.Errorf("invalid repository url for %s: %q", id, url))
			continue
		}
		ret = append(ret, r)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	slices.SortFunc(ret, func(a, b Repository) int {
		return strings.Compare(a.ID, b.ID)
	})
	return ret, nil
}
