package mirror

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/content/memory"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"
)

const (
	ArtifactType   = "application/vnd.chorizite.plugin.v1"
	LayerMediaType = "application/vnd.chorizite.plugin.layer.v1+zip"
)

type Result int

const (
	Published Result = iota + 1
	AlreadyExists
)

func (r Result) String() string {
	switch r {
	case Published:
		return "published"
	case AlreadyExists:
		return "already-exists"
	}
	return "unknown"
}

type PublishError struct {
	PackageID string
	Version   string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish %s@%s: %v", e.PackageID, e.Version, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// TargetFunc opens the repository for ref, e.g. "ghcr.io/chorizite/plugins/lua".
type TargetFunc func(ref string) (oras.Target, error)

// OCIPublisher pushes plugin packages as OCI artifacts to
// <registry>/<lower(packageID)>:<version>.
type OCIPublisher struct {
	registry string
	timeout  time.Duration
	target   TargetFunc
}

type Option func(p *OCIPublisher)

func WithTimeout(d time.Duration) Option {
	return func(p *OCIPublisher) {
		p.timeout = d
	}
}

func WithTargetFunc(fn TargetFunc) Option {
	return func(p *OCIPublisher) {
		p.target = fn
	}
}

// WithCredentials authenticates against the registry host with a static
// username and password.
func WithCredentials(username, password string) Option {
	return func(p *OCIPublisher) {
		host, _, _ := strings.Cut(p.registry, "/")
		client := &auth.Client{
			Client: retry.DefaultClient,
			Header: http.Header{
				"User-Agent": []string{"chorizite-plugin-index"},
			},
			Cache: auth.NewCache(),
			Credential: auth.StaticCredential(host, auth.Credential{
				Username: username,
				Password: password,
			}),
		}
		p.target = remoteTarget(client)
	}
}

func remoteTarget(client remote.Client) TargetFunc {
	return func(ref string) (oras.Target, error) {
		repo, err := remote.NewRepository(ref)
		if err != nil {
			return nil, err
		}
		if client != nil {
			repo.Client = client
		}
		return repo, nil
	}
}

func NewOCIPublisher(registry string, opts ...Option) *OCIPublisher {
	p := &OCIPublisher{
		registry: strings.TrimSuffix(registry, "/"),
		timeout:  5 * time.Minute,
		target:   remoteTarget(nil),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Reference returns the repository reference of packageID.
func (p *OCIPublisher) Reference(packageID string) string {
	return p.registry + "/" + strings.ToLower(packageID)
}

// Tag maps a semantic version to a valid OCI tag.
func Tag(version string) string {
	return strings.ReplaceAll(version, "+", "_")
}

// Publish uploads the package at path unless the version is already present.
func (p *OCIPublisher) Publish(ctx context.Context, packageID, version, path string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	pubErr := func(err error) error {
		return &PublishError{PackageID: packageID, Version: version, Err: err}
	}

	target, err := p.target(p.Reference(packageID))
	if err != nil {
		return 0, pubErr(err)
	}
	tag := Tag(version)
	if _, err := target.Resolve(ctx, tag); err == nil {
		return AlreadyExists, nil
	} else if !errors.Is(err, errdef.ErrNotFound) {
		return 0, pubErr(fmt.Errorf("failed to resolve %s: %w", tag, err))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, pubErr(err)
	}
	store := memory.New()
	layer := content.NewDescriptorFromBytes(LayerMediaType, data)
	layer.Annotations = map[string]string{
		ocispec.AnnotationTitle: filepath.Base(path),
	}
	if err := store.Push(ctx, layer, bytes.NewReader(data)); err != nil {
		return 0, pubErr(err)
	}
	manifest, err := oras.PackManifest(ctx, store, oras.PackManifestVersion1_1, ArtifactType, oras.PackManifestOptions{
		Layers: []ocispec.Descriptor{layer},
		ManifestAnnotations: map[string]string{
			ocispec.AnnotationTitle:   packageID,
			ocispec.AnnotationVersion: version,
		},
	})
	if err != nil {
		return 0, pubErr(fmt.Errorf("failed to pack manifest: %w", err))
	}
	if err := store.Tag(ctx, manifest, tag); err != nil {
		return 0, pubErr(err)
	}
	if _, err := oras.Copy(ctx, store, tag, target, tag, oras.DefaultCopyOptions); err != nil {
		return 0, pubErr(fmt.Errorf("failed to push %s:%s: %w", p.Reference(packageID), tag, err))
	}
	return Published, nil
}
