package release

import (
	"fmt"
	"strings"
)

type NoAssetError struct {
	Tag    string
	Assets []string
}

func (e *NoAssetError) Error() string {
	return fmt.Sprintf("no zip found for release %s (%s)", e.Tag, strings.Join(e.Assets, ", "))
}

type DownloadError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *DownloadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to download %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("failed to download %s: unexpected status code: %d", e.URL, e.StatusCode)
}

func (e *DownloadError) Unwrap() error { return e.Err }

type ExtractError struct {
	Path string
	Err  error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("failed to extract %s: %v", e.Path, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

type MissingManifestError struct {
	Dir string
}

func (e *MissingManifestError) Error() string {
	return fmt.Sprintf("no %s found in %s", ManifestFileName, e.Dir)
}

type InvalidManifestError struct {
	Path   string
	Issues []string
	Err    error
}

func (e *InvalidManifestError) Error() string {
	if len(e.Issues) > 0 {
		return fmt.Sprintf("invalid manifest %s: %s", e.Path, strings.Join(e.Issues, "; "))
	}
	return fmt.Sprintf("invalid manifest %s: %v", e.Path, e.Err)
}

func (e *InvalidManifestError) Unwrap() error { return e.Err }

type HashError struct {
	Path string
	Err  error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("failed to hash %s: %v", e.Path, e.Err)
}

func (e *HashError) Unwrap() error { return e.Err }

type InvalidIconError struct {
	Icon string
}

func (e *InvalidIconError) Error() string {
	return fmt.Sprintf("icon %q escapes the package", e.Icon)
}
