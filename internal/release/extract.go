package release

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

func extractZip(archivePath, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return &ExtractError{Path: archivePath, Err: err}
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return &ExtractError{Path: archivePath, Err: err}
	}
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return &ExtractError{Path: archivePath, Err: err}
	}
	defer zr.Close()

	root := filepath.Clean(dst) + string(os.PathSeparator)
	for _, f := range zr.File {
		target := filepath.Join(dst, f.Name)
		if !strings.HasPrefix(target+string(os.PathSeparator), root) {
			return &ExtractError{Path: archivePath, Err: fmt.Errorf("entry %q escapes the extraction directory", f.Name)}
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return &ExtractError{Path: archivePath, Err: err}
			}
			continue
		}
		if err := extractFile(f, target); err != nil {
			return &ExtractError{Path: archivePath, Err: fmt.Errorf("%s: %w", f.Name, err)}
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// findManifest returns the manifest closest to root; ties are broken by path.
func findManifest(root string) (string, error) {
	best := ""
	bestDepth := -1
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(d.Name(), ManifestFileName) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		depth := strings.Count(filepath.ToSlash(rel), "/")
		if bestDepth < 0 || depth < bestDepth || (depth == bestDepth && path < best) {
			best, bestDepth = path, depth
		}
		return nil
	})
	if err != nil {
		return "", &ExtractError{Path: root, Err: err}
	}
	if best == "" {
		return "", &MissingManifestError{Dir: root}
	}
	return best, nil
}
