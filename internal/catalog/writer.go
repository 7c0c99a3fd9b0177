package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Commit writes files into a staging directory next to out and swaps it into
// place. The previous tree is kept until the swap has succeeded, so a failed
// commit leaves out untouched.
func Commit(out string, files Files) error {
	out = filepath.Clean(out)
	staging := out + ".staging"
	old := out + ".old"

	if err := os.RemoveAll(staging); err != nil {
		return fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := writeTree(staging, files); err != nil {
		_ = os.RemoveAll(staging)
		return err
	}

	if err := os.RemoveAll(old); err != nil {
		return fmt.Errorf("failed to clear previous output: %w", err)
	}
	hadPrevious := true
	if err := os.Rename(out, old); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			_ = os.RemoveAll(staging)
			return fmt.Errorf("failed to move previous output aside: %w", err)
		}
		hadPrevious = false
	}
	if err := os.Rename(staging, out); err != nil {
		if hadPrevious {
			_ = os.Rename(old, out)
		}
		_ = os.RemoveAll(staging)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	if hadPrevious {
		_ = os.RemoveAll(old)
	}
	return nil
}

func writeTree(root string, files Files) error {
	for _, f := range files {
		p := filepath.Join(root, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(p, f.Data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}
	return nil
}
