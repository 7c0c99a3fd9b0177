package release

import (
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
)

// SHA256File returns the upper-case hex SHA-256 of the file at path.
func SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &HashError{Path: path, Err: err}
	}
	defer f.Close()
	d, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", &HashError{Path: path, Err: err}
	}
	return strings.ToUpper(d.Encoded()), nil
}
