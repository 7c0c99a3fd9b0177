package release

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/opencontainers/go-digest"
)

var (
	defaultRetryableClient     *retryablehttp.Client
	defaultRetryableClientInit sync.Once
)

func getDefaultRetryableClient() *retryablehttp.Client {
	defaultRetryableClientInit.Do(func() {
		defaultRetryableClient = retryablehttp.NewClient()
		defaultRetryableClient.Logger = nil
		defaultRetryableClient.HTTPClient.Timeout = 3 * time.Minute
	})
	return defaultRetryableClient
}

func downloadFile(ctx context.Context, client *retryablehttp.Client, url, dst string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		return &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}

	f, err := os.Create(dst)
	if err != nil {
		return &DownloadError{URL: url, Err: fmt.Errorf("failed to create file: %w", err)}
	}
	n, err := io.Copy(f, resp.Body)
	if cErr := f.Close(); err == nil {
		err = cErr
	}
	if err != nil {
		return &DownloadError{URL: url, Err: fmt.Errorf("failed to write file: %w", err)}
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return &DownloadError{URL: url, Err: fmt.Errorf("unexpected content length: %d (should be %d)", n, resp.ContentLength)}
	}
	return nil
}

// HashURL downloads url and returns the upper-case hex SHA-256 of the body.
func HashURL(ctx context.Context, url string) (string, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	resp, err := getDefaultRetryableClient().Do(req)
	if err != nil {
		return "", &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &DownloadError{URL: url, StatusCode: resp.StatusCode}
	}
	d, err := digest.Canonical.FromReader(resp.Body)
	if err != nil {
		return "", &HashError{Path: url, Err: err}
	}
	return strings.ToUpper(d.Encoded()), nil
}
