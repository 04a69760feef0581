package packaging

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// IsURL reports whether source names a remote package
func IsURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Downloader fetches remote packages with retries
type Downloader struct {
	client   *retryablehttp.Client
	maxBytes int64
}

// NewDownloader creates a downloader that refuses bodies over maxBytes
func NewDownloader(maxBytes int64) *Downloader {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.RetryWaitMin = 500 * time.Millisecond
	client.RetryWaitMax = 5 * time.Second
	client.Logger = nil
	client.HTTPClient.Timeout = 2 * time.Minute
	return &Downloader{client: client, maxBytes: maxBytes}
}

// Fetch downloads rawURL into dir and returns the local file path
func (d *Downloader) Fetch(ctx context.Context, rawURL, dir string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", rawURL, err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download %s: %w", u.Redacted(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("download %s: status %d", u.Redacted(), resp.StatusCode)
	}
	if resp.ContentLength > d.maxBytes {
		return "", fmt.Errorf("download %s: %w", u.Redacted(), ErrTooLarge)
	}

	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "package"
	}
	target := filepath.Join(dir, "download-"+filepath.Base(name))
	if err := writeFile(target, resp.Body, d.maxBytes); err != nil {
		return "", fmt.Errorf("download %s: %w", u.Redacted(), err)
	}
	return target, nil
}

// SetRetry changes the retry policy
func (d *Downloader) SetRetry(max int, minWait, maxWait time.Duration) {
	d.client.RetryMax = max
	d.client.RetryWaitMin = minWait
	d.client.RetryWaitMax = maxWait
}
