package content

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/GriffinCanCode/AgentOS/exthost/internal/infrastructure/resilience"
)

// ErrEntryMissing is returned when the server answers a fetch with a 4xx
// status other than 429. It concerns one package and never trips the breaker.
var ErrEntryMissing = errors.New("entry source not available")

// HTTPFetcher reads entry sources from a remote content server
type HTTPFetcher struct {
	base    *url.URL
	client  *resty.Client
	breaker *resilience.Breaker
}

// NewHTTPFetcher creates a fetcher for baseURL
func NewHTTPFetcher(baseURL string, timeout time.Duration) (*HTTPFetcher, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse content base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("content base url %q must be http(s)", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("User-Agent", "exthost-content/1.0")

	breaker := resilience.New("content-remote", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrEntryMissing) || errors.Is(err, context.Canceled)
		},
	})

	return &HTTPFetcher{base: base, client: client, breaker: breaker}, nil
}

// Breaker exposes the circuit breaker guarding remote fetches
func (f *HTTPFetcher) Breaker() *resilience.Breaker {
	return f.breaker
}

// FetchEntrySource GETs <base>/<base name of localPath>/<main>
func (f *HTTPFetcher) FetchEntrySource(ctx context.Context, localPath, main string) (string, error) {
	target, err := f.resolve(localPath, main)
	if err != nil {
		return "", err
	}

	return resilience.Call(ctx, f.breaker, func(ctx context.Context) (string, error) {
		resp, err := f.client.R().SetContext(ctx).Get(target)
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", target, err)
		}
		switch code := resp.StatusCode(); {
		case code >= 400 && code < 500 && code != http.StatusTooManyRequests:
			return "", fmt.Errorf("fetch %s: status %d: %w", target, code, ErrEntryMissing)
		case !resp.IsSuccess():
			return "", fmt.Errorf("fetch %s: status %d", target, code)
		}
		return Normalize(resp.Body()), nil
	})
}

func (f *HTTPFetcher) resolve(localPath, main string) (string, error) {
	dir := filepath.Base(filepath.Clean(localPath))
	if dir == "." || dir == string(filepath.Separator) {
		return "", fmt.Errorf("invalid extension path %q", localPath)
	}
	entry := path.Clean("/" + filepath.ToSlash(main))
	if strings.Contains(main, "..") {
		return "", fmt.Errorf("entry %q escapes extension", main)
	}

	u := *f.base
	u.Path = path.Join(u.Path, dir, entry)
	return u.String(), nil
}
