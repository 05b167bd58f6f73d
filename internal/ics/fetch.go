package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	appLog "icalfilter/internal/log"
)

// UserAgent is sent with every HTTP fetch.
var UserAgent = "icalfilter/0.1"

const (
	defaultTimeout = 15 * time.Second
	// maxBodySize bounds how much of a source document is read.
	maxBodySize = 32 << 20
)

// FetchError is a failure to obtain the source document. Status is the
// HTTP status code when the server answered, 0 otherwise.
type FetchError struct {
	Source string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d", RedactURL(e.Source), e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", RedactURL(e.Source), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves source documents. HTTP and HTTPS URLs are fetched over
// the network; file:// URLs and plain paths are read from disk. There is no
// retry and nothing is cached between calls.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher whose HTTP requests are bounded by timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch returns the raw document at source.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &FetchError{Source: source, Err: errors.New("source is empty")}
	}

	u, err := url.Parse(source)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path; a one-letter scheme is a Windows drive letter.
		return f.readFile(source)
	}

	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, source)
	case "file":
		return f.readFile(u.Path)
	default:
		return nil, &FetchError{Source: source, Err: fmt.Errorf("unsupported scheme: %s", u.Scheme)}
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, source string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/calendar")

	appLog.Debug("ics fetch start", "url", RedactURL(source))
	started := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Source: source, Status: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &FetchError{Source: source, Err: err}
	}

	appLog.Debug("ics fetch success",
		"url", RedactURL(source),
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", time.Since(started),
	)
	return body, nil
}

func (f *Fetcher) readFile(path string) ([]byte, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, &FetchError{Source: path, Err: err}
	}
	return body, nil
}

// RedactURL hides the path and query of a source URL for logging, since
// subscription URLs often embed secrets.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func RedactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	i += 3

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + redactedSuffix
}
