// Package nemweb talks to the nemweb.com.au archive server: listing a
// feed's directory index and fetching raw archives. It is the only
// package that performs network I/O. Fetch failures are fatal to the
// run; callers get a wrapped ErrFetchFailed and no retry is attempted.
package nemweb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/time/rate"
)

// ErrFetchFailed marks an unrecoverable failure to obtain raw archive
// bytes from the server.
var ErrFetchFailed = errors.New("archive fetch failed")

// Client fetches directory listings and archives from the archive
// server. Requests are paced by a rate limiter; pacing never turns
// into retrying.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a client rooted at baseURL (the REPORTS/ARCHIVE/
// directory, trailing slash included).
func NewClient(baseURL string, timeout time.Duration, fetchRate float64, logger *slog.Logger) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(fetchRate), 1),
		logger:  logger.With(slog.String("component", "nemweb")),
	}
}

// BaseURL returns the archive root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListArchives scrapes the directory index below the archive root for
// one feed subdirectory and returns the absolute URLs of every entry
// whose name ends in ".zip". Order follows the page; callers sort.
func (c *Client) ListArchives(ctx context.Context, subdir string) ([]string, error) {
	dirURL := c.baseURL + subdir

	body, err := c.get(ctx, dirURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	links, err := parseIndexLinks(body, dirURL)
	if err != nil {
		return nil, fmt.Errorf("parse directory index %s: %w", dirURL, err)
	}

	c.logger.InfoContext(ctx, "listed archive directory",
		slog.String("url", dirURL),
		slog.Int("entries", len(links)))
	return links, nil
}

// FetchArchive downloads one raw archive and returns its bytes.
func (c *Client) FetchArchive(ctx context.Context, archiveURL string) ([]byte, error) {
	body, err := c.get(ctx, archiveURL)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrFetchFailed, archiveURL, err)
	}

	c.logger.InfoContext(ctx, "downloaded archive",
		slog.String("url", archiveURL),
		slog.Int("bytes", len(data)))
	return data, nil
}

// get performs one paced GET and returns the response body on 200.
func (c *Client) get(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrFetchFailed, rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrFetchFailed, rawURL, resp.StatusCode)
	}
	return resp.Body, nil
}

// parseIndexLinks walks the index page's anchor tags and resolves every
// href ending in ".zip" against the page URL.
func parseIndexLinks(r io.Reader, pageURL string) ([]string, error) {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if !strings.HasSuffix(strings.ToLower(attr.Val), ".zip") {
					continue
				}
				ref, err := url.Parse(attr.Val)
				if err != nil {
					continue
				}
				links = append(links, base.ResolveReference(ref).String())
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	return links, nil
}
