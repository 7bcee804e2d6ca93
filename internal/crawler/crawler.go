// Package crawler walks a website breadth-first and converts its pages
// into documents for ingestion. The crawl never leaves the domain of
// the starting URL.
package crawler

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"time"

	"kbgate/internal/document"
)

// Defaults mirror the ingestion pipeline's tuning.
const (
	DefaultMaxDepth = 3
	DefaultMaxPages = 200
	DefaultDelay    = 500 * time.Millisecond
)

// Config tunes a crawl.
type Config struct {
	// MaxDepth limits how many link hops from the start URL are
	// followed. The start URL itself is depth 0.
	MaxDepth int
	// MaxPages caps the number of pages fetched successfully.
	// Failed fetches do not count against the budget.
	MaxPages int
	// Delay is the pause between consecutive fetches.
	Delay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxDepth <= 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	if c.MaxPages <= 0 {
		c.MaxPages = DefaultMaxPages
	}
	if c.Delay < 0 {
		c.Delay = DefaultDelay
	}
	return c
}

// PageFailure records one page that could not be fetched or parsed.
type PageFailure struct {
	URL string
	Err error
}

// Result summarizes a completed crawl. Fetched counts only pages
// retrieved successfully; failed attempts appear in Failures.
type Result struct {
	Documents []document.Document
	Fetched   int
	Failures  []PageFailure
}

// Crawler fetches pages through a pluggable Fetcher.
type Crawler struct {
	fetcher Fetcher
	cfg     Config
}

// New returns a crawler using the given fetcher.
func New(fetcher Fetcher, cfg Config) *Crawler {
	return &Crawler{fetcher: fetcher, cfg: cfg.withDefaults()}
}

// Crawl walks the site rooted at startURL breadth-first, producing one
// document per page with readable content. Pages that fail to fetch
// are recorded and skipped; only an invalid start URL or a cancelled
// context aborts the crawl.
func (c *Crawler) Crawl(ctx context.Context, startURL string, tenantID int64) (Result, error) {
	root, err := url.Parse(startURL)
	if err != nil || (root.Scheme != "http" && root.Scheme != "https") {
		return Result{}, fmt.Errorf("crawler: invalid start url %q", startURL)
	}

	type item struct {
		url   string
		depth int
	}

	start := normalizeURL(root)
	queue := []item{{url: start, depth: 0}}
	visited := map[string]bool{start: true}

	var result Result
	attempts := 0
	for len(queue) > 0 && result.Fetched < c.cfg.MaxPages {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		next := queue[0]
		queue = queue[1:]

		if attempts > 0 && c.cfg.Delay > 0 {
			select {
			case <-time.After(c.cfg.Delay):
			case <-ctx.Done():
				return result, ctx.Err()
			}
		}

		html, err := c.fetcher.Fetch(ctx, next.url)
		attempts++
		if err != nil {
			log.Printf("[Crawler] skipping %s: %v", next.url, err)
			result.Failures = append(result.Failures, PageFailure{URL: next.url, Err: err})
			continue
		}
		result.Fetched++

		if text := extractText(html, next.url); text != "" {
			result.Documents = append(result.Documents, document.Document{
				Content: text,
				Meta: document.Metadata{
					TenantID: tenantID,
					Source:   next.url,
				},
			})
		}

		if next.depth >= c.cfg.MaxDepth {
			continue
		}
		for _, link := range extractLinks(html, next.url) {
			if visited[link] {
				continue
			}
			linkURL, err := url.Parse(link)
			if err != nil || !sameDomain(root, linkURL) {
				continue
			}
			visited[link] = true
			queue = append(queue, item{url: link, depth: next.depth + 1})
		}
	}

	log.Printf("[Crawler] %s: %d pages fetched, %d documents, %d failures",
		startURL, result.Fetched, len(result.Documents), len(result.Failures))
	return result, nil
}
