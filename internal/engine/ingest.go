package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"kbgate/internal/chunker"
	"kbgate/internal/crawler"
	"kbgate/internal/document"
	"kbgate/internal/embedder"
	"kbgate/internal/loader"
	"kbgate/internal/vectorstore"
)

// ErrIngestInProgress is returned when a tenant's ingestion is
// requested while a previous run is still active.
var ErrIngestInProgress = errors.New("ingestion already in progress for tenant")

// IngestRequest names what to (re)index for one tenant.
type IngestRequest struct {
	TenantID int64
	// UploadDir is the tenant's document directory. It may contain a
	// urls.txt sidecar listing sites to crawl, one per line.
	UploadDir string
	// URLs lists additional sites to crawl.
	URLs []string
}

// IngestFailure records one input that could not be ingested.
type IngestFailure struct {
	Input string
	Err   error
}

// IngestSummary reports what an ingestion run accomplished.
type IngestSummary struct {
	ChunksAdded  int
	FilesLoaded  int
	FilesSkipped int
	PagesCrawled int
	Failures     []IngestFailure
}

// Ingestor runs the load-crawl-chunk-embed-store pipeline. At most one
// run per tenant is active at a time.
type Ingestor struct {
	loader   *loader.Loader
	crawler  *crawler.Crawler
	chunker  *chunker.Chunker
	embedder embedder.Embedder
	store    *vectorstore.Store

	mu     sync.Mutex
	active map[int64]bool
}

// NewIngestor assembles the ingestion pipeline.
func NewIngestor(l *loader.Loader, c *crawler.Crawler, ch *chunker.Chunker, emb embedder.Embedder, store *vectorstore.Store) *Ingestor {
	return &Ingestor{
		loader:   l,
		crawler:  c,
		chunker:  ch,
		embedder: emb,
		store:    store,
		active:   make(map[int64]bool),
	}
}

// Ingest indexes the tenant's uploads and websites. Individual file or
// page failures are collected in the summary; the run only fails
// outright on embedding or storage errors, or when another run for the
// same tenant is already active.
func (in *Ingestor) Ingest(ctx context.Context, req IngestRequest) (*IngestSummary, error) {
	in.mu.Lock()
	if in.active[req.TenantID] {
		in.mu.Unlock()
		return nil, fmt.Errorf("%w: %d", ErrIngestInProgress, req.TenantID)
	}
	in.active[req.TenantID] = true
	in.mu.Unlock()
	defer func() {
		in.mu.Lock()
		delete(in.active, req.TenantID)
		in.mu.Unlock()
	}()

	summary := &IngestSummary{}
	var docs []document.Document

	if req.UploadDir != "" {
		batch, err := in.loader.LoadDir(ctx, req.UploadDir, req.TenantID)
		if err != nil {
			return nil, fmt.Errorf("ingest: loading %s failed: %w", req.UploadDir, err)
		}
		docs = append(docs, batch.Documents...)
		summary.FilesLoaded = batch.Loaded
		summary.FilesSkipped = batch.Skipped
		for _, f := range batch.Failures {
			summary.Failures = append(summary.Failures, IngestFailure{Input: f.Path, Err: f.Err})
		}
	}

	urls, badURLs, err := in.collectURLs(req)
	if err != nil {
		return nil, err
	}
	for _, f := range badURLs {
		log.Printf("[Ingest] skipping %s: %v", f.Input, f.Err)
		summary.Failures = append(summary.Failures, f)
	}
	for _, site := range urls {
		result, err := in.crawler.Crawl(ctx, site, req.TenantID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			log.Printf("[Ingest] crawl of %s failed: %v", site, err)
			summary.Failures = append(summary.Failures, IngestFailure{Input: site, Err: err})
			continue
		}
		docs = append(docs, result.Documents...)
		summary.PagesCrawled += result.Fetched
		for _, f := range result.Failures {
			summary.Failures = append(summary.Failures, IngestFailure{Input: f.URL, Err: f.Err})
		}
	}

	if len(docs) == 0 {
		log.Printf("[Ingest] tenant %d: nothing to index", req.TenantID)
		return summary, nil
	}

	chunks := in.chunker.SplitAll(docs)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vecs, err := in.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ingest: embedding failed: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("ingest: embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	records := make([]vectorstore.Record, len(chunks))
	for i, c := range chunks {
		records[i] = vectorstore.Record{
			TenantID:  c.Meta.TenantID,
			Source:    c.Meta.Source,
			Content:   c.Content,
			Embedding: vecs[i],
		}
	}

	if err := in.store.Upsert(ctx, records); err != nil {
		return nil, fmt.Errorf("ingest: storing vectors failed: %w", err)
	}
	summary.ChunksAdded = len(records)

	log.Printf("[Ingest] tenant %d: %d files, %d pages, %d chunks indexed",
		req.TenantID, summary.FilesLoaded, summary.PagesCrawled, summary.ChunksAdded)
	return summary, nil
}

// collectURLs merges the request's URLs with the upload directory's
// urls.txt sidecar, deduplicating as it goes. Malformed URLs are
// returned as failures so the rest of the batch proceeds; only a
// sidecar read error is fatal.
func (in *Ingestor) collectURLs(req IngestRequest) ([]string, []IngestFailure, error) {
	var raw []string
	raw = append(raw, req.URLs...)

	if req.UploadDir != "" {
		sidecar, err := readURLSidecar(filepath.Join(req.UploadDir, loader.URLSidecarName))
		if err != nil {
			return nil, nil, err
		}
		raw = append(raw, sidecar...)
	}

	seen := make(map[string]bool)
	var urls []string
	var bad []IngestFailure
	for _, site := range raw {
		site = strings.TrimSpace(site)
		if site == "" || seen[site] {
			continue
		}
		seen[site] = true

		u, err := url.Parse(site)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			bad = append(bad, IngestFailure{Input: site, Err: fmt.Errorf("ingest: invalid url %q", site)})
			continue
		}
		urls = append(urls, site)
	}

	return urls, bad, nil
}

// readURLSidecar reads one URL per line, ignoring blanks and # comments.
// A missing sidecar is not an error.
func readURLSidecar(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ingest: reading %s failed: %w", path, err)
	}
	defer f.Close()

	var urls []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, scanner.Err()
}
