// Package loader converts a tenant's raw files into normalized text
// documents. Each supported format has a parser registered in a lookup
// table keyed by FileKind; unsupported files are skipped with a warning
// and per-file parse failures never abort the rest of a batch.
package loader

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"kbgate/internal/document"
)

// URLSidecarName is the per-tenant file listing URLs to crawl. It lives in
// the tenant's upload directory and is never parsed as a document.
const URLSidecarName = "urls.txt"

// CommandRunner executes an external command and returns its stdout.
// It exists so parsers that shell out (PDF extraction) can be tested
// without the binary installed.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// parseFunc extracts text segments from one file. Multiple segments mean
// multiple documents from the same source (CSV rows).
type parseFunc func(l *Loader, ctx context.Context, path string) ([]string, error)

// Loader parses tenant files into documents.
type Loader struct {
	runner  CommandRunner
	parsers map[document.FileKind]parseFunc
}

// New creates a loader with the full parser table.
func New() *Loader {
	return NewWithRunner(execRunner{})
}

// NewWithRunner creates a loader using a custom command runner.
func NewWithRunner(runner CommandRunner) *Loader {
	l := &Loader{runner: runner}
	l.parsers = map[document.FileKind]parseFunc{
		document.KindPDF:      (*Loader).parsePDF,
		document.KindCSV:      (*Loader).parseCSV,
		document.KindDocx:     (*Loader).parseDocx,
		document.KindText:     (*Loader).parseText,
		document.KindMarkdown: (*Loader).parseMarkdown,
		document.KindJSON:     (*Loader).parseJSON,
	}
	return l
}

// ErrUnsupportedKind is returned by LoadFile for files outside the
// supported format set.
var ErrUnsupportedKind = fmt.Errorf("loader: unsupported file kind")

// LoadFile parses one file into documents tagged with the tenant and the
// file path as source.
func (l *Loader) LoadFile(ctx context.Context, path string, tenantID int64) ([]document.Document, error) {
	kind := document.KindForPath(path)
	parse, ok := l.parsers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, filepath.Ext(path))
	}

	segments, err := parse(l, ctx, path)
	if err != nil {
		return nil, fmt.Errorf("parse %s (%s): %w", filepath.Base(path), kind, err)
	}

	var docs []document.Document
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		docs = append(docs, document.Document{
			Content: seg,
			Meta:    document.Metadata{TenantID: tenantID, Source: path},
		})
	}
	return docs, nil
}

// FileFailure records one file that could not be parsed.
type FileFailure struct {
	Path string
	Err  error
}

// BatchResult aggregates a directory load: documents produced plus
// per-file outcome counts.
type BatchResult struct {
	Documents []document.Document
	Loaded    int
	Skipped   int
	Failures  []FileFailure
}

// LoadDir parses every supported file directly under dir. Unsupported
// files and the URL sidecar are skipped; parse failures are collected,
// not returned. A missing directory yields an empty result.
func (l *Loader) LoadDir(ctx context.Context, dir string, tenantID int64) (*BatchResult, error) {
	res := &BatchResult{}

	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loader: read dir %s: %w", dir, err)
	}

	// Deterministic batch order.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || entry.Name() == URLSidecarName {
			continue
		}
		path := filepath.Join(dir, entry.Name())

		if document.KindForPath(path) == document.KindUnknown {
			log.Printf("[Loader] Skipping unsupported file: %s", path)
			res.Skipped++
			continue
		}

		docs, err := l.LoadFile(ctx, path, tenantID)
		if err != nil {
			log.Printf("[Loader] Failed to parse %s: %v", path, err)
			res.Failures = append(res.Failures, FileFailure{Path: path, Err: err})
			continue
		}
		res.Documents = append(res.Documents, docs...)
		res.Loaded++
	}

	return res, nil
}
