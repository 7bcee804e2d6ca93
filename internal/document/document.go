// Package document defines the normalized text document and chunk types
// shared by the loader, crawler, chunker and vector store.
package document

import (
	"path/filepath"
	"strings"
)

// Metadata identifies where a document came from and which tenant owns it.
// It is attached unchanged to every chunk derived from the document.
type Metadata struct {
	TenantID int64  `json:"tenant_id"`
	Source   string `json:"source"` // file path or URL
}

// Document is a normalized text document produced by the loader or crawler.
// Immutable once created.
type Document struct {
	Content string
	Meta    Metadata
}

// Chunk is a bounded-length fragment of a document, the unit of embedding
// and retrieval. Consecutive chunks from one document overlap.
type Chunk struct {
	Content string
	Index   int
	Meta    Metadata
}

// FileKind is the closed set of file formats the loader understands.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindPDF
	KindCSV
	KindDocx
	KindText
	KindMarkdown
	KindJSON
)

var kindNames = map[FileKind]string{
	KindUnknown:  "unknown",
	KindPDF:      "pdf",
	KindCSV:      "csv",
	KindDocx:     "docx",
	KindText:     "text",
	KindMarkdown: "markdown",
	KindJSON:     "json",
}

func (k FileKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

var extKinds = map[string]FileKind{
	".pdf":      KindPDF,
	".csv":      KindCSV,
	".docx":     KindDocx,
	".txt":      KindText,
	".text":     KindText,
	".md":       KindMarkdown,
	".markdown": KindMarkdown,
	".json":     KindJSON,
}

// KindForPath maps a file extension to its FileKind.
// Returns KindUnknown for anything outside the supported set.
func KindForPath(path string) FileKind {
	ext := strings.ToLower(filepath.Ext(path))
	if kind, ok := extKinds[ext]; ok {
		return kind
	}
	return KindUnknown
}
