package loader

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strings"
)

func (l *Loader) parseText(_ context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []string{string(data)}, nil
}

// Markdown formatting is stripped down to plain prose so the embedding
// input is not polluted with syntax characters.
var (
	mdCodeFenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9]*\n?(.*?)```")
	mdHeadingRe   = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdEmphasisRe  = regexp.MustCompile(`(\*{1,3}|_{1,3})([^*_]+)(\*{1,3}|_{1,3})`)
	mdLinkRe      = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	mdImageRe     = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	mdInlineCode  = regexp.MustCompile("`([^`]*)`")
	mdListMarker  = regexp.MustCompile(`(?m)^\s*[-*+]\s+`)
	mdBlockquote  = regexp.MustCompile(`(?m)^>\s?`)
)

func (l *Loader) parseMarkdown(_ context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	text := string(data)
	text = mdImageRe.ReplaceAllString(text, "$1")
	text = mdLinkRe.ReplaceAllString(text, "$1")
	text = mdCodeFenceRe.ReplaceAllString(text, "$1")
	text = mdInlineCode.ReplaceAllString(text, "$1")
	text = mdHeadingRe.ReplaceAllString(text, "")
	text = mdEmphasisRe.ReplaceAllString(text, "$2")
	text = mdListMarker.ReplaceAllString(text, "")
	text = mdBlockquote.ReplaceAllString(text, "")

	return []string{text}, nil
}

// JSON files are indexed as their pretty-printed form, one document per
// file, after validating that the payload actually parses.
func (l *Loader) parseJSON(_ context.Context, path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}

	pretty, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, err
	}
	return []string{strings.TrimSpace(string(pretty))}, nil
}
