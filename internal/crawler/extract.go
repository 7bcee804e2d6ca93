package crawler

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// extractText pulls the readable body text out of a page. Readability
// isolates the main article; when it finds nothing usable we fall back
// to the stripped full document.
func extractText(html, pageURL string) string {
	if u, err := url.Parse(pageURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(html), u); err == nil {
			if text := collapseWhitespace(article.TextContent); text != "" {
				return text
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()
	return collapseWhitespace(doc.Find("body").Text())
}

func collapseWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	joined := strings.Join(lines, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(joined, "\n\n"))
}

// extractLinks resolves every anchor href on the page against its URL.
// Non-http(s) schemes and unparseable hrefs are dropped.
func extractLinks(html, pageURL string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var links []string
	seen := make(map[string]bool)
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		normalized := normalizeURL(abs)
		if !seen[normalized] {
			seen[normalized] = true
			links = append(links, normalized)
		}
	})

	return links
}

// normalizeURL strips the fragment so in-page anchors do not count as
// distinct pages.
func normalizeURL(u *url.URL) string {
	clone := *u
	clone.Fragment = ""
	return clone.String()
}

// sameDomain reports whether two URLs share a host, treating a leading
// "www." as insignificant.
func sameDomain(a, b *url.URL) bool {
	return strings.TrimPrefix(strings.ToLower(a.Hostname()), "www.") ==
		strings.TrimPrefix(strings.ToLower(b.Hostname()), "www.")
}
