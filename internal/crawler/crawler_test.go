package crawler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFetcher serves canned HTML keyed by URL and records what it was
// asked to fetch.
type mockFetcher struct {
	mu      sync.Mutex
	pages   map[string]string
	fetched []string
}

func (m *mockFetcher) Fetch(_ context.Context, pageURL string) (string, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, pageURL)
	m.mu.Unlock()

	html, ok := m.pages[pageURL]
	if !ok {
		return "", errors.New("not found")
	}
	return html, nil
}

func page(body string, links ...string) string {
	html := "<html><body><main><p>" + body + "</p></main>"
	for _, l := range links {
		html += `<a href="` + l + `">link</a>`
	}
	return html + "</body></html>"
}

func TestCrawl_FollowsInternalLinks(t *testing.T) {
	f := &mockFetcher{pages: map[string]string{
		"https://example.edu/":        page("Welcome to the university.", "/courses", "/about"),
		"https://example.edu/courses": page("Algebra and Biology are offered."),
		"https://example.edu/about":   page("Founded in 1900."),
	}}
	c := New(f, Config{MaxDepth: 3, Delay: 0})

	result, err := c.Crawl(context.Background(), "https://example.edu/", 7)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Fetched)
	require.Len(t, result.Documents, 3)
	for _, doc := range result.Documents {
		assert.Equal(t, int64(7), doc.Meta.TenantID)
		assert.NotEmpty(t, doc.Meta.Source)
		assert.NotEmpty(t, doc.Content)
	}
}

func TestCrawl_StaysOnDomain(t *testing.T) {
	f := &mockFetcher{pages: map[string]string{
		"https://example.edu/":      page("Home.", "https://other.org/page", "/local"),
		"https://example.edu/local": page("Local page."),
	}}
	c := New(f, Config{MaxDepth: 2, Delay: 0})

	_, err := c.Crawl(context.Background(), "https://example.edu/", 1)
	require.NoError(t, err)

	for _, u := range f.fetched {
		assert.NotContains(t, u, "other.org")
	}
}

func TestCrawl_TreatsWWWAsSameDomain(t *testing.T) {
	f := &mockFetcher{pages: map[string]string{
		"https://example.edu/":         page("Home.", "https://www.example.edu/info"),
		"https://www.example.edu/info": page("Info page."),
	}}
	c := New(f, Config{MaxDepth: 2, Delay: 0})

	result, err := c.Crawl(context.Background(), "https://example.edu/", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
}

func TestCrawl_RespectsMaxDepth(t *testing.T) {
	f := &mockFetcher{pages: map[string]string{
		"https://example.edu/":   page("Depth zero.", "/d1"),
		"https://example.edu/d1": page("Depth one.", "/d2"),
		"https://example.edu/d2": page("Depth two.", "/d3"),
		"https://example.edu/d3": page("Depth three."),
	}}
	c := New(f, Config{MaxDepth: 1, Delay: 0})

	_, err := c.Crawl(context.Background(), "https://example.edu/", 1)
	require.NoError(t, err)

	assert.Contains(t, f.fetched, "https://example.edu/d1")
	assert.NotContains(t, f.fetched, "https://example.edu/d2")
}

func TestCrawl_SkipsFragmentDuplicates(t *testing.T) {
	f := &mockFetcher{pages: map[string]string{
		"https://example.edu/":     page("Home.", "/page#top", "/page#bottom"),
		"https://example.edu/page": page("The page."),
	}}
	c := New(f, Config{MaxDepth: 2, Delay: 0})

	result, err := c.Crawl(context.Background(), "https://example.edu/", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
}

func TestCrawl_CollectsFailuresAndContinues(t *testing.T) {
	f := &mockFetcher{pages: map[string]string{
		"https://example.edu/":     page("Home.", "/missing", "/good"),
		"https://example.edu/good": page("Still reachable."),
	}}
	c := New(f, Config{MaxDepth: 2, Delay: 0})

	result, err := c.Crawl(context.Background(), "https://example.edu/", 1)
	require.NoError(t, err)

	require.Len(t, result.Failures, 1)
	assert.Equal(t, "https://example.edu/missing", result.Failures[0].URL)
	assert.Len(t, result.Documents, 2)
	assert.Equal(t, 2, result.Fetched)
}

func TestCrawl_FailuresDoNotConsumePageBudget(t *testing.T) {
	f := &mockFetcher{pages: map[string]string{
		"https://example.edu/":  page("Home.", "/missing", "/a", "/b"),
		"https://example.edu/a": page("A."),
		"https://example.edu/b": page("B."),
	}}
	c := New(f, Config{MaxDepth: 2, MaxPages: 3, Delay: 0})

	result, err := c.Crawl(context.Background(), "https://example.edu/", 1)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Fetched)
	assert.Len(t, result.Documents, 3)
	require.Len(t, result.Failures, 1)
}

func TestCrawl_MaxPages(t *testing.T) {
	f := &mockFetcher{pages: map[string]string{
		"https://example.edu/":  page("Home.", "/a", "/b", "/c"),
		"https://example.edu/a": page("A."),
		"https://example.edu/b": page("B."),
		"https://example.edu/c": page("C."),
	}}
	c := New(f, Config{MaxDepth: 2, MaxPages: 2, Delay: 0})

	result, err := c.Crawl(context.Background(), "https://example.edu/", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
}

func TestCrawl_InvalidStartURL(t *testing.T) {
	c := New(&mockFetcher{}, Config{})

	_, err := c.Crawl(context.Background(), "ftp://example.edu/", 1)
	assert.Error(t, err)
}
