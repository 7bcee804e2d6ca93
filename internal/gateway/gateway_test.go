package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbgate/internal/ai"
	"kbgate/internal/config"
	"kbgate/internal/engine"
)

type stubAnswerer struct {
	answer engine.Answer
	err    error
}

func (s *stubAnswerer) Answer(context.Context, int64, string, string) (engine.Answer, error) {
	return s.answer, s.err
}

type stubIngestor struct {
	summary *engine.IngestSummary
	err     error
	last    engine.IngestRequest
}

func (s *stubIngestor) Ingest(_ context.Context, req engine.IngestRequest) (*engine.IngestSummary, error) {
	s.last = req
	return s.summary, s.err
}

func newTestGateway(answerer Answerer, ingestor Ingestor) *Gateway {
	cfg := config.Default()
	cfg.Tenants = []config.TenantConfig{
		{ID: 1, Name: "campus", UploadDir: "/srv/campus", URLs: []string{"https://example.edu/"}},
	}
	return New(cfg, answerer, ingestor)
}

func postJSON(t *testing.T, g *Gateway, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	g.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleAsk(t *testing.T) {
	g := newTestGateway(&stubAnswerer{answer: engine.Answer{
		Text:    "Algebra is worth 3 credits.",
		Sources: []string{"catalog.pdf"},
	}}, &stubIngestor{})

	rec := postJSON(t, g, "/api/ask", askRequest{TenantID: 1, UserID: "u", Message: "credits?"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp askResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Algebra is worth 3 credits.", resp.Answer)
	assert.Equal(t, []string{"catalog.pdf"}, resp.Sources)
}

func TestHandleAsk_MissingFields(t *testing.T) {
	g := newTestGateway(&stubAnswerer{}, &stubIngestor{})

	rec := postJSON(t, g, "/api/ask", askRequest{TenantID: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAsk_QuotaMapsTo503(t *testing.T) {
	quota := &ai.CapabilityError{Kind: ai.FailureQuota, Provider: "p", Err: errors.New("429")}
	g := newTestGateway(&stubAnswerer{err: quota}, &stubIngestor{})

	rec := postJSON(t, g, "/api/ask", askRequest{TenantID: 1, UserID: "u", Message: "q"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "capacity")
}

func TestHandleIndex_UsesConfiguredTenantSources(t *testing.T) {
	ing := &stubIngestor{summary: &engine.IngestSummary{ChunksAdded: 12, FilesLoaded: 2}}
	g := newTestGateway(&stubAnswerer{}, ing)

	rec := postJSON(t, g, "/api/index", indexRequest{TenantID: 1})
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "/srv/campus", ing.last.UploadDir)
	assert.Equal(t, []string{"https://example.edu/"}, ing.last.URLs)

	var resp indexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 12, resp.ChunksAdded)
}

func TestHandleIndex_UnknownTenant(t *testing.T) {
	g := newTestGateway(&stubAnswerer{}, &stubIngestor{})

	rec := postJSON(t, g, "/api/index", indexRequest{TenantID: 99})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleIndex_ConflictWhileRunning(t *testing.T) {
	g := newTestGateway(&stubAnswerer{}, &stubIngestor{err: engine.ErrIngestInProgress})

	rec := postJSON(t, g, "/api/index", indexRequest{TenantID: 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	g := newTestGateway(&stubAnswerer{}, &stubIngestor{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	g.server.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestWSChat_RoundTrip(t *testing.T) {
	g := newTestGateway(&stubAnswerer{answer: engine.Answer{Text: "hello from kb"}}, &stubIngestor{})

	srv := httptest.NewServer(g.server.Handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(chatRequest{TenantID: 1, Message: "hi"}))

	var resp chatResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, "hello from kb", resp.Answer)
	assert.Empty(t, resp.Error)
}

func TestWSChat_ValidationError(t *testing.T) {
	g := newTestGateway(&stubAnswerer{}, &stubIngestor{})

	srv := httptest.NewServer(g.server.Handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(chatRequest{Message: "no tenant"}))

	var resp chatResponse
	require.NoError(t, conn.ReadJSON(&resp))
	assert.NotEmpty(t, resp.Error)
}
