// Package gateway exposes the knowledge base over HTTP: REST endpoints
// for indexing and asking, a health check, and a WebSocket chat stream.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"kbgate/internal/config"
	"kbgate/internal/engine"
)

// Ingestor is the slice of the ingestion pipeline the gateway needs.
type Ingestor interface {
	Ingest(ctx context.Context, req engine.IngestRequest) (*engine.IngestSummary, error)
}

// Answerer is the slice of the answer engine the gateway needs.
type Answerer interface {
	Answer(ctx context.Context, tenantID int64, userID, message string) (engine.Answer, error)
}

// Gateway is the HTTP server.
type Gateway struct {
	cfg      *config.Config
	engine   Answerer
	ingestor Ingestor
	server   *http.Server
	started  time.Time
}

// New creates a gateway serving the given engine and ingestor.
func New(cfg *config.Config, answerer Answerer, ingestor Ingestor) *Gateway {
	g := &Gateway{cfg: cfg, engine: answerer, ingestor: ingestor, started: time.Now()}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/index", g.handleIndex)
	mux.HandleFunc("POST /api/ask", g.handleAsk)
	mux.HandleFunc("GET /healthz", g.handleHealth)
	mux.HandleFunc("GET /ws/chat", g.handleWSChat)

	g.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g
}

// Start begins serving. It blocks until the server stops.
func (g *Gateway) Start() error {
	log.Printf("[Gateway] listening on %s", g.server.Addr)
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains connections and stops the server.
func (g *Gateway) Shutdown(ctx context.Context) error {
	log.Printf("[Gateway] shutting down")
	return g.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[Gateway] writing response failed: %v", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
