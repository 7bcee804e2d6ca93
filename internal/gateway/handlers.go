package gateway

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"kbgate/internal/ai"
	"kbgate/internal/engine"
	"kbgate/internal/version"
)

// indexRequest triggers ingestion for one tenant. When UploadDir and
// URLs are empty, the tenant's configured sources are used.
type indexRequest struct {
	TenantID  int64    `json:"tenant_id"`
	UploadDir string   `json:"upload_dir,omitempty"`
	URLs      []string `json:"urls,omitempty"`
}

type indexResponse struct {
	ChunksAdded  int      `json:"chunks_added"`
	FilesLoaded  int      `json:"files_loaded"`
	FilesSkipped int      `json:"files_skipped"`
	PagesCrawled int      `json:"pages_crawled"`
	Failures     []string `json:"failures,omitempty"`
}

func (g *Gateway) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req indexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID <= 0 {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	ingestReq := engine.IngestRequest{
		TenantID:  req.TenantID,
		UploadDir: req.UploadDir,
		URLs:      req.URLs,
	}
	if ingestReq.UploadDir == "" && len(ingestReq.URLs) == 0 {
		tenant, ok := g.cfg.Tenant(req.TenantID)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown tenant")
			return
		}
		ingestReq.UploadDir = tenant.UploadDir
		ingestReq.URLs = tenant.URLs
	}

	summary, err := g.ingestor.Ingest(r.Context(), ingestReq)
	if err != nil {
		if errors.Is(err, engine.ErrIngestInProgress) {
			writeError(w, http.StatusConflict, "ingestion already in progress")
			return
		}
		log.Printf("[Gateway] ingestion for tenant %d failed: %v", req.TenantID, err)
		writeError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	resp := indexResponse{
		ChunksAdded:  summary.ChunksAdded,
		FilesLoaded:  summary.FilesLoaded,
		FilesSkipped: summary.FilesSkipped,
		PagesCrawled: summary.PagesCrawled,
	}
	for _, f := range summary.Failures {
		resp.Failures = append(resp.Failures, f.Input+": "+f.Err.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

type askRequest struct {
	TenantID int64  `json:"tenant_id"`
	UserID   string `json:"user_id"`
	Message  string `json:"message"`
}

type askResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

func (g *Gateway) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID <= 0 || req.UserID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "tenant_id, user_id, and message are required")
		return
	}

	answer, err := g.engine.Answer(r.Context(), req.TenantID, req.UserID, req.Message)
	if err != nil {
		log.Printf("[Gateway] answering for tenant %d failed: %v", req.TenantID, err)
		switch {
		case ai.IsQuota(err):
			writeError(w, http.StatusServiceUnavailable, "the assistant is temporarily out of capacity")
		case ai.IsTransient(err):
			writeError(w, http.StatusServiceUnavailable, "the assistant could not be reached, try again shortly")
		default:
			writeError(w, http.StatusInternalServerError, "failed to generate an answer")
		}
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Answer: answer.Text, Sources: answer.Sources})
}

type healthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Uptime    string    `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}

func (g *Gateway) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Version:   version.Info(),
		Uptime:    time.Since(g.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
	})
}
