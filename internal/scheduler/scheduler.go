// Package scheduler periodically re-indexes every configured tenant so
// the knowledge base tracks changes in uploads and crawled sites.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"kbgate/internal/config"
	"kbgate/internal/engine"
)

// Ingestor is the slice of the ingestion pipeline the scheduler needs.
type Ingestor interface {
	Ingest(ctx context.Context, req engine.IngestRequest) (*engine.IngestSummary, error)
}

// Scheduler runs re-indexing on a cron schedule.
type Scheduler struct {
	cron     *cron.Cron
	ingestor Ingestor
	tenants  []config.TenantConfig

	mu      sync.RWMutex
	lastRun time.Time
	lastErr error
}

// New creates a scheduler for the given tenants.
func New(ingestor Ingestor, tenants []config.TenantConfig) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		ingestor: ingestor,
		tenants:  tenants,
	}
}

// Start registers the re-index job and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	_, err := s.cron.AddFunc(spec, func() { s.reindexAll(ctx) })
	if err != nil {
		return fmt.Errorf("scheduler: invalid cron expression %q: %w", spec, err)
	}

	s.cron.Start()
	log.Printf("[Scheduler] re-indexing %d tenants on schedule %q", len(s.tenants), spec)
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// LastRun reports when the last re-index started and its outcome.
func (s *Scheduler) LastRun() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRun, s.lastErr
}

// reindexAll runs ingestion for every tenant in turn. A tenant whose
// ingestion is already in progress is skipped, not failed.
func (s *Scheduler) reindexAll(ctx context.Context) {
	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	var firstErr error
	for _, t := range s.tenants {
		if ctx.Err() != nil {
			return
		}

		_, err := s.ingestor.Ingest(ctx, engine.IngestRequest{
			TenantID:  t.ID,
			UploadDir: t.UploadDir,
			URLs:      t.URLs,
		})
		switch {
		case errors.Is(err, engine.ErrIngestInProgress):
			log.Printf("[Scheduler] tenant %d busy, skipping", t.ID)
		case err != nil:
			log.Printf("[Scheduler] re-indexing tenant %d failed: %v", t.ID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	s.mu.Lock()
	s.lastErr = firstErr
	s.mu.Unlock()
}
