package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbgate/internal/config"
	"kbgate/internal/engine"
)

type recordingIngestor struct {
	mu   sync.Mutex
	reqs []engine.IngestRequest
	errs map[int64]error
}

func (r *recordingIngestor) Ingest(_ context.Context, req engine.IngestRequest) (*engine.IngestSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return &engine.IngestSummary{}, r.errs[req.TenantID]
}

func TestReindexAll_CoversEveryTenant(t *testing.T) {
	ing := &recordingIngestor{}
	s := New(ing, []config.TenantConfig{
		{ID: 1, UploadDir: "/srv/one"},
		{ID: 2, URLs: []string{"https://two.example/"}},
	})

	s.reindexAll(context.Background())

	require.Len(t, ing.reqs, 2)
	assert.Equal(t, "/srv/one", ing.reqs[0].UploadDir)
	assert.Equal(t, int64(2), ing.reqs[1].TenantID)

	_, err := s.LastRun()
	assert.NoError(t, err)
}

func TestReindexAll_BusyTenantIsNotAnError(t *testing.T) {
	ing := &recordingIngestor{errs: map[int64]error{1: engine.ErrIngestInProgress}}
	s := New(ing, []config.TenantConfig{{ID: 1}, {ID: 2}})

	s.reindexAll(context.Background())

	last, err := s.LastRun()
	assert.False(t, last.IsZero())
	assert.NoError(t, err)
	assert.Len(t, ing.reqs, 2)
}

func TestStart_RejectsBadCronSpec(t *testing.T) {
	s := New(&recordingIngestor{}, nil)
	err := s.Start(context.Background(), "not a cron spec")
	assert.Error(t, err)
}

func TestStart_AcceptsStandardSpec(t *testing.T) {
	s := New(&recordingIngestor{}, nil)
	require.NoError(t, s.Start(context.Background(), "0 3 * * *"))
	s.Stop()
}
