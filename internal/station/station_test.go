package station

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Acquire/internal/config"
	"github.com/shaiso/Acquire/internal/coordinator"
	"github.com/shaiso/Acquire/internal/domain"
	"github.com/shaiso/Acquire/internal/library"
	"github.com/shaiso/Acquire/internal/repo"
)

const gridSpec = `
name: grid
description: two point grid
steps:
  - type: open_run
  - type: loop
    count: '2'
    steps:
      - type: trigger
        device: det1
      - type: read
        device: det1
  - type: close_run
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	plans := filepath.Join(dir, "plans")
	require.NoError(t, os.Mkdir(plans, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(plans, "grid.yaml"), []byte(gridSpec), 0o644))

	cfg := config.Default()
	cfg.Store.SQLitePath = filepath.Join(dir, "acquire.db")
	cfg.Metadata.TemplatePath = filepath.Join(dir, "metadata.yaml")
	cfg.Library.Dir = plans
	cfg.Library.Watch = false
	cfg.Coordinator.PollInterval = 5 * time.Millisecond
	cfg.Schedules = []domain.Schedule{
		{Name: "nightly", Plan: "grid", CronExpr: "0 2 * * *", Enabled: true},
	}
	return cfg
}

func TestStation_RunIsRecorded(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	var (
		mu     sync.Mutex
		posted []domain.DocumentName
	)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var doc domain.LifecycleDocument
		if err := json.NewDecoder(r.Body).Decode(&doc); err == nil {
			mu.Lock()
			posted = append(posted, doc.Name)
			mu.Unlock()
		}
	}))
	defer hook.Close()
	cfg.Webhook.URL = hook.URL

	st, err := New(ctx, cfg, Options{}, slog.Default())
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Start(ctx))

	info, err := st.Library.Info("grid")
	require.NoError(t, err)
	assert.Equal(t, library.SourceFile, info.Source)
	assert.Len(t, st.Scheduler.List(), 1)

	plan, err := st.Library.Get("grid")
	require.NoError(t, err)
	_, err = st.Coordinator.Submit(ctx, plan, coordinator.WithMetadata(map[string]any{"sample_name": "Si"}))
	require.NoError(t, err)

	var runs []domain.Run
	require.Eventually(t, func() bool {
		runs, err = st.Store.ListRuns(ctx, repo.RunFilter{Status: domain.RunStatusSucceeded})
		return err == nil && len(runs) == 1
	}, 5*time.Second, 10*time.Millisecond)

	run := runs[0]
	assert.Equal(t, "grid", run.PlanName)
	assert.Equal(t, "Si", run.Metadata["sample_name"])
	assert.Equal(t, "server", run.Metadata["location"])

	docs, err := st.Store.ListDocuments(ctx, run.UID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStart, docs[0].Name)
	assert.Equal(t, domain.DocumentStop, docs[len(docs)-1].Name)

	// Webhook стоит после store в цепочке sinks
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(posted) == len(docs)
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, domain.DocumentStart, posted[0])
	assert.Equal(t, domain.DocumentStop, posted[len(posted)-1])
}

func TestStation_BadStorePath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.SQLitePath = filepath.Join(t.TempDir(), "missing", "dir", "acquire.db")

	_, err := New(context.Background(), cfg, Options{}, slog.Default())
	assert.Error(t, err)
}
