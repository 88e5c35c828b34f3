package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yupoocrawl/pkg/config"
)

// writeScript writes a shell script standing in for the worker binary.
// Workers are invoked as: crawl --url <u> --name <n> --start ... so $5 is
// the resolved category name.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func testOrchConfig(t *testing.T, jobs ...config.CategoryJob) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Categories = jobs
	cfg.Crawl.RequestDelay = 0
	cfg.Output.LogsDirectory = t.TempDir()
	cfg.Orchestrator.PollInterval = 10 * time.Millisecond
	cfg.Orchestrator.GracePeriod = 200 * time.Millisecond
	return cfg
}

func TestRunCollectsWorkerStatusesAndLogs(t *testing.T) {
	cfg := testOrchConfig(t,
		config.CategoryJob{URL: "https://shop.x.yupoo.com/categories/1", Name: "Good", StartPage: 1, EndPage: 1},
		config.CategoryJob{URL: "https://shop.x.yupoo.com/categories/2", Name: "Bad", StartPage: 1, EndPage: 1},
	)

	o := New(cfg, "", nil)
	o.binary = writeScript(t, `echo "worker $5 starting"
if [ "$5" = "Good" ]; then exit 0; fi
exit 3`)

	statuses, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "Good", statuses[0].Category)
	assert.Equal(t, 0, statuses[0].ExitCode)
	assert.NoError(t, statuses[0].Err)

	assert.Equal(t, "Bad", statuses[1].Category)
	assert.Equal(t, 3, statuses[1].ExitCode)
	assert.Error(t, statuses[1].Err)

	// Each worker's stdout lands in its own log file
	data, err := os.ReadFile(filepath.Join(cfg.Output.LogsDirectory, "Good_1.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "worker Good starting")
	assert.FileExists(t, filepath.Join(cfg.Output.LogsDirectory, "Bad_2.log"))
}

func TestRunResolvesAllNamesBeforeLaunching(t *testing.T) {
	markDir := t.TempDir()
	t.Setenv("WORKER_MARK_DIR", markDir)

	// Every name probe checks whether any worker has already started; a
	// non-empty mark directory at probe time means launches overlapped
	// name resolution.
	var launchSeenDuringProbe int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if entries, err := os.ReadDir(markDir); err == nil && len(entries) > 0 {
			atomic.StoreInt32(&launchSeenDuringProbe, 1)
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/categories/1"):
			w.Write([]byte(`<html><head><title>分类"Alpha"下的相册</title></head><body></body></html>`))
		case strings.HasPrefix(r.URL.Path, "/categories/2"):
			w.Write([]byte(`<html><head><title>分类"Beta"下的相册</title></head><body></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := testOrchConfig(t,
		config.CategoryJob{URL: server.URL + "/categories/1", StartPage: 1, EndPage: 1},
		config.CategoryJob{URL: server.URL + "/categories/2", StartPage: 1, EndPage: 1},
	)

	o := New(cfg, "", nil)
	o.binary = writeScript(t, `touch "$WORKER_MARK_DIR/$5"`)

	statuses, err := o.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "Alpha", statuses[0].Category)
	assert.Equal(t, "Beta", statuses[1].Category)
	assert.EqualValues(t, 0, atomic.LoadInt32(&launchSeenDuringProbe))

	// Both workers ran, and their log files carry the resolved names
	assert.FileExists(t, filepath.Join(markDir, "Alpha"))
	assert.FileExists(t, filepath.Join(markDir, "Beta"))
	assert.FileExists(t, filepath.Join(cfg.Output.LogsDirectory, "Alpha_1.log"))
	assert.FileExists(t, filepath.Join(cfg.Output.LogsDirectory, "Beta_2.log"))
}

func TestRunTerminatesWorkersOnCancellation(t *testing.T) {
	cfg := testOrchConfig(t,
		config.CategoryJob{URL: "https://shop.x.yupoo.com/categories/1", Name: "Slow", StartPage: 1, EndPage: 1},
	)

	o := New(cfg, "", nil)
	o.binary = writeScript(t, `trap 'exit 0' TERM
sleep 30 &
wait $!`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	statuses, err := o.Run(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)

	// The worker honored SIGTERM and exited cleanly, well before its sleep
	assert.Equal(t, 0, statuses[0].ExitCode)
	assert.NoError(t, statuses[0].Err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunKillsWorkerThatIgnoresTerminate(t *testing.T) {
	cfg := testOrchConfig(t,
		config.CategoryJob{URL: "https://shop.x.yupoo.com/categories/1", Name: "Stubborn", StartPage: 1, EndPage: 1},
	)

	o := New(cfg, "", nil)
	o.binary = writeScript(t, `trap '' TERM
sleep 30 &
wait $!`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	statuses, err := o.Run(ctx)
	require.NoError(t, err)
	require.Len(t, statuses, 1)

	// SIGKILL after the grace period: no exit code, an error from Wait
	assert.Equal(t, -1, statuses[0].ExitCode)
	assert.Error(t, statuses[0].Err)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestLogFilePath(t *testing.T) {
	tests := []struct {
		name     string
		category string
		url      string
		expected string
	}{
		{
			name:     "plain name",
			category: "Sneakers",
			url:      "https://shop.x.yupoo.com/categories/4135412",
			expected: filepath.Join("logs", "Sneakers_4135412.log"),
		},
		{
			name:     "name with path separator",
			category: "Bags/2024",
			url:      "https://shop.x.yupoo.com/categories/99",
			expected: filepath.Join("logs", "Bags-2024_99.log"),
		},
		{
			name:     "fallback category name",
			category: "Category_77",
			url:      "https://shop.x.yupoo.com/categories/77",
			expected: filepath.Join("logs", "Category_77_77.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, logFilePath("logs", tt.category, tt.url))
		})
	}
}

func TestLivePending(t *testing.T) {
	started := &worker{category: "a", done: make(chan error, 1)}
	exited := &worker{category: "b", done: closedErrChan(errors.New("boom"))}
	neverStarted := &worker{category: "c", done: closedErrChan(errors.New("launch failed"))}

	// Only workers with a live process and an unconsumed done channel count;
	// cmd is nil for the never-started one and for these stubs, so nothing
	// qualifies.
	pending := livePending([]*worker{started, exited, neverStarted}, []bool{false, false, false})
	assert.Empty(t, pending)
}

func TestStatusForFailedLaunch(t *testing.T) {
	w := &worker{category: "cat"}
	s := status(w, errors.New("launch failed"))

	assert.Equal(t, "cat", s.Category)
	assert.Equal(t, -1, s.ExitCode)
	assert.Error(t, s.Err)
}
