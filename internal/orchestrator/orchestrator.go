// Package orchestrator supervises one worker process per configured
// category. Process isolation is the point: a crashing or hanging category
// cannot take the others down, and each worker's output lands in its own
// log file.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"yupoocrawl/pkg/config"
	"yupoocrawl/pkg/crawler"
	"yupoocrawl/pkg/logger"
	"yupoocrawl/pkg/storage"
	"yupoocrawl/pkg/yupoo"
)

// WorkerStatus is the final state of one category worker
type WorkerStatus struct {
	Category string
	LogFile  string
	ExitCode int
	Err      error
}

type worker struct {
	category string
	cmd      *exec.Cmd
	logFile  *os.File
	logPath  string
	done     chan error
}

// Orchestrator launches and supervises category worker processes
type Orchestrator struct {
	cfg        *config.Config
	configPath string
	logger     logger.Logger

	// binary overrides the worker executable path; empty means the
	// running binary.
	binary string
}

// New creates an orchestrator over a validated configuration
func New(cfg *config.Config, configPath string, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Orchestrator{cfg: cfg, configPath: configPath, logger: log}
}

// Run launches one worker process per category and waits for all of them.
// On context cancellation every live worker gets SIGTERM, then SIGKILL
// after the grace period. The returned statuses cover every category that
// was launched.
func (o *Orchestrator) Run(ctx context.Context) ([]WorkerStatus, error) {
	binary := o.binary
	if binary == "" {
		var err error
		binary, err = os.Executable()
		if err != nil {
			return nil, fmt.Errorf("cannot locate own binary: %w", err)
		}
	}

	if err := os.MkdirAll(o.cfg.Output.LogsDirectory, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create logs directory: %w", err)
	}

	// Resolve every display name up front, sequentially, before any worker
	// starts. The probes run in this process, so no worker traffic competes
	// with them and every log file carries its final name from the start.
	names := make([]string, len(o.cfg.Categories))
	for i, job := range o.cfg.Categories {
		names[i] = crawler.ProbeCategoryName(ctx, job, o.cfg, o.logger)
	}

	workers := make([]*worker, 0, len(o.cfg.Categories))
	defer func() {
		for _, w := range workers {
			if w.logFile != nil {
				w.logFile.Close()
			}
		}
	}()

	for i, job := range o.cfg.Categories {
		w, err := o.launch(binary, job, names[i])
		if err != nil {
			o.logger.ErrorWithFields("failed to launch worker", map[string]interface{}{
				"url":   job.URL,
				"error": err.Error(),
			})
			workers = append(workers, &worker{
				category: names[i],
				logPath:  "",
				done:     closedErrChan(err),
			})
			continue
		}
		workers = append(workers, w)
		o.logger.InfoWithFields("worker launched", map[string]interface{}{
			"category": w.category,
			"pid":      w.cmd.Process.Pid,
			"log":      w.logPath,
		})
	}

	return o.supervise(ctx, workers), nil
}

// launch opens the category's log file and starts the worker process
// writing into it, under the already-resolved display name.
func (o *Orchestrator) launch(binary string, job config.CategoryJob, name string) (*worker, error) {
	logPath := logFilePath(o.cfg.Output.LogsDirectory, name, job.URL)
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("cannot create log file %s: %w", logPath, err)
	}

	args := []string{
		"crawl",
		"--url", job.URL,
		"--name", name,
		"--start", strconv.Itoa(job.StartPage),
		"--end", strconv.Itoa(job.EndPage),
		"--no-color",
	}
	if job.Password != "" {
		args = append(args, "--password", job.Password)
	}
	if o.configPath != "" {
		args = append(args, "--config", o.configPath)
	}

	// Deliberately not CommandContext: cancellation goes through the
	// graceful SIGTERM path below, not an immediate kill.
	cmd := exec.Command(binary, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		logFile.Close()
		os.Remove(logPath)
		return nil, err
	}

	w := &worker{
		category: name,
		cmd:      cmd,
		logFile:  logFile,
		logPath:  logPath,
		done:     make(chan error, 1),
	}
	go func() {
		w.done <- cmd.Wait()
	}()
	return w, nil
}

// supervise polls workers until all exit, handling cancellation with a
// terminate-then-kill sequence.
func (o *Orchestrator) supervise(ctx context.Context, workers []*worker) []WorkerStatus {
	statuses := make([]WorkerStatus, len(workers))
	finished := make([]bool, len(workers))
	remaining := len(workers)

	ticker := time.NewTicker(o.cfg.Orchestrator.PollInterval)
	defer ticker.Stop()

	// cancel is nilled after the first shutdown so the loop keeps polling
	// for worker exits without re-entering the signal path.
	cancel := ctx.Done()

	for remaining > 0 {
		select {
		case <-cancel:
			cancel = nil
			o.shutdown(workers, finished)
		case <-ticker.C:
		}

		for i, w := range workers {
			if finished[i] {
				continue
			}
			select {
			case err := <-w.done:
				finished[i] = true
				remaining--
				statuses[i] = status(w, err)
				o.logger.InfoWithFields("worker finished", map[string]interface{}{
					"category":  statuses[i].Category,
					"exit_code": statuses[i].ExitCode,
				})
			default:
			}
		}
	}

	return statuses
}

// shutdown terminates every live worker, waits out the grace period and
// kills the survivors.
func (o *Orchestrator) shutdown(workers []*worker, finished []bool) {
	o.logger.Warn("shutting down, terminating workers")

	for i, w := range workers {
		if finished[i] || w.cmd == nil || w.cmd.Process == nil {
			continue
		}
		if err := w.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			o.logger.DebugWithFields("terminate failed", map[string]interface{}{
				"category": w.category,
				"error":    err.Error(),
			})
		}
	}

	deadline := time.After(o.cfg.Orchestrator.GracePeriod)
	pending := livePending(workers, finished)
	for len(pending) > 0 {
		select {
		case <-deadline:
			for _, w := range pending {
				o.logger.WarnWithFields("worker ignored terminate, killing", map[string]interface{}{
					"category": w.category,
				})
				w.cmd.Process.Kill()
			}
			return
		case <-time.After(50 * time.Millisecond):
			pending = livePending(workers, finished)
		}
	}
}

// livePending returns workers that were started and have not yet exited.
// Exit detection here peeks the done channel without consuming it; the
// supervise loop remains the single consumer.
func livePending(workers []*worker, finished []bool) []*worker {
	var pending []*worker
	for i, w := range workers {
		if finished[i] || w.cmd == nil || w.cmd.Process == nil {
			continue
		}
		if len(w.done) == 0 {
			pending = append(pending, w)
		}
	}
	return pending
}

func status(w *worker, err error) WorkerStatus {
	s := WorkerStatus{Category: w.category, LogFile: w.logPath, Err: err}
	if w.cmd != nil && w.cmd.ProcessState != nil {
		s.ExitCode = w.cmd.ProcessState.ExitCode()
	} else if err != nil {
		s.ExitCode = -1
	}
	return s
}

// logFilePath builds the per-worker log file name from the category's
// sanitized display name and its numeric id.
func logFilePath(logsDir, categoryName, categoryURL string) string {
	name := fmt.Sprintf("%s_%s.log", storage.SanitizeName(categoryName), yupoo.CategoryID(categoryURL))
	return filepath.Join(logsDir, name)
}

func closedErrChan(err error) chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}
