package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"yupoocrawl/internal/orchestrator"
)

// runCmd launches the multi-category orchestrator
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Crawl every configured category, one worker process each",
	Long: `Run one isolated worker process per category from the configuration file.

Each worker writes its output to its own file under the logs directory,
named <category>_<id>.log. Workers are independent: one failing category
never affects the others. Ctrl-C terminates all workers gracefully,
escalating to kill after the grace period.`,
	Example: `  # Crawl all categories from .yupoocrawl.yaml
  yupoocrawl run

  # With an explicit config file
  yupoocrawl run --config shops.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrchestrator()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runOrchestrator() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if len(cfg.Categories) == 0 {
		return fmt.Errorf("no categories configured; add a categories list to the config file")
	}

	log := initLogger(cfg)
	log.WithFields(map[string]interface{}{
		"version":    version,
		"categories": len(cfg.Categories),
	}).Info("orchestrator starting")

	ctx, stop := signal.NotifyContext(cmdContext(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	statuses, err := orchestrator.New(cfg, configFile, log).Run(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, s := range statuses {
		if s.ExitCode != 0 || s.Err != nil {
			failed++
		}
	}
	log.WithFields(map[string]interface{}{
		"workers": len(statuses),
		"failed":  failed,
	}).Info("all workers finished")

	if failed > 0 {
		os.Exit(1)
	}
	return nil
}
