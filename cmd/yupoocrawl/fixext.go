package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"yupoocrawl/pkg/storage"
	"yupoocrawl/pkg/yupoo"
)

var (
	// Fixext command flags
	fixextDir    string
	fixextOwner  string
	fixextDryRun bool
)

// fixextCmd cleans up images saved twice under .jpg and .jpeg
var fixextCmd = &cobra.Command{
	Use:   "fixext",
	Short: "Remove duplicate .jpg/.jpeg copies of downloaded images",
	Long: `Scan a download tree for images materialized under both .jpg and .jpeg,
ask the image CDN which extension is canonical, and delete the redundant
copy. Use --dry-run to see what would be removed.`,
	Example: `  yupoocrawl fixext --dir yupoo_downloads --owner shopname --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runFixext()
	},
}

func init() {
	rootCmd.AddCommand(fixextCmd)

	fixextCmd.Flags().StringVar(&fixextDir, "dir", "", "download tree root (required)")
	fixextCmd.Flags().StringVar(&fixextOwner, "owner", "", "shop owner for CDN probes (required)")
	fixextCmd.Flags().BoolVar(&fixextDryRun, "dry-run", false, "report removals without deleting")
	fixextCmd.MarkFlagRequired("dir")
	fixextCmd.MarkFlagRequired("owner")
}

func runFixext() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := initLogger(cfg)

	ctx, stop := signal.NotifyContext(cmdContext(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pairs, err := storage.FindDuplicateExtensionPairs(fixextDir)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	if len(pairs) == 0 {
		log.Info("no duplicate extension pairs found")
		return nil
	}
	log.WithField("pairs", len(pairs)).Info("duplicate extension pairs found")

	client := yupoo.NewClient(cfg.Crawl.RequestTimeout, cfg.Crawl.RequestDelay, log)

	removedCount := 0
	for _, pair := range pairs {
		if ctx.Err() != nil {
			break
		}

		base := filepath.Base(pair.JPG)
		imageID := strings.TrimSuffix(base, filepath.Ext(base))
		canonical := client.CanonicalImageExt(ctx, fixextOwner, imageID)

		removed, err := storage.ResolvePair(pair, canonical, fixextDryRun)
		if err != nil {
			log.ErrorWithFields("failed to remove duplicate", map[string]interface{}{
				"image_id": imageID,
				"error":    err.Error(),
			})
			continue
		}

		action := "removed"
		if fixextDryRun {
			action = "would remove"
		}
		log.InfoWithFields(action, map[string]interface{}{
			"image_id":  imageID,
			"file":      removed,
			"canonical": canonical,
		})
		removedCount++
	}

	log.WithFields(map[string]interface{}{
		"pairs":    len(pairs),
		"resolved": removedCount,
		"dry_run":  fixextDryRun,
	}).Info("fixext finished")
	return nil
}
