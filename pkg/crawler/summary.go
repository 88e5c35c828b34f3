package crawler

import (
	"time"

	"yupoocrawl/pkg/extract"
	"yupoocrawl/pkg/logger"
)

// CrossPageDuplicate records a product name reappearing on a later page;
// its images were consolidated into the directory from the first sighting.
type CrossPageDuplicate struct {
	Name         string
	CurrentPage  int
	PreviousPage int
	ImagesAdded  int
}

// Summary is the per-category run report, emitted once at the end of a
// worker's log.
type Summary struct {
	Category string
	URL      string

	ProductsAttempted int
	ProductsSucceeded int
	ProductsFailed    int
	PagesFailed       int
	ImagesDownloaded  int

	SamePageDuplicates  []extract.DuplicateInfo
	CrossPageDuplicates []CrossPageDuplicate

	StartedAt  time.Time
	FinishedAt time.Time

	// AuthFailed marks a run that never crawled because the category's
	// password was rejected or the lock never cleared.
	AuthFailed bool
}

// log writes the itemized end-of-run report
func (s *Summary) log(log logger.Logger) {
	log.InfoWithFields("crawl finished", map[string]interface{}{
		"category":           s.Category,
		"products_attempted": s.ProductsAttempted,
		"products_succeeded": s.ProductsSucceeded,
		"products_failed":    s.ProductsFailed,
		"pages_failed":       s.PagesFailed,
		"images_downloaded":  s.ImagesDownloaded,
		"duration":           s.FinishedAt.Sub(s.StartedAt).Round(time.Second).String(),
	})

	for _, dup := range s.SamePageDuplicates {
		log.InfoWithFields("same-page duplicate skipped", map[string]interface{}{
			"name":    dup.Name,
			"kept":    dup.KeptURL,
			"dropped": dup.DroppedURL,
		})
	}
	for _, dup := range s.CrossPageDuplicates {
		log.InfoWithFields("cross-page duplicate consolidated", map[string]interface{}{
			"name":          dup.Name,
			"first_seen_on": dup.PreviousPage,
			"reappeared_on": dup.CurrentPage,
			"images_added":  dup.ImagesAdded,
		})
	}
}
