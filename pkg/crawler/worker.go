// Package crawler drives a single category end to end: authentication,
// page-by-page product discovery, image resolution and download, and
// cross-page consolidation of reappearing products.
package crawler

import (
	"context"
	"time"

	"yupoocrawl/pkg/config"
	"yupoocrawl/pkg/downloader"
	errs "yupoocrawl/pkg/errors"
	"yupoocrawl/pkg/extract"
	"yupoocrawl/pkg/logger"
	"yupoocrawl/pkg/storage"
	"yupoocrawl/pkg/yupoo"
)

// indexEntry is where a product name was first materialized
type indexEntry struct {
	page int
	dir  string
}

// Worker crawls one category. Workers never share state; each one owns its
// session client, downloader and product index.
type Worker struct {
	job    config.CategoryJob
	client *yupoo.Client
	store  *storage.Manager
	dl     *downloader.Downloader
	logger logger.Logger

	// index maps product name -> first materialization, kept only for
	// products whose directory holds at least one image.
	index map[string]indexEntry

	baseDir      string
	categoryName string

	// reauthFailed latches once a mid-crawl re-authentication fails;
	// further locked pages are then skipped without another attempt.
	reauthFailed bool
}

// New creates a worker for one category job
func New(job config.CategoryJob, cfg *config.Config, log logger.Logger) *Worker {
	if log == nil {
		log = logger.GetLogger()
	}

	client := yupoo.NewClient(cfg.Crawl.RequestTimeout, cfg.Crawl.RequestDelay, log)
	client.SetReferer(job.URL)

	dl := downloader.New(client, downloader.Options{
		ImageDelay: cfg.Crawl.ImageDelay,
		MaxRetries: cfg.Crawl.MaxRetries,
		Timeout:    cfg.Crawl.DownloadTimeout,
	}, log)

	return &Worker{
		job:     job,
		client:  client,
		dl:      dl,
		logger:  log,
		index:   make(map[string]indexEntry),
		baseDir: cfg.Output.BaseDirectory,
	}
}

// Run crawls the configured page range and returns the run summary. An
// authentication failure is terminal for the category; every other failure
// is contained to its page or product.
func (w *Worker) Run(ctx context.Context) *Summary {
	summary := &Summary{
		Category:  w.job.Name,
		URL:       w.job.URL,
		StartedAt: time.Now(),
	}
	defer func() {
		summary.FinishedAt = time.Now()
		summary.Category = w.categoryName
		summary.log(w.logger)
	}()

	if err := w.client.EnsureAuthenticated(ctx, w.job.URL, w.job.Password); err != nil {
		w.logger.ErrorWithFields("authentication failed, aborting category", map[string]interface{}{
			"url":   w.job.URL,
			"error": err.Error(),
		})
		summary.AuthFailed = true
		w.categoryName = w.resolveCategoryName(ctx)
		return summary
	}

	w.categoryName = w.resolveCategoryName(ctx)
	w.store = storage.NewManager(w.baseDir, w.categoryName)

	w.logger.InfoWithFields("starting crawl", map[string]interface{}{
		"category":   w.categoryName,
		"start_page": w.job.StartPage,
		"end_page":   w.job.EndPage,
	})

	for page := w.job.StartPage; page <= w.job.EndPage; page++ {
		if ctx.Err() != nil {
			w.logger.Warn("crawl cancelled")
			break
		}
		w.processPage(ctx, page, summary)
	}

	return summary
}

// resolveCategoryName resolves the display name: configured override, then
// the listing page's own labels, then the synthetic id-based fallback. A
// failed probe is not fatal, the fallback always names the category.
func (w *Worker) resolveCategoryName(ctx context.Context) string {
	if w.job.Name != "" {
		return w.job.Name
	}

	doc, err := w.client.FetchListingPage(ctx, w.job.URL, w.job.StartPage)
	if err == nil {
		if name, ok := extract.ResolveCategoryName(doc, w.job.URL); ok {
			return name
		}
	} else {
		w.logger.WarnWithFields("category name probe failed, using fallback", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return extract.FallbackCategoryName(w.job.URL)
}

// processPage crawls one listing page. A page that cannot be fetched or
// that comes back locked is counted and skipped; the crawl moves on.
func (w *Worker) processPage(ctx context.Context, page int, summary *Summary) {
	doc, err := w.client.FetchListingPage(ctx, w.job.URL, page)
	if err != nil {
		w.logger.ErrorWithFields("failed to fetch page, skipping", map[string]interface{}{
			"page":  page,
			"error": err.Error(),
		})
		summary.PagesFailed++
		return
	}

	// A session can expire mid-crawl. Every locked page gets one
	// re-authentication attempt; only a failed attempt proves the password
	// dead and stops further tries.
	if yupoo.IsLocked(doc) {
		if w.reauthFailed || w.job.Password == "" {
			w.logger.ErrorWithFields("page is locked and re-authentication is exhausted, skipping", map[string]interface{}{
				"page": page,
			})
			summary.PagesFailed++
			return
		}
		w.logger.WarnWithFields("session lock reappeared mid-crawl, re-authenticating", map[string]interface{}{
			"page": page,
		})
		if err := w.client.EnsureAuthenticated(ctx, w.job.URL, w.job.Password); err != nil {
			w.reauthFailed = true
			w.logger.ErrorWithFields("re-authentication failed, skipping page", map[string]interface{}{
				"page":  page,
				"error": err.Error(),
			})
			summary.PagesFailed++
			return
		}
		doc, err = w.client.FetchListingPage(ctx, w.job.URL, page)
		if err != nil {
			summary.PagesFailed++
			return
		}
	}

	products, dupCount, duplicates := extract.ExtractProducts(doc, w.job.URL)
	summary.SamePageDuplicates = append(summary.SamePageDuplicates, duplicates...)

	w.logger.InfoWithFields("page parsed", map[string]interface{}{
		"page":       page,
		"products":   len(products),
		"duplicates": dupCount,
	})

	for _, product := range products {
		if ctx.Err() != nil {
			return
		}
		summary.ProductsAttempted++
		w.processProduct(ctx, page, product, summary)
	}
}

// processProduct downloads one product's images, or consolidates them into
// an earlier page's directory when the same name was already materialized.
func (w *Worker) processProduct(ctx context.Context, page int, product extract.ProductRecord, summary *Summary) {
	if prev, ok := w.index[product.Name]; ok && prev.page < page && storage.DirNonEmpty(prev.dir) {
		w.consolidate(ctx, page, product, prev, summary)
		return
	}

	images, err := w.fetchImages(ctx, product)
	if err != nil {
		w.logger.ErrorWithFields("failed to resolve product images", map[string]interface{}{
			"product": product.Name,
			"error":   err.Error(),
		})
		summary.ProductsFailed++
		return
	}

	// A product with no downloadable images is complete, not failed, but
	// leaves no directory and is not indexed.
	if len(images) == 0 {
		w.logger.WarnWithFields("product has no downloadable images", map[string]interface{}{
			"product": product.Name,
		})
		summary.ProductsSucceeded++
		return
	}

	dir := w.store.ProductDir(page, product.Name)
	materialized := 0
	for _, img := range images {
		wrote, err := w.dl.Download(ctx, img.URL, storage.ImagePath(dir, img.ID, img.Ext))
		if err != nil {
			w.logger.ErrorWithFields("image download failed", map[string]interface{}{
				"product":  product.Name,
				"image_id": img.ID,
				"error":    err.Error(),
			})
			continue
		}
		if wrote {
			summary.ImagesDownloaded++
		}
		materialized++
	}

	if materialized > 0 {
		w.index[product.Name] = indexEntry{page: page, dir: dir}
		summary.ProductsSucceeded++
	} else {
		summary.ProductsFailed++
	}
}

// consolidate adds a reappearing product's new images into the directory
// from its first sighting, skipping ids already on disk.
func (w *Worker) consolidate(ctx context.Context, page int, product extract.ProductRecord, prev indexEntry, summary *Summary) {
	record := CrossPageDuplicate{
		Name:         product.Name,
		CurrentPage:  page,
		PreviousPage: prev.page,
	}

	images, err := w.fetchImages(ctx, product)
	if err != nil {
		w.logger.WarnWithFields("failed to re-resolve duplicate product, keeping existing images", map[string]interface{}{
			"product": product.Name,
			"error":   err.Error(),
		})
		summary.CrossPageDuplicates = append(summary.CrossPageDuplicates, record)
		return
	}

	existing := storage.ExistingImageIDs(prev.dir)
	for _, img := range images {
		if _, ok := existing[img.ID]; ok {
			continue
		}
		wrote, err := w.dl.Download(ctx, img.URL, storage.ImagePath(prev.dir, img.ID, img.Ext))
		if err != nil {
			continue
		}
		if wrote {
			summary.ImagesDownloaded++
			record.ImagesAdded++
		}
	}

	summary.CrossPageDuplicates = append(summary.CrossPageDuplicates, record)
}

// ProbeCategoryName resolves a category's display name without crawling,
// used by the orchestrator to name worker log files before launch. The
// override wins; otherwise a passworded category is unlocked first so the
// probe sees the listing rather than the lock page, and the id-based
// fallback covers every failure.
func ProbeCategoryName(ctx context.Context, job config.CategoryJob, cfg *config.Config, log logger.Logger) string {
	if job.Name != "" {
		return job.Name
	}

	w := New(job, cfg, log)
	if job.Password != "" {
		if err := w.client.EnsureAuthenticated(ctx, job.URL, job.Password); err != nil {
			w.logger.WarnWithFields("name probe could not authenticate, using fallback", map[string]interface{}{
				"url":   job.URL,
				"error": err.Error(),
			})
			return extract.FallbackCategoryName(job.URL)
		}
	}
	return w.resolveCategoryName(ctx)
}

// fetchImages loads a product detail page and resolves its image set
func (w *Worker) fetchImages(ctx context.Context, product extract.ProductRecord) ([]extract.ImageRecord, error) {
	doc, err := w.client.FetchDocument(ctx, product.DetailURL)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeParsing, err, "failed to load detail page for %s", product.Name)
	}
	return extract.ExtractImages(doc), nil
}
