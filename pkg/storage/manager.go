// Package storage lays out and inspects the on-disk download tree:
//
//	<base>/<category>/<page>/<product>/<image_id>.<ext>
//
// Directories are created lazily by the downloader at first write, so a
// category that fails before its first image leaves no empty tree behind.
package storage

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Manager resolves paths inside one category's download tree
type Manager struct {
	categoryDir string
}

// NewManager binds a manager to a category directory without creating it
func NewManager(baseDir, categoryName string) *Manager {
	return &Manager{
		categoryDir: filepath.Join(baseDir, SanitizeName(categoryName)),
	}
}

// CategoryDir returns the category's root directory
func (m *Manager) CategoryDir() string {
	return m.categoryDir
}

// ProductDir returns the directory for a product first seen on the given
// page: one directory level per page number, one per product.
func (m *Manager) ProductDir(page int, productName string) string {
	return filepath.Join(m.categoryDir, strconv.Itoa(page), SanitizeName(productName))
}

// SanitizeName makes a scraped name safe as a single path component: path
// separators become hyphens, NUL bytes are dropped, and the result is
// capped well under common filename limits.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "/", "-")
	name = strings.ReplaceAll(name, "\\", "-")
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.TrimSpace(name)

	runes := []rune(name)
	if len(runes) > 250 {
		name = string(runes[:250])
	}
	return name
}

// ImagePath returns the destination file for an image inside a product dir
func ImagePath(dir, imageID, ext string) string {
	return filepath.Join(dir, imageID+ext)
}

// extensionVariants returns the extensions under which an already-downloaded
// image may exist. jpg and jpeg are the same image from different crawl
// runs and must count as one.
func extensionVariants(ext string) []string {
	switch strings.ToLower(ext) {
	case ".jpg":
		return []string{".jpg", ".jpeg"}
	case ".jpeg":
		return []string{".jpeg", ".jpg"}
	default:
		return []string{ext}
	}
}

// HasImage reports whether an image is already materialized: a non-empty
// file under any equivalent extension.
func HasImage(dir, imageID, ext string) bool {
	for _, variant := range extensionVariants(ext) {
		if fileNonEmpty(filepath.Join(dir, imageID+variant)) {
			return true
		}
	}
	return false
}

// imageExtensions are the file types a product directory may contain
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// ExistingImageIDs returns the ids of images already materialized in a
// directory, keyed for O(1) membership checks during consolidation.
func ExistingImageIDs(dir string) map[string]struct{} {
	ids := make(map[string]struct{})
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ids
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := imageExtensions[ext]; !ok {
			continue
		}
		if fileNonEmpty(filepath.Join(dir, name)) {
			ids[strings.TrimSuffix(name, filepath.Ext(name))] = struct{}{}
		}
	}
	return ids
}

// DirNonEmpty reports whether a directory exists and holds at least one
// entry.
func DirNonEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

func fileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}
