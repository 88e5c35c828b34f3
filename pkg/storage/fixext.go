package storage

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DuplicatePair is the same image materialized twice under sibling
// extensions, a leftover from crawl runs that resolved different CDN
// variants of one photo.
type DuplicatePair struct {
	JPG  string
	JPEG string
}

// FindDuplicateExtensionPairs walks a download tree and collects every
// image id that exists as both <id>.jpg and <id>.jpeg in the same
// directory.
func FindDuplicateExtensionPairs(root string) ([]DuplicatePair, error) {
	var pairs []DuplicatePair

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".jpg") {
			return nil
		}
		sibling := strings.TrimSuffix(path, filepath.Ext(path)) + ".jpeg"
		if fileNonEmpty(sibling) {
			pairs = append(pairs, DuplicatePair{JPG: path, JPEG: sibling})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

// ResolvePair removes the redundant copy of a duplicate pair, keeping
// whichever extension matches the canonical one. In dry-run mode the
// removal target is reported but left in place.
func ResolvePair(pair DuplicatePair, canonicalExt string, dryRun bool) (removed string, err error) {
	victim := pair.JPG
	if strings.EqualFold(canonicalExt, ".jpg") {
		victim = pair.JPEG
	}
	if dryRun {
		return victim, nil
	}
	if err := os.Remove(victim); err != nil {
		return "", err
	}
	return victim, nil
}
