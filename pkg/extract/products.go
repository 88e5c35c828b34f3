// Package extract implements the heuristic parsing of catalog pages:
// product discovery on listing pages, category name resolution, and image
// URL resolution on detail pages. The site's markup is unstable, so every
// extraction is an ordered chain of fallbacks.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ProductRecord is one listing entry pointing at a product detail page.
// AlbumID is unique within a page; Name is the unit of cross-page identity.
type ProductRecord struct {
	AlbumID   string
	Name      string
	DetailURL string
}

// DuplicateInfo records a listing entry dropped because an earlier entry on
// the same page resolved to the same name.
type DuplicateInfo struct {
	Name       string
	DroppedURL string
	KeptURL    string
}

var albumIDPattern = regexp.MustCompile(`/albums/(\d+)`)

// ExtractProducts parses a listing page into a deduplicated set of product
// records. Dedup is two-tier: album id first (O(1), before any name work),
// then resolved name — one folder per distinct name per page.
func ExtractProducts(doc *goquery.Document, baseURL string) ([]ProductRecord, int, []DuplicateInfo) {
	base, _ := url.Parse(baseURL)

	seenIDs := make(map[string]struct{})
	seenURLs := make(map[string]struct{})
	var products []ProductRecord

	doc.Find("a[href*='/albums/']").Each(func(_ int, link *goquery.Selection) {
		href := link.AttrOr("href", "")
		if href == "" {
			return
		}

		// Product links carry ?uid= / &isSubCate= parameters; a bare album
		// link inside nav chrome is navigation.
		if !strings.Contains(href, "?uid=") && !strings.Contains(href, "&isSubCate=") {
			if link.ParentsFiltered("nav, header, footer").Length() > 0 {
				return
			}
		}

		m := albumIDPattern.FindStringSubmatch(href)
		if m == nil {
			return
		}
		albumID := m[1]
		if _, ok := seenIDs[albumID]; ok {
			return
		}

		fullURL := resolveURL(base, href)
		if fullURL == "" {
			return
		}
		if _, ok := seenURLs[fullURL]; ok {
			return
		}

		name := resolveProductName(link)
		if name == "" {
			return
		}

		seenIDs[albumID] = struct{}{}
		seenURLs[fullURL] = struct{}{}
		products = append(products, ProductRecord{
			AlbumID:   albumID,
			Name:      name,
			DetailURL: fullURL,
		})
	})

	// Second pass: the first product with a given name wins, later ones on
	// the same page are recorded and excluded.
	firstByName := make(map[string]string)
	unique := products[:0]
	var duplicates []DuplicateInfo
	for _, p := range products {
		if keptURL, ok := firstByName[p.Name]; ok {
			duplicates = append(duplicates, DuplicateInfo{
				Name:       p.Name,
				DroppedURL: p.DetailURL,
				KeptURL:    keptURL,
			})
			continue
		}
		firstByName[p.Name] = p.DetailURL
		unique = append(unique, p)
	}

	return unique, len(duplicates), duplicates
}

// resolveProductName extracts a product's display name from the structure
// around its link. The link text itself is usually just the photo count, so
// the name lives in the nearest container, in priority order:
//
//  1. second text segment of the container (the first is the count badge)
//  2. a single segment, unless it is a bare 1-2 digit number
//  3. reverse scan for the first segment that is not chrome, a URL, or a
//     short number
//  4. the link's own text as a last resort
//
// Tier 1 claims the second segment unconditionally; when that segment is
// chrome the final filter rejects the name and the entry is dropped rather
// than falling through to a later tier. Pure numeric names longer than two
// digits are valid: real product names are frequently model codes.
func resolveProductName(link *goquery.Selection) string {
	var name string

	container := link.Closest("div, article, section, li")
	if container.Length() > 0 {
		parts := textSegments(container)
		if len(parts) >= 2 {
			name = parts[1]
		} else if len(parts) == 1 && !shortNumberPattern.MatchString(parts[0]) {
			name = parts[0]
		}

		if name == "" {
			for i := len(parts) - 1; i >= 0; i-- {
				if validNameSegment(parts[i]) {
					name = parts[i]
					break
				}
			}
		}
	}

	if name == "" {
		linkText := strings.TrimSpace(link.Text())
		if linkText != "" && !shortNumberPattern.MatchString(linkText) {
			name = linkText
		}
	}

	name = strings.TrimSpace(name)
	if !validNameSegment(name) {
		return ""
	}
	return name
}

// validNameSegment rejects chrome literals, raw URLs and bare photo counts
func validNameSegment(s string) bool {
	return s != "" && !isUILiteral(s) && !strings.HasPrefix(s, "http") &&
		!shortNumberPattern.MatchString(s)
}

// resolveURL builds an absolute detail URL. Rooted paths resolve against
// the listing's base; anything that is neither rooted nor absolute is
// dropped.
func resolveURL(base *url.URL, href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	if strings.HasPrefix(href, "/") && base != nil {
		ref, err := url.Parse(href)
		if err != nil {
			return ""
		}
		return base.ResolveReference(ref).String()
	}
	return ""
}
