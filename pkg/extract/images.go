package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"yupoocrawl/pkg/yupoo"
)

// ImageRecord is one product photo. ID is the opaque identifier embedded in
// the CDN path (the segment before the size token); it is stable across
// pages and re-crawls and is the dedup/resume key everywhere.
type ImageRecord struct {
	ID  string
	URL string
	Ext string
}

var bgImagePattern = regexp.MustCompile(`url\(["']?(https?://[^"')]+|//[^"')]+)["']?\)`)

// chromePathTokens mark non-product assets (logos, site chrome) that the
// catch-all tier must skip.
var chromePathTokens = []string{"/static/", "/website/", "/icons/"}

// ExtractImages parses a product detail page into an ordered, deduplicated
// list of image records. Three overlapping sources are merged: the main
// gallery viewer, CSS background images, and a catch-all over every img
// element (the only tier that filters site chrome).
func ExtractImages(doc *goquery.Document) []ImageRecord {
	var records []ImageRecord
	seen := make(map[string]struct{})

	add := func(raw string, catchAll bool) {
		normalized := NormalizeImageURL(raw)
		if normalized == "" {
			return
		}
		if catchAll && isChromeAsset(normalized) {
			return
		}
		if _, ok := seen[normalized]; ok {
			return
		}
		rec, ok := ParseImageURL(normalized)
		if !ok {
			return
		}
		seen[normalized] = struct{}{}
		records = append(records, rec)
	}

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		class := img.AttrOr("class", "")
		if strings.Contains(class, "image__img") || strings.Contains(class, "showalbum__bigimg") {
			add(imgSource(img), false)
		}
	})

	doc.Find(`[style*="background-image"]`).Each(func(_ int, el *goquery.Selection) {
		if m := bgImagePattern.FindStringSubmatch(el.AttrOr("style", "")); m != nil {
			add(m[1], false)
		}
	})

	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		add(imgSource(img), true)
	})

	return records
}

// imgSource returns the first populated source attribute; lazy-loaded
// images carry the real URL in data-src or data-original.
func imgSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-original"} {
		if v := img.AttrOr(attr, ""); v != "" {
			return v
		}
	}
	return ""
}

// NormalizeImageURL canonicalizes a candidate image URL: protocol-relative
// URLs are upgraded to https, only the image CDN host is accepted, query
// strings are stripped, and the low-resolution path token is rewritten to
// the high-resolution one. Returns "" for rejected candidates.
func NormalizeImageURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		raw = "https:" + raw
	}
	if !strings.HasPrefix(raw, "http") {
		return ""
	}

	u, err := url.Parse(raw)
	if err != nil || u.Hostname() != yupoo.ImageHost {
		return ""
	}

	if idx := strings.Index(raw, "?"); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.Replace(raw, "/small.", "/large.", 1)
}

// ParseImageURL derives the image identity from a normalized CDN URL of
// the shape .../owner/<image_id>/<size>.<ext>.
func ParseImageURL(normalized string) (ImageRecord, bool) {
	parts := strings.Split(strings.TrimRight(normalized, "/"), "/")
	if len(parts) < 2 {
		return ImageRecord{}, false
	}

	id := parts[len(parts)-2]
	file := parts[len(parts)-1]
	if id == "" {
		return ImageRecord{}, false
	}

	ext := ".jpg"
	if idx := strings.LastIndex(file, "."); idx >= 0 && idx < len(file)-1 {
		ext = file[idx:]
	}

	return ImageRecord{ID: id, URL: normalized, Ext: ext}, true
}

func isChromeAsset(u string) bool {
	for _, token := range chromePathTokens {
		if strings.Contains(u, token) {
			return true
		}
	}
	return false
}
