package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"yupoocrawl/pkg/yupoo"
)

// categoryHeaderPattern matches the page header "albums under category
// '<name>'" in the site's own phrasing, the most reliable source.
var categoryHeaderPattern = regexp.MustCompile(`分类["']([^"']+)["']下的相册`)

// seriesPattern extracts the run of text adjacent to the category-suffix
// marker 系列 inside a heading.
var seriesPattern = regexp.MustCompile(`(\S+系列)`)

// categoryResolver is one strategy for naming a category; empty result
// means "try the next one".
type categoryResolver func(doc *goquery.Document, categoryID string) string

var categoryResolvers = []categoryResolver{
	resolveFromHeaderText,
	resolveFromBreadcrumbLinks,
	resolveFromSeriesHeadings,
	resolveFromSidebarLinks,
	resolveFromBreadcrumbContainers,
}

// ResolveCategoryName derives a human-readable category label from a
// listing page. The second return is false when every strategy failed;
// callers then fall back to "Category_<id>".
func ResolveCategoryName(doc *goquery.Document, categoryURL string) (string, bool) {
	id := yupoo.CategoryID(categoryURL)
	for _, resolve := range categoryResolvers {
		if name := resolve(doc, id); name != "" {
			return name, true
		}
	}
	return "", false
}

// FallbackCategoryName is used when no strategy produced a label
func FallbackCategoryName(categoryURL string) string {
	return "Category_" + yupoo.CategoryID(categoryURL)
}

func resolveFromHeaderText(doc *goquery.Document, _ string) string {
	for _, text := range []string{doc.Text(), doc.Find("title").Text()} {
		if m := categoryHeaderPattern.FindStringSubmatch(text); m != nil {
			name := strings.TrimSpace(m[1])
			if name != "" && !isUILiteral(name) && !isLanguageName(name) {
				return name
			}
		}
	}
	return ""
}

// resolveFromBreadcrumbLinks inspects links pointing at this exact
// category, excluding language-switcher links, which carry a page query
// parameter or a language name.
func resolveFromBreadcrumbLinks(doc *goquery.Document, categoryID string) string {
	var name string
	sel := fmt.Sprintf(`a[href*="/categories/%s"]`, categoryID)
	doc.Find(sel).EachWithBreak(func(_ int, link *goquery.Selection) bool {
		text := strings.TrimSpace(link.Text())
		href := link.AttrOr("href", "")
		if text == "" || isLanguageName(text) || isUILiteral(text) ||
			strings.Contains(href, "?page=") || len([]rune(text)) < 3 {
			return true
		}
		name = text
		return false
	})
	return name
}

func resolveFromSeriesHeadings(doc *goquery.Document, _ string) string {
	var name string
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, heading *goquery.Selection) bool {
		text := strings.TrimSpace(heading.Text())
		if !strings.Contains(text, "系列") {
			return true
		}
		m := seriesPattern.FindStringSubmatch(text)
		if m == nil || isUILiteral(m[1]) {
			return true
		}
		name = m[1]
		return false
	})
	return name
}

// resolveFromSidebarLinks accepts any link to this category id without a
// page query parameter, the shape of the sidebar category menu.
func resolveFromSidebarLinks(doc *goquery.Document, categoryID string) string {
	var name string
	marker := "/categories/" + categoryID
	doc.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		href := link.AttrOr("href", "")
		if !strings.Contains(href, marker) || strings.Contains(href, "?page=") {
			return true
		}
		text := strings.TrimSpace(link.Text())
		if text == "" || isLanguageName(text) || isUILiteral(text) || len([]rune(text)) <= 2 {
			return true
		}
		name = text
		return false
	})
	return name
}

// resolveFromBreadcrumbContainers is the last resort: containers marked as
// breadcrumbs by class, holding a category link with the series marker.
func resolveFromBreadcrumbContainers(doc *goquery.Document, _ string) string {
	var name string
	doc.Find("nav, ol, ul").EachWithBreak(func(_ int, container *goquery.Selection) bool {
		class := strings.ToLower(container.AttrOr("class", ""))
		if !strings.Contains(class, "breadcrumb") {
			return true
		}
		container.Find(`a[href*="/categories/"]`).EachWithBreak(func(_ int, link *goquery.Selection) bool {
			text := strings.TrimSpace(link.Text())
			if text == "" || isUILiteral(text) || !strings.Contains(text, "系列") {
				return true
			}
			name = text
			return false
		})
		return name == ""
	})
	return name
}
