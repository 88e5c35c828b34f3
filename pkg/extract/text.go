package extract

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// uiLiterals are navigation and chrome strings that are never product or
// category names, in the site's two display languages.
var uiLiterals = []string{
	"登录", "注册", "Home", "album", "All categories",
	"Yupoo", "search", "QR code", "简体中文", "english",
}

// languageNames identify language-switcher links in the category chrome
var languageNames = []string{
	"english", "简体中文", "繁體中文", "español", "portugues",
	"français", "deutsch", "русский",
}

// shortNumberPattern matches bare 1-2 digit numbers, which in listing
// containers are photo-count badges rather than names.
var shortNumberPattern = regexp.MustCompile(`^\d{1,2}$`)

// isUILiteral matches Latin entries case-insensitively and everything else
// exactly, mirroring the site's mixed-script chrome.
func isUILiteral(s string) bool {
	for _, lit := range uiLiterals {
		if isLatin(lit) {
			if strings.EqualFold(s, lit) {
				return true
			}
		} else if s == lit {
			return true
		}
	}
	return false
}

func isLanguageName(s string) bool {
	for _, name := range languageNames {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

func isLatin(s string) bool {
	for _, r := range s {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// textSegments returns the non-empty, trimmed text nodes under a selection
// in document order. Listing containers conventionally yield
// ["<photo count>", "<product name>", ...].
func textSegments(s *goquery.Selection) []string {
	var segments []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				segments = append(segments, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return segments
}
