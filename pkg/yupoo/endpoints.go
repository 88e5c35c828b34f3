package yupoo

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ImageHost is the CDN host that serves real product photos. Image URLs on
// any other host are discarded by the resolver.
const ImageHost = "photo.yupoo.com"

var categoryIDPattern = regexp.MustCompile(`/categories/(\d+)`)

// CategoryID extracts the numeric category id from a category URL. Falls
// back to the last path segment when the URL does not match the usual
// /categories/<id> shape.
func CategoryID(rawURL string) string {
	if m := categoryIDPattern.FindStringSubmatch(rawURL); m != nil {
		return m[1]
	}
	trimmed := strings.TrimRight(rawURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// PageURL returns the listing URL for the given page number, following the
// site's ?page=N pagination convention.
func PageURL(baseURL string, page int) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Sprintf("%s?page=%d", baseURL, page)
	}
	q := u.Query()
	q.Set("page", fmt.Sprintf("%d", page))
	u.RawQuery = q.Encode()
	return u.String()
}

// Owner derives the shop owner identifier from the URL's subdomain,
// e.g. "wholesale4shoesbags" from wholesale4shoesbags.x.yupoo.com.
func Owner(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid category url: %w", err)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("category url has no host: %s", rawURL)
	}
	return strings.Split(host, ".")[0], nil
}

// ParentDomain returns the wildcard parent domain the auth cookie is scoped
// to, so one unlock applies to every shop subdomain. For a.x.yupoo.com that
// is x.yupoo.com; single-label hosts are returned unchanged.
func ParentDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return host
	}
	return strings.Join(labels[1:], ".")
}

// AuthURL builds the password-check endpoint for a protected shop
func AuthURL(categoryURL, owner, password string) (string, error) {
	u, err := url.Parse(categoryURL)
	if err != nil {
		return "", fmt.Errorf("invalid category url: %w", err)
	}
	return fmt.Sprintf("%s://%s/api/web/users/%s?password=%s",
		u.Scheme, u.Host, url.PathEscape(owner), url.QueryEscape(password)), nil
}
