package yupoo

import (
	"context"
	"fmt"
	"strings"
)

// CanonicalImageExt asks the CDN which extension actually serves an image,
// probing .jpeg first (the CDN's usual canonical form) and then .jpg. When
// neither probe yields an image response it reports .jpeg so cleanup keeps
// the more specific name.
func (c *Client) CanonicalImageExt(ctx context.Context, owner, imageID string) string {
	for _, ext := range []string{".jpeg", ".jpg"} {
		u := fmt.Sprintf("https://%s/%s/%s/large%s", ImageHost, owner, imageID, ext)
		resp, err := c.Head(ctx, u)
		if err != nil {
			continue
		}
		contentType := resp.Header.Get("Content-Type")
		resp.Body.Close()
		if resp.StatusCode == 200 && strings.HasPrefix(contentType, "image/") {
			return ext
		}
	}
	return ".jpeg"
}
