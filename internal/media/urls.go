package media

import (
	nurl "net/url"
	"path"
	"regexp"
	"strings"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".avif": true,
}

// NormalizeURL makes an image or video reference absolute. Protocol-relative
// URLs get https, root-relative ones the item's origin, anything else is
// resolved against the item link. data: URIs and unusable input yield "".
func NormalizeURL(raw, itemLink string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "", strings.HasPrefix(strings.ToLower(raw), "data:"):
		return ""
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	}

	ref, err := nurl.Parse(raw)
	if err != nil {
		return ""
	}
	if ref.IsAbs() {
		if ref.Scheme != "http" && ref.Scheme != "https" {
			return ""
		}
		return raw
	}

	base, err := nurl.Parse(itemLink)
	if err != nil || !base.IsAbs() {
		return ""
	}
	if strings.HasPrefix(raw, "/") {
		return base.Scheme + "://" + base.Host + raw
	}
	return base.ResolveReference(ref).String()
}

// hasImageExt reports whether the URL path ends in a known image extension.
func hasImageExt(u string) bool {
	parsed, err := nurl.Parse(u)
	if err != nil {
		return false
	}
	return imageExts[strings.ToLower(path.Ext(parsed.Path))]
}

// isRealMedia filters page images down to uploaded content, skipping icons,
// logos and layout sprites.
func isRealMedia(u string) bool {
	parsed, err := nurl.Parse(u)
	if err != nil {
		return false
	}
	p := strings.ToLower(parsed.Path)
	return strings.Contains(p, "upload") || strings.Contains(p, "/media/")
}

var youtubeEmbedRe = regexp.MustCompile(`youtube(?:-nocookie)?\.com/embed/([A-Za-z0-9_-]{11})`)

// YouTubeWatchURL turns an embed URL into a watch URL. Other URLs yield "".
func YouTubeWatchURL(embed string) string {
	m := youtubeEmbedRe.FindStringSubmatch(embed)
	if m == nil {
		return ""
	}
	return "https://www.youtube.com/watch?v=" + m[1]
}
