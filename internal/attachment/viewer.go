// Package attachment decides how an attachment URL should be presented:
// images render inline, everything else opens through an external document
// viewer. Files are never downloaded or parsed locally.
package attachment

import (
	"net/url"
	"path"
	"strings"
)

// Viewer classifies attachment URLs and builds viewer links
type Viewer struct {
	docViewerURL string
	imageExts    map[string]bool
}

// NewViewer creates a viewer. docViewerURL is a format string with one %s
// slot for the escaped attachment URL.
func NewViewer(docViewerURL string, imageExtensions []string) *Viewer {
	exts := make(map[string]bool, len(imageExtensions))
	for _, ext := range imageExtensions {
		exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}
	return &Viewer{
		docViewerURL: docViewerURL,
		imageExts:    exts,
	}
}

// IsImage reports whether the URL points at an inline-renderable image.
// Only the path extension is considered; query strings and signatures on
// expiring attachment URLs are ignored.
func (v *Viewer) IsImage(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(parsed.Path)), ".")
	return v.imageExts[ext]
}

// OpenURL returns the URL to open for an attachment: the raw URL for
// images, the wrapped document-viewer URL for everything else
func (v *Viewer) OpenURL(rawURL string) string {
	if v.IsImage(rawURL) {
		return rawURL
	}
	return strings.Replace(v.docViewerURL, "%s", url.QueryEscape(rawURL), 1)
}
