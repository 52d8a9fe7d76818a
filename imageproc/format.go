// Package imageproc implements component C6: format/dimension sniffing,
// content-hash dedup, atomic staging, and per-device fan-out. Dimension
// detection is deliberately hand-rolled rather than pulled from an image
// decoding library — see DESIGN.md for why "minimal parsers" (spec §4.6) is
// the better-grounded reading given what the retrieval pack actually offers.
package imageproc

import (
	"mime"
	"net/http"
	"path"
	"strings"
)

// DetectFormat resolves a file format tag from an HTTP Content-Type header,
// falling back to the URL's extension when the content type is missing or
// generic (octet-stream), per spec §4.6.
func DetectFormat(contentType, sniffed, url string) string {
	if f := formatFromMIME(contentType); f != "" {
		return f
	}
	if f := formatFromMIME(sniffed); f != "" {
		return f
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(urlPath(url)), "."))
	switch ext {
	case "jpg", "jpeg":
		return "jpeg"
	case "png", "gif", "webp":
		return ext
	}
	return ""
}

func urlPath(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return u
}

func formatFromMIME(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	switch mediaType {
	case "image/jpeg", "image/jpg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	case "image/webp":
		return "webp"
	case "application/octet-stream", "":
		return ""
	}
	return ""
}

// SniffContentType wraps net/http.DetectContentType, used as a fallback when
// the upstream response's own Content-Type header is absent or generic.
func SniffContentType(data []byte) string {
	return http.DetectContentType(data)
}
