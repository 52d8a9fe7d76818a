package imageproc

import "testing"

func TestDetectFormatPrefersContentType(t *testing.T) {
	if got := DetectFormat("image/png", "", "https://example.test/a.jpg"); got != "png" {
		t.Fatalf("expected content-type to win over the URL extension, got %q", got)
	}
}

func TestDetectFormatFallsBackToSniffedType(t *testing.T) {
	if got := DetectFormat("application/octet-stream", "image/webp", "https://example.test/a"); got != "webp" {
		t.Fatalf("expected sniffed type fallback, got %q", got)
	}
}

func TestDetectFormatFallsBackToURLExtension(t *testing.T) {
	if got := DetectFormat("", "", "https://example.test/gallery/photo.JPG?size=large"); got != "jpeg" {
		t.Fatalf("expected URL extension fallback (case-insensitive, query stripped), got %q", got)
	}
}

func TestDetectFormatUnresolvable(t *testing.T) {
	if got := DetectFormat("", "", "https://example.test/no-extension"); got != "" {
		t.Fatalf("expected empty format when nothing resolves, got %q", got)
	}
}
