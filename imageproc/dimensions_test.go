package imageproc

import (
	"encoding/binary"
	"testing"
)

func buildPNG(w, h uint32) []byte {
	b := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	b = append(b, 0, 0, 0, 13) // length
	b = append(b, 'I', 'H', 'D', 'R')
	wb := make([]byte, 4)
	hb := make([]byte, 4)
	binary.BigEndian.PutUint32(wb, w)
	binary.BigEndian.PutUint32(hb, h)
	b = append(b, wb...)
	b = append(b, hb...)
	b = append(b, make([]byte, 5)...) // bit depth, color type, compression, filter, interlace
	return b
}

func buildGIF(w, h uint16) []byte {
	b := []byte("GIF89a")
	wb := make([]byte, 2)
	hb := make([]byte, 2)
	binary.LittleEndian.PutUint16(wb, w)
	binary.LittleEndian.PutUint16(hb, h)
	b = append(b, wb...)
	b = append(b, hb...)
	return b
}

func buildJPEG(w, h uint16) []byte {
	b := []byte{0xFF, 0xD8} // SOI
	seg := []byte{0xFF, 0xC0}
	seg = append(seg, 0, 17) // length = 17 (2 + 1 + 2 + 2 + 6 for one component)
	seg = append(seg, 8)     // precision
	hb := make([]byte, 2)
	wb := make([]byte, 2)
	binary.BigEndian.PutUint16(hb, h)
	binary.BigEndian.PutUint16(wb, w)
	seg = append(seg, hb...)
	seg = append(seg, wb...)
	seg = append(seg, 1, 0x11, 0)
	b = append(b, seg...)
	b = append(b, 0xFF, 0xD9) // EOI
	return b
}

func buildWebPVP8X(w, h uint32) []byte {
	b := []byte("RIFF")
	b = append(b, 0, 0, 0, 0) // size, unused
	b = append(b, "WEBP"...)
	b = append(b, "VP8X"...)
	b = append(b, 0, 0, 0, 0) // chunk size
	b = append(b, 0, 0, 0, 0) // feature flags + reserved
	wMinus1 := w - 1
	hMinus1 := h - 1
	b = append(b, byte(wMinus1), byte(wMinus1>>8), byte(wMinus1>>16))
	b = append(b, byte(hMinus1), byte(hMinus1>>8), byte(hMinus1>>16))
	return b
}

func TestDetectDimensionsPNG(t *testing.T) {
	data := buildPNG(1920, 1080)
	w, h, format, err := DetectDimensions(data)
	if err != nil {
		t.Fatalf("DetectDimensions: %v", err)
	}
	if w != 1920 || h != 1080 || format != "png" {
		t.Errorf("got w=%d h=%d format=%q", w, h, format)
	}
}

func TestDetectDimensionsGIF(t *testing.T) {
	data := buildGIF(640, 480)
	w, h, format, err := DetectDimensions(data)
	if err != nil {
		t.Fatalf("DetectDimensions: %v", err)
	}
	if w != 640 || h != 480 || format != "gif" {
		t.Errorf("got w=%d h=%d format=%q", w, h, format)
	}
}

func TestDetectDimensionsJPEG(t *testing.T) {
	data := buildJPEG(800, 600)
	w, h, format, err := DetectDimensions(data)
	if err != nil {
		t.Fatalf("DetectDimensions: %v", err)
	}
	if w != 800 || h != 600 || format != "jpeg" {
		t.Errorf("got w=%d h=%d format=%q", w, h, format)
	}
}

func TestDetectDimensionsWebPVP8X(t *testing.T) {
	data := buildWebPVP8X(3840, 2160)
	w, h, format, err := DetectDimensions(data)
	if err != nil {
		t.Fatalf("DetectDimensions: %v", err)
	}
	if w != 3840 || h != 2160 || format != "webp" {
		t.Errorf("got w=%d h=%d format=%q", w, h, format)
	}
}

func TestDetectDimensionsUnknownFormat(t *testing.T) {
	_, _, _, err := DetectDimensions([]byte("not an image"))
	if err != ErrUnknownDimensions {
		t.Fatalf("expected ErrUnknownDimensions, got %v", err)
	}
}

func TestChecksumStable(t *testing.T) {
	data := []byte("same bytes")
	if Checksum(data) != Checksum(data) {
		t.Fatal("checksum must be deterministic for identical input")
	}
	if Checksum(data) == Checksum([]byte("different bytes")) {
		t.Fatal("checksum collided on distinct input")
	}
}
