// Package testutil builds image fixtures for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/kolesa-team/go-webp/encoder"
	"github.com/kolesa-team/go-webp/webp"
)

// Gradient returns a w x h image whose left half is red and right half blue,
// so orientation changes are observable.
func Gradient(w, h int) *image.NRGBA {
	img := imaging.New(w, h, color.NRGBA{R: 255, A: 255})
	right := imaging.New(w-w/2, h, color.NRGBA{B: 255, A: 255})
	return imaging.Paste(img, right, image.Pt(w/2, 0))
}

// JPEG encodes a w x h test image.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Gradient(w, h), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode jpeg fixture: %v", err)
	}
	return buf.Bytes()
}

// JPEGWithOrientation returns a JPEG carrying a minimal EXIF block with the
// given orientation tag.
func JPEGWithOrientation(t testing.TB, w, h int, orientation uint16) []byte {
	t.Helper()
	plain := JPEG(t, w, h)

	var tiff bytes.Buffer
	tiff.WriteString("MM")
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0x002A))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(8))
	_ = binary.Write(&tiff, binary.BigEndian, uint16(1))      // entry count
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0x0112)) // Orientation
	_ = binary.Write(&tiff, binary.BigEndian, uint16(3))      // SHORT
	_ = binary.Write(&tiff, binary.BigEndian, uint32(1))
	_ = binary.Write(&tiff, binary.BigEndian, orientation)
	_ = binary.Write(&tiff, binary.BigEndian, uint16(0))
	_ = binary.Write(&tiff, binary.BigEndian, uint32(0)) // no next IFD

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write(plain[:2]) // SOI
	out.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(plain[2:])
	return out.Bytes()
}

// WebP encodes a w x h lossy WebP test image.
func WebP(t testing.TB, w, h int) []byte {
	t.Helper()
	options, err := encoder.NewLossyEncoderOptions(encoder.PresetDefault, 80)
	if err != nil {
		t.Fatalf("failed to create webp options: %v", err)
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, Gradient(w, h), options); err != nil {
		t.Fatalf("failed to encode webp fixture: %v", err)
	}
	return buf.Bytes()
}

// TranslucentPNG encodes a w x h PNG whose left half is opaque red and whose
// right half is fully transparent white.
func TranslucentPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 255, G: 255, B: 255, A: 0})
	img = imaging.Paste(img, imaging.New(w/2, h, color.NRGBA{R: 255, A: 255}), image.Pt(0, 0))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png fixture: %v", err)
	}
	return buf.Bytes()
}

// WriteFile writes data below dir and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", p, err)
	}
	return p
}

// FileExists reports whether p exists.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
