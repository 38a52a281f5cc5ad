package imageprocessor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/kolesa-team/go-webp/decoder"
	"github.com/kolesa-team/go-webp/webp"
)

// VariantSpec describes one rendition. Crop variants are filled to exactly
// Width x Height, the others fit inside it without upscaling.
type VariantSpec struct {
	Name    string
	Suffix  string
	Width   int
	Height  int
	Crop    bool
	Quality int
}

var (
	LargeVariant  = VariantSpec{Name: "large", Suffix: LargeSuffix, Width: 1600, Height: 1600, Quality: 85}
	MediumVariant = VariantSpec{Name: "medium", Suffix: MediumSuffix, Width: 900, Height: 900, Quality: 80}
	ThumbVariant  = VariantSpec{Name: "thumb", Suffix: ThumbSuffix, Width: 400, Height: 300, Crop: true, Quality: 75}

	// Variants is the write order used by Generate.
	Variants = []VariantSpec{LargeVariant, MediumVariant, ThumbVariant}
)

// DefaultMaxPixels rejects sources above ~60 megapixels before decoding.
const DefaultMaxPixels = 60_000_000

var (
	ErrEmptySource   = errors.New("image source is empty")
	ErrTooManyPixels = errors.New("image dimensions exceed the allowed maximum")
)

// VariantFile is one written rendition.
type VariantFile struct {
	Spec   VariantSpec
	Path   string
	Width  int
	Height int
}

// VariantSet is the result of a successful Generate call.
type VariantSet struct {
	BaseName string
	URL      string // public URL of the large variant
	Files    []VariantFile
}

// Paths lists every written file, large first.
func (s *VariantSet) Paths() []string {
	paths := make([]string, 0, len(s.Files))
	for _, f := range s.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// Generator derives the large/medium/thumb JPEGs for vehicle photos.
type Generator struct {
	layout    Layout
	maxPixels int
}

func NewGenerator(layout Layout) *Generator {
	return &Generator{layout: layout, maxPixels: DefaultMaxPixels}
}

// WithMaxPixels overrides the decode guard. Zero disables it.
func (g *Generator) WithMaxPixels(n int) *Generator {
	g.maxPixels = n
	return g
}

func (g *Generator) Layout() Layout {
	return g.layout
}

// Generate decodes r, normalises orientation and writes the three variants
// under the vehicle's directory. Either all three files exist afterwards or
// none do.
func (g *Generator) Generate(r io.Reader, vehicleID uint) (*VariantSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading image source: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptySource
	}

	img, err := g.decode(data)
	if err != nil {
		return nil, err
	}
	img = flatten(ApplyOrientation(img, ReadOrientation(data)))

	dir := g.layout.VehicleDir(vehicleID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating vehicle directory: %w", err)
	}

	base := NewBaseName()
	set := &VariantSet{
		BaseName: base,
		URL:      g.layout.URLFor(vehicleID, base+LargeSuffix),
	}

	for _, spec := range Variants {
		out := filepath.Join(dir, base+spec.Suffix)
		rendered := render(img, spec)
		// imaging picks the JPEG encoder from the extension and never copies metadata
		if err := imaging.Save(rendered, out, imaging.JPEGQuality(spec.Quality)); err != nil {
			// the failed file may exist half-written
			_ = RemoveAll(append(set.Paths(), out)...)
			return nil, fmt.Errorf("error saving %s variant: %w", spec.Name, err)
		}
		b := rendered.Bounds()
		set.Files = append(set.Files, VariantFile{Spec: spec, Path: out, Width: b.Dx(), Height: b.Dy()})
	}

	log.Debugf("[ImageProcessor] Wrote variants %s for vehicle %d", base, vehicleID)
	return set, nil
}

func (g *Generator) decode(data []byte) (image.Image, error) {
	if isWebP(data) {
		img, err := webp.Decode(bytes.NewReader(data), &decoder.Options{})
		if err != nil {
			return nil, fmt.Errorf("error decoding webp image: %w", err)
		}
		if err := g.checkPixels(img.Bounds().Dx(), img.Bounds().Dy()); err != nil {
			return nil, err
		}
		return img, nil
	}

	if g.maxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("error reading image header: %w", err)
		}
		if err := g.checkPixels(cfg.Width, cfg.Height); err != nil {
			return nil, err
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error decoding image: %w", err)
	}
	return img, nil
}

func (g *Generator) checkPixels(w, h int) error {
	if g.maxPixels > 0 && w*h > g.maxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooManyPixels, w, h)
	}
	return nil
}

// flatten composites translucent sources onto white. JPEG has no alpha
// channel and would otherwise turn transparent pixels black.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	return imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
}

func render(img image.Image, spec VariantSpec) image.Image {
	if spec.Crop {
		return imaging.Fill(img, spec.Width, spec.Height, imaging.Center, imaging.Lanczos)
	}
	b := img.Bounds()
	if b.Dx() <= spec.Width && b.Dy() <= spec.Height {
		// Fit returns small sources untouched
		return imaging.Clone(img)
	}
	return imaging.Fit(img, spec.Width, spec.Height, imaging.Lanczos)
}

// isWebP checks the RIFF....WEBP container header.
func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}

// NewBaseName returns a random dashless id used for all variants of a photo.
func NewBaseName() string {
	id := uuid.New()
	return fmt.Sprintf("%x", id[:])
}
