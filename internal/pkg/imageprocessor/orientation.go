package imageprocessor

import (
	"bytes"
	"image"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/mknote"
)

func init() {
	// maker notes appear in most phone photos; register them so Decode does
	// not bail on the sub-IFD
	exif.RegisterParsers(mknote.All...)
}

// Orientation values as defined by the EXIF spec, 1 being "as stored".
const (
	OrientationNormal     = 1
	OrientationFlipH      = 2
	OrientationRotate180  = 3
	OrientationFlipV      = 4
	OrientationTranspose  = 5
	OrientationRotate90   = 6
	OrientationTransverse = 7
	OrientationRotate270  = 8
)

// ReadOrientation returns the EXIF orientation of an encoded image, or
// OrientationNormal when there is none or it cannot be parsed.
func ReadOrientation(data []byte) int {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return OrientationNormal
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return OrientationNormal
	}
	o, err := tag.Int(0)
	if err != nil || o < OrientationNormal || o > OrientationRotate270 {
		return OrientationNormal
	}
	return o
}

// ApplyOrientation returns img as it should be displayed. The rotations are
// counter-clockwise in imaging, so "rotate 90 CW" is Rotate270.
func ApplyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case OrientationFlipH:
		return imaging.FlipH(img)
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationFlipV:
		return imaging.FlipV(img)
	case OrientationTranspose:
		return imaging.Transpose(img)
	case OrientationRotate90:
		return imaging.Rotate270(img)
	case OrientationTransverse:
		return imaging.Transverse(img)
	case OrientationRotate270:
		return imaging.Rotate90(img)
	}
	return img
}
