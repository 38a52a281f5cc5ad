package upload

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

// SniffLen is how many leading bytes ValidateImageBySniff needs.
const SniffLen = 512

var (
	ErrUnsupportedExtension = errors.New("only JPG, JPEG, PNG, GIF, WEBP, BMP and TIFF images are supported")
	ErrScriptableContent    = errors.New("HTML, SVG and XML content is not allowed")
	ErrUnsupportedType      = errors.New("file content is not a supported image")
)

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// ValidateImageBySniff checks filename's extension and the first bytes of
// the file against the decodable image types and returns the detected mime.
func ValidateImageBySniff(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", ErrUnsupportedExtension
	}

	detected := http.DetectContentType(head)

	if strings.HasPrefix(detected, "text/html") || strings.HasPrefix(detected, "application/xhtml") {
		return "", ErrScriptableContent
	}
	if strings.HasPrefix(detected, "text/xml") || strings.HasPrefix(detected, "application/xml") || detected == "image/svg+xml" {
		return "", ErrScriptableContent
	}

	if allowedMime[detected] {
		return detected, nil
	}

	// net/http has no TIFF signature
	if detected == "application/octet-stream" && (ext == ".tif" || ext == ".tiff") && isTIFF(head) {
		return "image/tiff", nil
	}

	return "", ErrUnsupportedType
}

func isTIFF(head []byte) bool {
	if len(head) < 4 {
		return false
	}
	return string(head[:4]) == "II*\x00" || string(head[:4]) == "MM\x00*"
}
