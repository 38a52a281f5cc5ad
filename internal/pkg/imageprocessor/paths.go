package imageprocessor

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/carsalesplatform/carsales/internal/pkg/env"
)

const (
	DefaultUploadRoot   = "./public/uploads/vehicles"
	DefaultPublicPrefix = "/uploads/vehicles"

	LargeSuffix  = "_large.jpg"
	MediumSuffix = "_medium.jpg"
	ThumbSuffix  = "_thumb.jpg"
)

var ErrForeignURL = errors.New("url is outside the vehicle upload prefix")

// Layout maps vehicle photo files between disk and public URLs:
// {UploadRoot}/{vehicleID}/{file} <-> {PublicPrefix}/{vehicleID}/{file}
type Layout struct {
	UploadRoot   string
	PublicPrefix string
}

// LoadLayout reads PHOTO_UPLOAD_ROOT and PHOTO_PUBLIC_PREFIX.
func LoadLayout() Layout {
	return Layout{
		UploadRoot:   env.GetEnv("PHOTO_UPLOAD_ROOT", DefaultUploadRoot),
		PublicPrefix: env.GetEnv("PHOTO_PUBLIC_PREFIX", DefaultPublicPrefix),
	}
}

func (l Layout) VehicleDir(vehicleID uint) string {
	return filepath.Join(l.UploadRoot, strconv.FormatUint(uint64(vehicleID), 10))
}

func (l Layout) URLFor(vehicleID uint, fileName string) string {
	return path.Join("/", l.PublicPrefix, strconv.FormatUint(uint64(vehicleID), 10), fileName)
}

// DiskPathFromURL resolves a public URL to its file. URLs outside the prefix
// or escaping it with ".." are rejected.
func (l Layout) DiskPathFromURL(url string) (string, error) {
	prefix := strings.TrimSuffix(path.Join("/", l.PublicPrefix), "/") + "/"
	clean := path.Clean("/" + url)
	if !strings.HasPrefix(clean, prefix) {
		return "", fmt.Errorf("%w: %s", ErrForeignURL, url)
	}
	rel := strings.TrimPrefix(clean, prefix)
	if rel == "" || strings.Contains(rel, "..") {
		return "", fmt.Errorf("%w: %s", ErrForeignURL, url)
	}
	return filepath.Join(l.UploadRoot, filepath.FromSlash(rel)), nil
}

// VariantDiskPaths returns the large, medium and thumb files behind a stored
// large-variant URL.
func (l Layout) VariantDiskPaths(largeURL string) ([]string, error) {
	paths := make([]string, 0, 3)
	for _, u := range VariantURLs(largeURL) {
		p, err := l.DiskPathFromURL(u)
		if err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

// MediumFromLarge swaps the _large.jpg suffix for _medium.jpg. Names without
// the large suffix are returned unchanged.
func MediumFromLarge(large string) string {
	return swapSuffix(large, MediumSuffix)
}

// ThumbFromLarge swaps the _large.jpg suffix for _thumb.jpg.
func ThumbFromLarge(large string) string {
	return swapSuffix(large, ThumbSuffix)
}

// VariantURLs lists large, medium and thumb for a large-variant name. A name
// that does not follow the convention yields only itself.
func VariantURLs(large string) []string {
	if !strings.HasSuffix(large, LargeSuffix) {
		return []string{large}
	}
	return []string{large, MediumFromLarge(large), ThumbFromLarge(large)}
}

func swapSuffix(large, suffix string) string {
	if !strings.HasSuffix(large, LargeSuffix) {
		return large
	}
	return strings.TrimSuffix(large, LargeSuffix) + suffix
}

// SafeRemove deletes a file, treating "already gone" as success.
func SafeRemove(p string) error {
	if p == "" {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// RemoveAll deletes every path and returns the first error seen.
func RemoveAll(paths ...string) error {
	var first error
	for _, p := range paths {
		if err := SafeRemove(p); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// RemoveDirIfEmpty removes dir only when it has no entries left.
func RemoveDirIfEmpty(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return false
	}
	return os.Remove(dir) == nil
}
