// Package thumbs generates bounded-size thumbnails for uploaded images.
package thumbs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// MaxDim is the default bounding box for generated thumbnails.
const MaxDim = 320

var imageExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// IsImage reports whether the filename looks like a supported image.
func IsImage(name string) bool {
	return imageExt[strings.ToLower(filepath.Ext(name))]
}

// PathFor returns the thumbnail path for an original image path:
// dir/name.ext -> dir/.thumbs/name.ext
func PathFor(src string) string {
	dir, name := filepath.Split(src)
	return filepath.Join(dir, ".thumbs", name)
}

// Generate writes a thumbnail of src to PathFor(src), fitting it inside a
// maxDim square while preserving aspect ratio. Non-image files are skipped.
func Generate(src string, maxDim int) (string, error) {
	if !IsImage(src) {
		return "", fmt.Errorf("thumbs: %s is not a supported image", src)
	}
	if maxDim <= 0 {
		maxDim = MaxDim
	}
	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("thumbs: open %s: %w", src, err)
	}
	thumb := imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	dst := PathFor(src)
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", err
	}
	if err := imaging.Save(thumb, dst); err != nil {
		return "", fmt.Errorf("thumbs: save %s: %w", dst, err)
	}
	return dst, nil
}
