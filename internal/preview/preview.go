// Package preview decodes candidate images and fits them to a display
// canvas.
package preview

import (
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os"
	"path/filepath"
	"strings"

	// Registered decoders.
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/photoswiper/swiper/internal/metrics"
)

const (
	DefaultWidth  = 860
	DefaultHeight = 560
	JPEGQuality   = 85
)

// decodable lists extensions with a registered Go decoder. Other candidate
// formats (RAW, HEIC, SVG) are offered for review without a preview.
var decodable = map[string]bool{
	".jpg": true, ".jpeg": true, ".jfif": true,
	".png": true, ".gif": true, ".bmp": true,
	".webp": true, ".tif": true, ".tiff": true,
}

// DecodeError reports that a file's image payload could not be read.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decodable reports whether path has an extension Go can decode.
func Decodable(path string) bool {
	return decodable[strings.ToLower(filepath.Ext(path))]
}

// Probe reads just enough of path to validate its header. Formats without
// a decoder are not probed and always pass.
func Probe(path string) error {
	if !Decodable(path) {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	if _, _, err := image.DecodeConfig(f); err != nil {
		metrics.RecordDecodeFailure()
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

// Render decodes path, applies its EXIF orientation and fits it inside
// maxW x maxH preserving aspect ratio. Images already smaller than the
// canvas are not enlarged.
func Render(path string, maxW, maxH int) (image.Image, error) {
	if maxW <= 0 {
		maxW = DefaultWidth
	}
	if maxH <= 0 {
		maxH = DefaultHeight
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		metrics.RecordDecodeFailure()
		return nil, &DecodeError{Path: path, Err: err}
	}

	if _, err := f.Seek(0, io.SeekStart); err == nil {
		img = applyOrientation(img, orientation(f))
	}

	b := img.Bounds()
	if b.Dx() <= maxW && b.Dy() <= maxH {
		return img, nil
	}
	return imaging.Fit(img, maxW, maxH, imaging.Lanczos), nil
}

// WriteJPEG encodes img to path, replacing any previous file atomically.
func WriteJPEG(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".preview-*")
	if err != nil {
		return err
	}
	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode preview: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// orientation returns the EXIF orientation tag, or 1 when absent.
func orientation(r io.Reader) int {
	x, err := exif.Decode(r)
	if err != nil && x == nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	v, err := tag.Int(0)
	if err != nil {
		return 1
	}
	return v
}

// applyOrientation transforms an image according to EXIF orientation value.
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
