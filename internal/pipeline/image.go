package pipeline

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"slices"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"
	"golang.org/x/image/draw"
)

// scalableTypes are the media types rescaleImage decodes and re-encodes.
var scalableTypes = []string{"image/jpeg", "image/png"}

func isScalable(mt *mimetype.MIME) bool {
	return slices.ContainsFunc(scalableTypes, mt.Is)
}

// scaleFactor returns the factor applied to an image of the given size.
// A positive maxDimension takes precedence over scaling. Images are never
// enlarged, so the result is at most 1.
func scaleFactor(width, height int, maxDimension, scaling float64) float64 {
	factor := scaling
	if maxDimension > 0 {
		factor = maxDimension / float64(max(width, height))
	}
	if factor <= 0 || factor > 1 {
		return 1
	}
	return factor
}

// rescaleImage writes a resized copy of src to dst, keeping the encoding of
// the source. It returns false without writing anything if src is not a JPEG
// or PNG image by content, or if no resize is needed.
func rescaleImage(fs afero.Fs, src, dst string, maxDimension, scaling float64) (bool, error) {
	in, err := fs.Open(src)
	if err != nil {
		return false, fmt.Errorf("opening %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	mt, err := mimetype.DetectReader(in)
	if err != nil {
		return false, fmt.Errorf("detecting type of %s: %w", src, err)
	}
	if !isScalable(mt) {
		return false, nil
	}
	if _, err := in.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("rewinding %s: %w", src, err)
	}

	img, format, err := image.Decode(in)
	if err != nil {
		return false, fmt.Errorf("decoding %s: %w", src, err)
	}

	b := img.Bounds()
	factor := scaleFactor(b.Dx(), b.Dy(), maxDimension, scaling)
	if factor == 1 {
		return false, nil
	}

	w := max(1, int(float64(b.Dx())*factor))
	h := max(1, int(float64(b.Dy())*factor))
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, b, draw.Src, nil)

	if err := fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return false, fmt.Errorf("creating directory for %s: %w", dst, err)
	}
	out, err := fs.Create(dst)
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", dst, err)
	}

	switch format {
	case "png":
		err = png.Encode(out, scaled)
	default:
		err = jpeg.Encode(out, scaled, &jpeg.Options{Quality: 95})
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return false, fmt.Errorf("encoding %s: %w", dst, err)
	}

	return true, nil
}
