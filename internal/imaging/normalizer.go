// Package imaging fits document images into the upload budget before they
// are sent to the OCR service.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"

	"github.com/rox-lucas-sh/image-scan-vision/internal/config"
)

var (
	ErrUnsupportedImage = errors.New("unsupported or corrupt image")
	ErrOverBudget       = errors.New("image cannot be reduced under the size budget")
)

const (
	qualityStep  = 10
	shrinkFactor = 0.75
	maxShrinks   = 6
)

// Normalized is an image ready for upload
type Normalized struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Normalizer downsizes and re-encodes images to JPEG under a byte budget
type Normalizer struct {
	maxBytes     int
	maxDimension int
	quality      int
	minQuality   int
}

func NewNormalizer(cfg *config.ImageConfig) *Normalizer {
	return &Normalizer{
		maxBytes:     cfg.MaxBytes,
		maxDimension: cfg.MaxDimension,
		quality:      cfg.JPEGQuality,
		minQuality:   cfg.MinQuality,
	}
}

// Normalize decodes raw and returns a JPEG whose longest side is at most the
// configured dimension and whose size is within the byte budget. A JPEG that
// already fits is passed through untouched.
func (n *Normalizer) Normalize(raw []byte) (Normalized, error) {
	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return Normalized{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	b := img.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return Normalized{}, ErrUnsupportedImage
	}

	if format == "jpeg" && len(raw) <= n.maxBytes && longest(b) <= n.maxDimension {
		return Normalized{Data: raw, ContentType: "image/jpeg", Width: b.Dx(), Height: b.Dy()}, nil
	}

	w, h := fit(b.Dx(), b.Dy(), n.maxDimension)
	for i := 0; i <= maxShrinks; i++ {
		scaled := flatten(img, w, h)
		for q := n.quality; q >= n.minQuality; q -= qualityStep {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: q}); err != nil {
				return Normalized{}, fmt.Errorf("failed to encode jpeg: %w", err)
			}
			if buf.Len() <= n.maxBytes {
				return Normalized{Data: buf.Bytes(), ContentType: "image/jpeg", Width: w, Height: h}, nil
			}
		}
		w, h = int(float64(w)*shrinkFactor), int(float64(h)*shrinkFactor)
		if w < 1 || h < 1 {
			break
		}
	}
	return Normalized{}, ErrOverBudget
}

// flatten scales img to w x h over a white background, since JPEG has no alpha
func flatten(img image.Image, w, h int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Over, nil)
	return dst
}

func fit(w, h, maxDim int) (int, int) {
	if w <= maxDim && h <= maxDim {
		return w, h
	}
	if w >= h {
		nh := h * maxDim / w
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := w * maxDim / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}

func longest(b image.Rectangle) int {
	if b.Dx() > b.Dy() {
		return b.Dx()
	}
	return b.Dy()
}
