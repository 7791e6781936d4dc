// Package crop renders one boundary into an encoded image: the
// "given an image and a rectangle, return an image" half of the output
// stage, wrapping disintegration/imaging's crop primitive and the
// standard PNG/JPEG encoders.
package crop

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/disintegration/imaging"

	"github.com/kpark/examsplit/internal/geometry"
)

// Format selects the output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPEG Format = "jpg"
)

// Ext returns the file extension for the format ("png" or "jpg").
func (f Format) Ext() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return "png"
}

// JPEGQuality is used whenever a caller asks for FormatJPEG.
const JPEGQuality = 92

// Crop extracts rect from src and returns the sub-image. rect must fit
// within src's bounds; callers are expected to have already validated
// this via geometry.Rect.FitsWithin (the boundary solver's own
// postcondition), so a mismatch here indicates an upstream bug rather
// than a normal failure.
func Crop(src image.Image, rect geometry.Rect) (image.Image, error) {
	b := src.Bounds()
	if !rect.FitsWithin(b.Dx(), b.Dy()) {
		return nil, fmt.Errorf("crop: rect %+v does not fit source image %dx%d", rect, b.Dx(), b.Dy())
	}
	area := image.Rect(
		b.Min.X+rect.X, b.Min.Y+rect.Y,
		b.Min.X+rect.Right(), b.Min.Y+rect.Bottom(),
	)
	return imaging.Crop(src, area), nil
}

// Encode writes img to w in the given format.
func Encode(w io.Writer, img image.Image, format Format) error {
	switch format {
	case FormatJPEG:
		return jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	default:
		return png.Encode(w, img)
	}
}

// CropAndEncode is the convenience combination of Crop and Encode used
// by the orchestrator's final cropping stage.
func CropAndEncode(w io.Writer, src image.Image, rect geometry.Rect, format Format) error {
	cropped, err := Crop(src, rect)
	if err != nil {
		return err
	}
	return Encode(w, cropped, format)
}
