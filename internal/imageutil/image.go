// Package imageutil bounds user-supplied recipe images so an inline data
// URL never pushes its containing document over the store's size limit.
package imageutil

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoding; output is always JPEG
	"math"
	"strings"

	"github.com/potluck-app/potluck/internal/apperror"
)

const (
	// MaxPixelArea is the largest width*height an embedded image may have.
	// Larger images are downscaled preserving aspect ratio.
	MaxPixelArea = 200_000
	// MaxEncodedBytes caps the final data URL length. Documents in the
	// store are limited to ~1 MiB and the image dominates the document.
	MaxEncodedBytes = 1_000_000

	jpegQuality = 80
)

// BoundDataURL validates and bounds an inline image data URL.
//
// The input must be a base64 data URL with a JPEG or PNG payload. If the
// decoded image exceeds MaxPixelArea it is downscaled to fit, preserving
// aspect ratio, and re-encoded as JPEG. If the result still exceeds
// MaxEncodedBytes the image is rejected rather than degraded further.
//
// An empty input is returned unchanged: recipes without a photo are fine.
func BoundDataURL(dataURL string) (string, error) {
	if dataURL == "" {
		return "", nil
	}

	payload, err := decodeDataURL(dataURL)
	if err != nil {
		return "", err
	}

	img, format, err := image.Decode(bytes.NewReader(payload))
	if err != nil {
		return "", apperror.ValidationFailed("image", "image data could not be decoded")
	}

	bounds := img.Bounds()
	area := bounds.Dx() * bounds.Dy()
	if area > MaxPixelArea {
		img = downscale(img, MaxPixelArea)
		format = "jpeg"
	} else if format == "jpeg" && len(dataURL) <= MaxEncodedBytes {
		// Small JPEG already within bounds: keep the original bytes so
		// repeated edits do not recompress the same image.
		return dataURL, nil
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("encoding image: %w", err)
	}

	out := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	if len(out) > MaxEncodedBytes {
		return "", apperror.ValidationFailed("image", "image is too large even after resizing")
	}
	return out, nil
}

// decodeDataURL strips the data URL header and base64-decodes the payload.
func decodeDataURL(dataURL string) ([]byte, error) {
	if !strings.HasPrefix(dataURL, "data:image/") {
		return nil, apperror.ValidationFailed("image", "image must be an inline data URL")
	}
	_, b64, ok := strings.Cut(dataURL, ";base64,")
	if !ok {
		return nil, apperror.ValidationFailed("image", "image data URL must be base64 encoded")
	}
	payload, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, apperror.ValidationFailed("image", "image data is not valid base64")
	}
	return payload, nil
}

// downscale resizes img so that width*height <= maxArea, preserving aspect
// ratio. Nearest-neighbour sampling; thumbnails on the browse grid do not
// warrant an interpolation dependency.
func downscale(img image.Image, maxArea int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	ratio := float64(w) / float64(h)
	newW := int(math.Floor(math.Sqrt(ratio * float64(maxArea))))
	newH := int(math.Floor(math.Sqrt(float64(maxArea) / ratio)))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	for y := 0; y < newH; y++ {
		srcY := bounds.Min.Y + y*h/newH
		for x := 0; x < newW; x++ {
			srcX := bounds.Min.X + x*w/newW
			dst.Set(x, y, img.At(srcX, srcY))
		}
	}
	return dst
}
