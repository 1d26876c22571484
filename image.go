package facecap

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
)

// SampleFormats lists the supported sample file extensions.
var SampleFormats = []string{"jpg", "jpeg", "png", "bmp"}

// defaultQuality is the JPEG quality used when none is given.
const defaultQuality = 95

// encodeImg encodes a sample image into w using the encoder matching the file extension.
func encodeImg(w io.Writer, img image.Image, format string, quality int) error {
	switch strings.ToLower(format) {
	case "", "jpg", "jpeg":
		if quality <= 0 || quality > 100 {
			quality = defaultQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case "png":
		return png.Encode(w, img)
	case "bmp":
		return bmp.Encode(w, img)
	default:
		return errors.New("unsupported image format")
	}
}

// cropFace cuts out the face region from the grayscale frame. If size is greater
// than zero the crop is rescaled to a size x size square.
func cropFace(gray *image.Gray, rect image.Rectangle, size int) (*image.Gray, error) {
	r := rect.Intersect(gray.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("face region %v is outside of the frame %v", rect, gray.Bounds())
	}

	face := gray.SubImage(r).(*image.Gray)
	if size > 0 && (r.Dx() != size || r.Dy() != size) {
		return toGray(imaging.Resize(face, size, size, imaging.Lanczos)), nil
	}
	return face, nil
}

// isValidFormat checks for the supported sample extensions.
func isValidFormat(format string) bool {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	for _, ext := range SampleFormats {
		if ext == format {
			return true
		}
	}
	return false
}
