package facecap

import (
	"image"
	"image/color"
)

// Grayscale converts the image to grayscale mode using the ITU-R 601 luma weights.
// The returned image always has its min-point at (0, 0).
func Grayscale(src image.Image) *image.Gray {
	bounds := src.Bounds()
	dx, dy := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(image.Rect(0, 0, dx, dy))

	switch src := src.(type) {
	case *image.Gray:
		for y := 0; y < dy; y++ {
			si := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+dx], src.Pix[si:si+dx])
		}
	case *image.RGBA:
		for y := 0; y < dy; y++ {
			si := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			di := y * dst.Stride
			for x := 0; x < dx; x++ {
				dst.Pix[di+x] = luma(src.Pix[si], src.Pix[si+1], src.Pix[si+2])
				si += 4
			}
		}
	case *image.NRGBA:
		for y := 0; y < dy; y++ {
			si := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			di := y * dst.Stride
			for x := 0; x < dx; x++ {
				dst.Pix[di+x] = luma(src.Pix[si], src.Pix[si+1], src.Pix[si+2])
				si += 4
			}
		}
	default:
		for y := 0; y < dy; y++ {
			for x := 0; x < dx; x++ {
				r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
				lum := float32(r)*0.299 + float32(g)*0.587 + float32(b)*0.114
				dst.Pix[y*dst.Stride+x] = uint8(lum / 256)
			}
		}
	}
	return dst
}

// luma returns the 8 bit luminance of an RGB triplet.
func luma(r, g, b uint8) uint8 {
	return uint8(0.299*float32(r) + 0.587*float32(g) + 0.114*float32(b) + 0.5)
}

// grayPixels returns the pixel values of a grayscale image as a packed,
// one dimensional array with the width as row stride.
func grayPixels(src *image.Gray) []uint8 {
	bounds := src.Bounds()
	dx, dy := bounds.Dx(), bounds.Dy()
	if src.Stride == dx && bounds.Min == (image.Point{}) {
		return src.Pix[:dx*dy]
	}
	pixels := make([]uint8, dx*dy)
	for y := 0; y < dy; y++ {
		si := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		copy(pixels[y*dx:(y+1)*dx], src.Pix[si:si+dx])
	}
	return pixels
}

// toGray converts an already grayscale looking image (e.g. a resized crop) to *image.Gray.
func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok {
		return g
	}
	bounds := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			dst.SetGray(x, y, color.GrayModel.Convert(src.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray))
		}
	}
	return dst
}
