package camera

import (
	"fmt"
	"image"
	"os"

	"github.com/esimov/facecap"
	"gocv.io/x/gocv"
)

// DefaultHaarCascade is the file name of the OpenCV frontal face cascade.
const DefaultHaarCascade = "haarcascade_frontalface_default.xml"

// HaarParams contains the multi-scale detection parameters.
type HaarParams struct {
	ScaleFactor  float64
	MinNeighbors int
	// MinSize is the smallest face side in pixels; 0 disables the limit.
	MinSize int
}

// DefaultHaarParams returns scale factor 1.3 with 5 neighbors and no minimum size.
func DefaultHaarParams() HaarParams {
	return HaarParams{
		ScaleFactor:  1.3,
		MinNeighbors: 5,
	}
}

// HaarDetector detects faces with an OpenCV cascade classifier.
// It implements the facecap.Detector interface.
type HaarDetector struct {
	classifier gocv.CascadeClassifier
	params     HaarParams
	closed     bool
}

// NewHaarDetector loads the XML cascade found at path.
func NewHaarDetector(path string, params HaarParams) (*HaarDetector, error) {
	if params.ScaleFactor <= 1 {
		return nil, fmt.Errorf("%w: scale factor must be > 1, got %v", facecap.ErrModelLoad, params.ScaleFactor)
	}
	if params.MinNeighbors < 0 {
		return nil, fmt.Errorf("%w: negative min neighbors", facecap.ErrModelLoad)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %v", facecap.ErrModelLoad, err)
	}

	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(path) {
		classifier.Close()
		return nil, fmt.Errorf("%w: invalid cascade file: %s", facecap.ErrModelLoad, path)
	}
	return &HaarDetector{classifier: classifier, params: params}, nil
}

// Detect returns the faces found in the grayscale image.
func (d *HaarDetector) Detect(gray *image.Gray) ([]image.Rectangle, error) {
	if d.closed {
		return nil, fmt.Errorf("detector is closed")
	}
	mat, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	minSize := image.Pt(d.params.MinSize, d.params.MinSize)
	rects := d.classifier.DetectMultiScaleWithParams(mat,
		d.params.ScaleFactor, d.params.MinNeighbors, 0, minSize, image.Point{})

	bounds := image.Rect(0, 0, gray.Bounds().Dx(), gray.Bounds().Dy())
	faces := rects[:0]
	for _, r := range rects {
		if r = r.Intersect(bounds); !r.Empty() {
			faces = append(faces, r)
		}
	}
	return faces, nil
}

// Close releases the classifier.
func (d *HaarDetector) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	return d.classifier.Close()
}
