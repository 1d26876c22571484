package facecap

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/esimov/facecap/utils"
	pigo "github.com/esimov/pigo/core"
)

// Detector locates face regions in a grayscale frame.
// The rectangles are returned in the order the underlying classifier produced them.
type Detector interface {
	Detect(gray *image.Gray) ([]image.Rectangle, error)
	Close() error
}

// PigoParams holds the tunable parameters of the pigo cascade.
type PigoParams struct {
	// MinSize and MaxSize bound the face size in pixels. A zero MaxSize means the frame size.
	MinSize int
	MaxSize int
	// ShiftFactor moves the detection window by this fraction of its size.
	ShiftFactor float64
	// ScaleFactor grows the detection window when moving to a higher scale.
	ScaleFactor float64
	// Angle is the in-plane rotation of the faces, 0.0 to 1.0 (1.0 is 2π).
	Angle float64
	// IoU is the intersection over union threshold used for clustering the detections.
	IoU float64
	// MinQuality drops the detections scored below this value.
	MinQuality float32
}

// pigoMinSize is the smallest window pigo is run with; a zero value would never end the scan.
const pigoMinSize = 20

// DefaultPigoParams returns the parameters used by the capture command.
func DefaultPigoParams() PigoParams {
	return PigoParams{
		MinSize:     60,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		IoU:         0.2,
		MinQuality:  5.0,
	}
}

// PigoDetector is a Detector backed by a pigo binary cascade.
type PigoDetector struct {
	classifier *pigo.Pigo
	params     PigoParams
}

var _ Detector = (*PigoDetector)(nil)

// NewPigoDetector reads and unpacks the cascade file found at path.
func NewPigoDetector(path string, params PigoParams) (*PigoDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelLoad, err)
	}

	classifier, err := unpackCascade(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrModelLoad, path, err)
	}

	params.MinSize = utils.Max(params.MinSize, pigoMinSize)
	params.Angle = utils.Clamp(params.Angle, 0, 1)
	if params.ScaleFactor <= 1.0 {
		params.ScaleFactor = DefaultPigoParams().ScaleFactor
	}
	if params.ShiftFactor <= 0 {
		params.ShiftFactor = DefaultPigoParams().ShiftFactor
	}
	return &PigoDetector{classifier: classifier, params: params}, nil
}

// unpackCascade unpacks the binary cascade. The pigo unpacker indexes the
// packet without bounds checks, so a truncated file is reported as an error.
func unpackCascade(data []byte) (classifier *pigo.Pigo, err error) {
	// 8 bytes of header, the tree depth and the number of trees.
	if len(data) < 16 {
		return nil, fmt.Errorf("cascade file too short (%d bytes)", len(data))
	}
	if binary.LittleEndian.Uint32(data[12:16]) == 0 {
		return nil, errors.New("cascade file contains no trees")
	}
	defer func() {
		if r := recover(); r != nil {
			classifier, err = nil, fmt.Errorf("malformed cascade file: %v", r)
		}
	}()

	// Unpack the binary file. This will return the number of cascade trees,
	// the tree depth, the threshold and the prediction from tree's leaf nodes.
	return pigo.NewPigo().Unpack(data)
}

// Detect runs the cascade over the grayscale frame.
func (d *PigoDetector) Detect(gray *image.Gray) ([]image.Rectangle, error) {
	bounds := gray.Bounds()
	dx, dy := bounds.Dx(), bounds.Dy()

	maxSize := d.params.MaxSize
	if maxSize <= 0 {
		maxSize = utils.Max(dx, dy)
	}

	cParams := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,

		ImageParams: pigo.ImageParams{
			Pixels: grayPixels(gray),
			Rows:   dy,
			Cols:   dx,
			Dim:    dx,
		},
	}

	// Run the classifier over the obtained leaf nodes and return the detection results.
	// The result contains quadruplets representing the row, column, scale and detection score.
	dets := d.classifier.RunCascade(cParams, d.params.Angle)

	// Calculate the intersection over union (IoU) of two clusters.
	dets = d.classifier.ClusterDetections(dets, d.params.IoU)

	faces := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q < d.params.MinQuality {
			continue
		}
		r := detToRect(det).Add(bounds.Min).Intersect(bounds)
		if r.Empty() {
			continue
		}
		faces = append(faces, r)
	}
	return faces, nil
}

// Close implements the Detector interface. The pigo cascade holds no external resources.
func (d *PigoDetector) Close() error {
	return nil
}

// detToRect converts a pigo detection (center and scale) to a rectangle.
func detToRect(det pigo.Detection) image.Rectangle {
	half := det.Scale / 2
	return image.Rect(det.Col-half, det.Row-half, det.Col-half+det.Scale, det.Row-half+det.Scale)
}
