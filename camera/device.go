// Package camera implements the OpenCV backed parts of the capture loop:
// the video device, the preview window and the Haar cascade detector.
package camera

import (
	"fmt"
	"image"

	"github.com/esimov/facecap"
	"gocv.io/x/gocv"
)

// Device is a video capture device delivering frames as images.
type Device struct {
	Index int

	vc     *gocv.VideoCapture
	mat    gocv.Mat
	closed bool
}

// Open opens the capture device with the requested frame size.
// The driver may choose a different size if the requested one is not supported.
func Open(index, width, height int) (*Device, error) {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return nil, fmt.Errorf("%w: device %d: %v", facecap.ErrDeviceUnavailable, index, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: device %d", facecap.ErrDeviceUnavailable, index)
	}
	if width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	}
	if height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(height))
	}

	return &Device{
		Index: index,
		vc:    vc,
		mat:   gocv.NewMat(),
	}, nil
}

// Size returns the frame size negotiated with the driver.
func (d *Device) Size() image.Point {
	return image.Pt(
		int(d.vc.Get(gocv.VideoCaptureFrameWidth)),
		int(d.vc.Get(gocv.VideoCaptureFrameHeight)),
	)
}

// Read grabs the next frame. It implements the facecap.FrameSource interface.
func (d *Device) Read() (image.Image, error) {
	if d.closed {
		return nil, fmt.Errorf("%w: device %d is closed", facecap.ErrFrameRead, d.Index)
	}
	if ok := d.vc.Read(&d.mat); !ok || d.mat.Empty() {
		return nil, fmt.Errorf("%w: device %d", facecap.ErrFrameRead, d.Index)
	}
	img, err := d.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", facecap.ErrFrameRead, err)
	}
	return img, nil
}

// Close releases the device. It is safe to call it more than once.
func (d *Device) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	d.mat.Close()
	return d.vc.Close()
}
