package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/esimov/facecap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDevice struct {
	frames int
	read   int
	closed bool
}

func (d *fakeDevice) Read() (image.Image, error) {
	if d.closed || d.read >= d.frames {
		return nil, facecap.ErrFrameRead
	}
	d.read++
	return image.NewRGBA(image.Rect(0, 0, 80, 60)), nil
}

func (d *fakeDevice) Close() error {
	d.closed = true
	return nil
}

type fakeDetector struct {
	noFaces bool
	closed  bool
}

func (d *fakeDetector) Detect(gray *image.Gray) ([]image.Rectangle, error) {
	if d.noFaces {
		return nil, nil
	}
	return []image.Rectangle{image.Rect(10, 10, 40, 40)}, nil
}

func (d *fakeDetector) Close() error {
	d.closed = true
	return nil
}

// fakeWindow presses key on the first WaitKey call.
type fakeWindow struct {
	key    int
	waits  int
	shown  int
	closed int
	// devClosed records whether the device was already released when the window was closed.
	devClosed bool
	dev       *fakeDevice
}

func (w *fakeWindow) Show(img image.Image) error {
	w.shown++
	return nil
}

func (w *fakeWindow) WaitKey(delay time.Duration) int {
	w.waits++
	if w.waits == 1 {
		return w.key
	}
	return -1
}

func (w *fakeWindow) Close() error {
	if w.closed == 0 && w.dev != nil {
		w.devClosed = w.dev.closed
	}
	w.closed++
	return nil
}

func stubWindow(t *testing.T, win *fakeWindow) {
	orig := openWindow
	t.Cleanup(func() { openWindow = orig })
	openWindow = func(title string) window { return win }
}

// stubCapture replaces the hooks of the capture command for the duration of the test.
func stubCapture(t *testing.T, dev *fakeDevice, devErr error, det *fakeDetector, detErr error) *int {
	loads := 0
	origDevice, origDetector, origID := openDevice, loadDetector, askID
	t.Cleanup(func() {
		openDevice, loadDetector, askID = origDevice, origDetector, origID
	})

	openDevice = func(index, width, height int) (frameDevice, error) {
		if devErr != nil {
			return nil, devErr
		}
		return dev, nil
	}
	loadDetector = func(opts captureOptions) (facecap.Detector, error) {
		loads++
		if detErr != nil {
			return nil, detErr
		}
		return det, nil
	}
	askID = func(out io.Writer) (string, error) {
		return readID(strings.NewReader("42\n"), out, false)
	}
	return &loads
}

func testOptions(dir string) captureOptions {
	return captureOptions{
		Detector: backendPigo,
		Out:      dir,
		Max:      facecap.MaxSamples,
		Delay:    time.Millisecond,
		Format:   "jpg",
		Quality:  90,
		Headless: true,
	}
}

func TestCapture_DeviceFailureShouldStopBeforeDetector(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "samples")
	loads := stubCapture(t, nil, fmt.Errorf("%w: device 0", facecap.ErrDeviceUnavailable), nil, nil)

	_, err := runCapture(context.Background(), logs.NewTestingLog(t), io.Discard, io.Discard, testOptions(dir))
	assert.ErrorIs(t, err, facecap.ErrDeviceUnavailable)
	assert.Zero(t, *loads)

	_, err = os.Stat(dir)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCapture_DetectorFailureShouldReleaseDevice(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "samples")
	dev := &fakeDevice{frames: 10}
	stubCapture(t, dev, nil, nil, fmt.Errorf("%w: missing facefinder", facecap.ErrModelLoad))

	_, err := runCapture(context.Background(), logs.NewTestingLog(t), io.Discard, io.Discard, testOptions(dir))
	assert.ErrorIs(t, err, facecap.ErrModelLoad)
	assert.True(t, dev.closed)

	_, err = os.Stat(dir)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestCapture_ShouldCollectSamples(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "samples")
	dev := &fakeDevice{frames: 1000}
	det := &fakeDetector{}
	stubCapture(t, dev, nil, det, nil)

	opts := testOptions(dir)
	opts.Max = 5
	opts.List = true

	var out bytes.Buffer
	sum, err := runCapture(context.Background(), logs.NewTestingLog(t), &out, io.Discard, opts)
	require.NoError(t, err)

	assert.Equal(t, facecap.TargetReached, sum.Reason)
	assert.Equal(t, 5, sum.Saved)
	assert.True(t, dev.closed)
	assert.True(t, det.closed)

	output := out.String()
	assert.Contains(t, output, idPrompt)
	assert.Contains(t, output, "Created samples directory")
	assert.Contains(t, output, "CAPTURE SUMMARY")
	assert.Contains(t, output, "face.42.5.jpg")

	for n := 1; n <= 5; n++ {
		_, err := os.Stat(filepath.Join(dir, fmt.Sprintf("face.42.%d.jpg", n)))
		assert.NoError(t, err)
	}
}

func TestCapture_EndOfStreamIsNotAnError(t *testing.T) {
	stubCapture(t, &fakeDevice{frames: 2}, nil, &fakeDetector{}, nil)

	opts := testOptions(t.TempDir())
	opts.ID = "7"
	sum, err := runCapture(context.Background(), logs.NewTestingLog(t), io.Discard, io.Discard, opts)
	require.NoError(t, err)
	assert.Equal(t, facecap.StreamEnded, sum.Reason)
	assert.Equal(t, 2, sum.Frames)
}

func TestCapture_ShouldRejectEmptyID(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "samples")
	stubCapture(t, &fakeDevice{frames: 2}, nil, &fakeDetector{}, nil)
	askID = func(out io.Writer) (string, error) {
		return readID(strings.NewReader("   \n"), out, false)
	}

	_, err := runCapture(context.Background(), logs.NewTestingLog(t), io.Discard, io.Discard, testOptions(dir))
	assert.ErrorIs(t, err, errEmptyID)
}

func TestCapture_ShouldRejectInvalidOptions(t *testing.T) {
	loads := stubCapture(t, &fakeDevice{}, nil, &fakeDetector{}, nil)

	for _, modify := range []func(*captureOptions){
		func(o *captureOptions) { o.Format = "gif" },
		func(o *captureOptions) { o.Max = 0 },
		func(o *captureOptions) { o.Detector = "dnn" },
	} {
		opts := testOptions(t.TempDir())
		modify(&opts)
		_, err := runCapture(context.Background(), logs.NewTestingLog(t), io.Discard, io.Discard, opts)
		assert.Error(t, err)
	}
	assert.Zero(t, *loads)
}

func TestCapture_ShouldResumeNumbering(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "face.42.8.jpg"), []byte{}, 0644))
	stubCapture(t, &fakeDevice{frames: 100}, nil, &fakeDetector{}, nil)

	opts := testOptions(dir)
	opts.Max = 2
	opts.Resume = true

	var out bytes.Buffer
	_, err := runCapture(context.Background(), logs.NewTestingLog(t), &out, io.Discard, opts)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Resuming after sample 8")

	for _, name := range []string{"face.42.9.jpg", "face.42.10.jpg"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err)
	}
}

func TestDetector_ShouldFailOnMissingCascade(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.Cascade = filepath.Join(t.TempDir(), "facefinder")

	_, err := newDetector(opts)
	assert.ErrorIs(t, err, facecap.ErrModelLoad)
}

func TestSummary_ShouldReportFailures(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, &facecap.Summary{
		Frames:          12,
		FramesWithFaces: 4,
		Saved:           3,
		Failed:          1,
		Reason:          facecap.Cancelled,
		Dir:             "samples",
		Elapsed:         1500 * time.Millisecond,
	})

	output := out.String()
	assert.Contains(t, output, "Frames processed:       12")
	assert.Contains(t, output, "Frames with faces:      4")
	assert.Contains(t, output, "Samples failed")
	assert.Contains(t, output, "Stopped because:        cancelled")
	assert.Contains(t, output, "1.50s")
}

func TestCapture_CancelKeyShouldReleaseAndSummarize(t *testing.T) {
	dev := &fakeDevice{frames: 1000}
	det := &fakeDetector{noFaces: true}
	win := &fakeWindow{key: facecap.KeyEscape, dev: dev}
	stubCapture(t, dev, nil, det, nil)
	stubWindow(t, win)

	opts := testOptions(t.TempDir())
	opts.Headless = false

	var out bytes.Buffer
	sum, err := runCapture(context.Background(), logs.NewTestingLog(t), &out, io.Discard, opts)
	require.NoError(t, err)

	assert.Equal(t, facecap.Cancelled, sum.Reason)
	assert.Zero(t, sum.Saved)
	assert.Equal(t, 1, sum.Frames)
	assert.Equal(t, 1, win.shown)
	assert.True(t, dev.closed)
	assert.True(t, win.devClosed)
	assert.GreaterOrEqual(t, win.closed, 1)
	assert.True(t, det.closed)

	output := out.String()
	assert.Contains(t, output, "Cancel key pressed")
	assert.Contains(t, output, "CAPTURE SUMMARY")
	assert.Contains(t, output, "Stopped because:        cancelled")
}

func TestCapture_InterruptShouldStopHeadlessRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dev := &fakeDevice{frames: 1 << 20}
	stubCapture(t, dev, nil, &fakeDetector{noFaces: true}, nil)

	opts := testOptions(t.TempDir())
	opts.Delay = 5 * time.Millisecond
	time.AfterFunc(30*time.Millisecond, cancel)

	var out bytes.Buffer
	sum, err := runCapture(ctx, logs.NewTestingLog(t), &out, io.Discard, opts)
	require.NoError(t, err)

	assert.Equal(t, facecap.Cancelled, sum.Reason)
	assert.Less(t, dev.read, 1<<20)
	assert.True(t, dev.closed)
	assert.Contains(t, out.String(), "CAPTURE SUMMARY")
}

func TestCapture_UnwritableDirShouldFailBeforeCapture(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0500))
	t.Cleanup(func() { os.Chmod(dir, 0755) })

	dev := &fakeDevice{frames: 10}
	stubCapture(t, dev, nil, &fakeDetector{}, nil)

	opts := testOptions(dir)
	opts.Probe = true
	_, err := runCapture(context.Background(), logs.NewTestingLog(t), io.Discard, io.Discard, opts)
	assert.ErrorIs(t, err, facecap.ErrDirUnwritable)
	assert.Zero(t, dev.read)
	assert.True(t, dev.closed)
}
