package facecap

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/esimov/facecap/utils"
	"github.com/schollz/progressbar/v3"
)

const (
	// MaxSamples is the default number of samples collected in one run.
	MaxSamples = 100
	// KeyEscape is the key code of the escape key, the default cancel key.
	KeyEscape = 27
	// DefaultKeyDelay is the time spent polling the keyboard after every frame.
	DefaultKeyDelay = 100 * time.Millisecond
)

// FrameSource delivers the frames to process. Read returns an error
// (usually wrapping ErrFrameRead) when no more frames are available.
type FrameSource interface {
	Read() (image.Image, error)
}

// Display shows the annotated frames and polls the keyboard. WaitKey blocks
// for at most delay and returns the pressed key code or -1.
type Display interface {
	Show(img image.Image) error
	WaitKey(delay time.Duration) int
}

// NoDisplay is a Display used for headless runs. WaitKey only sleeps,
// so it still throttles the capture loop.
type NoDisplay struct{}

// Show implements the Display interface.
func (NoDisplay) Show(image.Image) error { return nil }

// WaitKey implements the Display interface.
func (NoDisplay) WaitKey(delay time.Duration) int {
	time.Sleep(delay)
	return -1
}

// Termination tells why the capture loop stopped.
type Termination int

const (
	Running Termination = iota
	Cancelled
	TargetReached
	StreamEnded
	Fault
)

func (t Termination) String() string {
	switch t {
	case Running:
		return "running"
	case Cancelled:
		return "cancelled"
	case TargetReached:
		return "target reached"
	case StreamEnded:
		return "end of stream"
	case Fault:
		return "fault"
	}
	return fmt.Sprintf("termination(%d)", int(t))
}

// Summary reports the outcome of a capture run.
type Summary struct {
	Frames          int
	FramesWithFaces int
	Samples         int
	Saved           int
	Failed          int
	Reason          Termination
	Dir             string
	Elapsed         time.Duration
}

// Processor holds the capture loop options.
type Processor struct {
	MaxSamples int
	KeyDelay   time.Duration
	CancelKey  int
	Format     string
	Quality    int
	SampleSize int
	Annotation Annotation
	Progress   *progressbar.ProgressBar
	Log        logs.Log
	Out        io.Writer

	create func(name string) (io.WriteCloser, error)
}

// NewProcessor returns a Processor initialized with the default options.
// Progress lines are written to out.
func NewProcessor(log logs.Log, out io.Writer) *Processor {
	return &Processor{
		MaxSamples: MaxSamples,
		KeyDelay:   DefaultKeyDelay,
		CancelKey:  KeyEscape,
		Format:     "jpg",
		Quality:    defaultQuality,
		Annotation: DefaultAnnotation(),
		Log:        log,
		Out:        out,
	}
}

// Validate checks the processor options before starting the capture.
func (p *Processor) Validate() error {
	switch {
	case p.Log == nil:
		return errors.New("a logger is required")
	case p.MaxSamples < 1:
		return fmt.Errorf("invalid number of samples: must be >= 1, got %d", p.MaxSamples)
	case p.KeyDelay <= 0:
		return fmt.Errorf("invalid key delay: must be positive, got %v", p.KeyDelay)
	case !isValidFormat(p.Format):
		return fmt.Errorf("%v file type not supported", p.Format)
	case p.Quality < 0 || p.Quality > 100:
		return fmt.Errorf("invalid JPEG quality: must be between 0 and 100, got %d", p.Quality)
	case p.SampleSize < 0:
		return fmt.Errorf("invalid sample size: %d", p.SampleSize)
	}
	return nil
}

// Run executes the capture loop until the cancel key is pressed or ctx is done,
// the number of samples reaches MaxSamples, the source runs out of frames or a fault occurs.
// The frame source, the detector and the display are owned by the caller,
// which is responsible for releasing them.
// An end of stream is a normal termination; only faults are returned as errors.
func (p *Processor) Run(ctx context.Context, src FrameSource, det Detector, disp Display, s *Session) (sum *Summary, err error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.New("a session is required")
	}
	if disp == nil {
		disp = NoDisplay{}
	}
	if p.create == nil {
		p.create = createFile
	}

	start := time.Now()
	sum = &Summary{Dir: s.Dir}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRuntimeFault, r)
			sum.Reason = Fault
		}
		if err != nil {
			p.Log.Errorf("Capture loop stopped after %d frames: %v", s.Frames, err)
		}
		if p.Progress != nil {
			p.Progress.Finish()
		}

		sum.Frames = s.Frames
		sum.FramesWithFaces = s.FramesWithFaces
		sum.Samples = s.Count
		sum.Saved = s.Saved
		sum.Failed = s.Failed
		sum.Elapsed = time.Since(start)
	}()

	for sum.Reason == Running {
		sum.Reason, err = p.step(ctx, src, det, disp, s)
	}
	return sum, err
}

// step processes a single frame and returns Running as long as the loop should continue.
func (p *Processor) step(ctx context.Context, src FrameSource, det Detector, disp Display, s *Session) (Termination, error) {
	if ctx.Err() != nil {
		p.printf("\n%s\n", utils.DecorateText("Capture interrupted - Stopping capture", utils.StatusMessage))
		return Cancelled, nil
	}

	frame, err := src.Read()
	if err != nil {
		p.printf("%s\n", utils.DecorateText("ERROR: Failed to read frame from camera", utils.ErrorMessage))
		p.Log.Warnf("Frame %d: %v", s.Frames+1, err)
		return StreamEnded, nil
	}
	s.Frames++

	gray := Grayscale(frame)
	faces, err := det.Detect(gray)
	if err != nil {
		return Fault, fmt.Errorf("%w: detection failed on frame %d: %v", ErrRuntimeFault, s.Frames, err)
	}
	if len(faces) > 0 {
		s.FramesWithFaces++
	}

	for _, r := range faces {
		// The limit is checked per face, so a crowded frame can't overshoot it.
		if s.Count >= p.MaxSamples {
			break
		}
		p.saveSample(s, gray, r)
	}

	status := fmt.Sprintf("Frame %d | Faces detected: %d | Samples: %d", s.Frames, len(faces), s.Count)
	if err := disp.Show(p.Annotation.Annotate(frame, faces, status)); err != nil {
		p.Log.Warnf("Unable to display frame %d: %v", s.Frames, err)
	}

	if key := disp.WaitKey(p.KeyDelay); key >= 0 && key == p.CancelKey {
		p.printf("\n%s\n", utils.DecorateText("Cancel key pressed - Stopping capture", utils.StatusMessage))
		return Cancelled, nil
	}
	if s.Count >= p.MaxSamples {
		p.printf("\n%s\n", utils.DecorateText(
			fmt.Sprintf("Target reached - %d samples captured", s.Count), utils.SuccessMessage))
		return TargetReached, nil
	}
	return Running, nil
}

// saveSample crops the face and writes it to the next sample file.
// A failed write is reported, but it never stops the capture.
func (p *Processor) saveSample(s *Session, gray *image.Gray, rect image.Rectangle) {
	s.Count++
	n := s.Offset + s.Count
	path := s.SamplePath(n, p.Format)

	if err := p.writeSample(path, gray, rect); err != nil {
		s.Failed++
		p.printf("%s\n", utils.DecorateText(
			fmt.Sprintf("✗ ERROR: Failed to save sample %d to: %s", n, path), utils.ErrorMessage))
		p.Log.Warnf("%v", err)
	} else {
		s.Saved++
		p.printf("%s %s\n", utils.DecorateText(fmt.Sprintf("✓ Sample %d saved:", n), utils.SuccessMessage), path)
	}

	if p.Progress != nil {
		if err := p.Progress.Set(s.Count); err != nil {
			p.Log.Warnf("Unable to update the progress bar: %v", err)
		}
	}
}

// writeSample encodes the grayscale face region into the file at path.
func (p *Processor) writeSample(path string, gray *image.Gray, rect image.Rectangle) error {
	face, err := cropFace(gray, rect, p.SampleSize)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSampleWrite, err)
	}

	w, err := p.create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSampleWrite, err)
	}
	if err := encodeImg(w, face, p.Format, p.Quality); err != nil {
		w.Close()
		// remove the partially written file
		os.Remove(path)
		return fmt.Errorf("%w: %s: %v", ErrSampleWrite, path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSampleWrite, path, err)
	}
	return nil
}

func (p *Processor) printf(format string, args ...any) {
	if p.Out == nil {
		return
	}
	fmt.Fprintf(p.Out, format, args...)
}

func createFile(name string) (io.WriteCloser, error) {
	return os.Create(name)
}
