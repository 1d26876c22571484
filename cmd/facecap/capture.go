package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/esimov/facecap"
	"github.com/esimov/facecap/camera"
	"github.com/esimov/facecap/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const (
	defaultSamplesDir   = "samples"
	defaultPigoCascade  = "facefinder"
	backendPigo         = "pigo"
	backendHaar         = "haar"
	spinnerRefreshDelay = 80 * time.Millisecond
)

// captureOptions holds the flags of the capture command.
type captureOptions struct {
	Device   int
	Width    int
	Height   int
	Detector string
	Cascade  string

	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
	MinQuality   float64
	Angle        float64

	ID       string
	Out      string
	Probe    bool
	Resume   bool
	List     bool
	Max      int
	Delay    time.Duration
	Format   string
	Quality  int
	Size     int
	Headless bool
	Progress bool
}

// frameDevice is a frame source holding an OS resource.
type frameDevice interface {
	facecap.FrameSource
	io.Closer
}

// window is a display holding an OS resource.
type window interface {
	facecap.Display
	io.Closer
}

// These hooks are replaced in tests.
var (
	openDevice = func(index, width, height int) (frameDevice, error) {
		return camera.Open(index, width, height)
	}
	openWindow = func(title string) window {
		return camera.NewWindow(title)
	}
	loadDetector = newDetector
	askID        = func(out io.Writer) (string, error) {
		return readID(os.Stdin, out, isInteractive())
	}
)

var captureOpts captureOptions

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture face samples from the webcam",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logs.NewLog()
		if err != nil {
			return err
		}
		_, err = runCapture(cmd.Context(), log, cmd.OutOrStdout(), cmd.ErrOrStderr(), captureOpts)
		return err
	},
}

func init() {
	f := captureCmd.Flags()
	f.IntVar(&captureOpts.Device, "device", 0, "Camera device index")
	f.IntVar(&captureOpts.Width, "width", 640, "Requested frame width")
	f.IntVar(&captureOpts.Height, "height", 480, "Requested frame height")
	f.StringVar(&captureOpts.Detector, "detector", backendPigo, "Face detector backend: pigo or haar")
	f.StringVar(&captureOpts.Cascade, "cascade", "", "Cascade file path or URL (default: facefinder or "+camera.DefaultHaarCascade+" next to the executable)")
	f.Float64Var(&captureOpts.ScaleFactor, "scale", 0, "Detection scale factor (default: 1.1 for pigo, 1.3 for haar)")
	f.IntVar(&captureOpts.MinNeighbors, "neighbors", 5, "Minimum neighbors of a haar detection")
	f.IntVar(&captureOpts.MinSize, "min-size", 0, "Minimum face size in pixels (default: 60 for pigo, none for haar)")
	f.Float64Var(&captureOpts.MinQuality, "min-quality", float64(facecap.DefaultPigoParams().MinQuality), "Minimum quality of a pigo detection")
	f.Float64Var(&captureOpts.Angle, "angle", 0, "Plane rotated faces angle for pigo (0.0 to 1.0)")
	f.StringVar(&captureOpts.ID, "id", "", "User ID (prompted for if empty)")
	f.StringVarP(&captureOpts.Out, "out", "o", "", "Samples directory (default: samples next to the executable)")
	f.BoolVar(&captureOpts.Probe, "probe", false, "Check that the samples directory is writable before capturing")
	f.BoolVar(&captureOpts.Resume, "resume", false, "Number the new samples after the existing ones of the same user")
	f.BoolVar(&captureOpts.List, "list", false, "List the collected samples after the capture")
	f.IntVar(&captureOpts.Max, "max", facecap.MaxSamples, "Number of samples to collect")
	f.DurationVar(&captureOpts.Delay, "delay", facecap.DefaultKeyDelay, "Key polling delay after each frame")
	f.StringVar(&captureOpts.Format, "format", "jpg", "Sample file format: "+strings.Join(facecap.SampleFormats, ", "))
	f.IntVar(&captureOpts.Quality, "quality", 95, "JPEG quality of the samples")
	f.IntVar(&captureOpts.Size, "size", 0, "Resize the samples to size x size pixels (0 keeps the detected size)")
	f.BoolVar(&captureOpts.Headless, "headless", false, "Do not open the preview window")
	f.BoolVar(&captureOpts.Progress, "progress", false, "Show a progress bar of the collected samples")

	rootCmd.AddCommand(captureCmd)
}

// runCapture opens the device, loads the detector, prepares the session and runs
// the capture loop until ctx is done or the loop terminates. Only the setup
// failures are returned; the loop outcome is reported in the printed summary.
func runCapture(ctx context.Context, log logs.Log, stdout, stderr io.Writer, opts captureOptions) (*facecap.Summary, error) {
	proc := facecap.NewProcessor(log, stdout)
	proc.MaxSamples = opts.Max
	proc.KeyDelay = opts.Delay
	proc.Format = strings.ToLower(opts.Format)
	proc.Quality = opts.Quality
	proc.SampleSize = opts.Size
	if err := proc.Validate(); err != nil {
		return nil, err
	}
	if opts.Detector != backendPigo && opts.Detector != backendHaar {
		return nil, fmt.Errorf("unknown detector backend: %q", opts.Detector)
	}

	spinner := utils.NewSpinner(stderr, fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ FACECAP", utils.StatusMessage),
		utils.DecorateText("⇢ opening the camera...", utils.DefaultMessage),
	), spinnerRefreshDelay, true)
	spinner.Start()
	defer spinner.Stop()

	dev, err := openDevice(opts.Device, opts.Width, opts.Height)
	if err != nil {
		spinner.StopMsg = utils.DecorateText("✘ Could not open the camera\n", utils.ErrorMessage)
		return nil, err
	}
	defer dev.Close()

	spinner.Message(fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ FACECAP", utils.StatusMessage),
		utils.DecorateText("⇢ loading the face detector...", utils.DefaultMessage),
	))
	det, err := loadDetector(opts)
	if err != nil {
		spinner.StopMsg = utils.DecorateText("✘ Could not load the face detector\n", utils.ErrorMessage)
		return nil, err
	}
	defer det.Close()

	spinner.StopMsg = utils.DecorateText("✔ Camera and face detector ready\n", utils.SuccessMessage)
	spinner.Stop()

	id := strings.TrimSpace(opts.ID)
	if id == "" {
		if id, err = askID(stdout); err != nil {
			return nil, err
		}
	}

	dir, err := samplesDir(opts.Out)
	if err != nil {
		return nil, err
	}
	sess := facecap.NewSession(id, dir)
	if err := prepareSession(log, stdout, sess, opts); err != nil {
		return nil, err
	}

	var (
		disp facecap.Display = facecap.NoDisplay{}
		win  window
	)
	if !opts.Headless {
		win = openWindow(camera.DefaultTitle)
		defer win.Close()
		disp = win
	}
	if opts.Progress {
		proc.Progress = progressbar.NewOptions(proc.MaxSamples,
			progressbar.OptionSetDescription("📸 Collecting samples"),
			progressbar.OptionSetWriter(stderr),
			progressbar.OptionShowCount(),
		)
	}

	fmt.Fprintf(stdout, "\n%s\n", utils.DecorateText(
		fmt.Sprintf("Collecting %d samples of user %s. Look at the camera, press ESC or Ctrl-C to stop.", proc.MaxSamples, id),
		utils.StatusMessage,
	))

	sum, err := proc.Run(ctx, dev, det, disp, sess)
	if err != nil && !errors.Is(err, facecap.ErrRuntimeFault) {
		return nil, err
	}

	// The device and the window are released before the summary is printed.
	dev.Close()
	if win != nil {
		win.Close()
	}

	printSummary(stdout, sum)
	if opts.List {
		if err := listSamples(stdout, sess); err != nil {
			log.Warnf("Unable to list the samples: %v", err)
		}
	}
	return sum, nil
}

// prepareSession creates the samples directory and sets the numbering of the new samples.
func prepareSession(log logs.Log, out io.Writer, sess *facecap.Session, opts captureOptions) error {
	created, err := sess.Prepare(opts.Probe)
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "Created samples directory: %s\n", sess.Dir)
	} else {
		fmt.Fprintf(out, "Using existing samples directory: %s\n", sess.Dir)
	}

	if opts.Resume {
		if err := sess.Resume(); err != nil {
			return err
		}
		if sess.Offset > 0 {
			fmt.Fprintf(out, "Resuming after sample %d\n", sess.Offset)
		}
		return nil
	}

	existing, err := sess.Existing()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		log.Warnf("%d samples of user %s already exist in %s and may be overwritten (use --resume to keep them)",
			len(existing), sess.ID, sess.Dir)
	}
	return nil
}

// newDetector loads the face detector backend selected by the options.
func newDetector(opts captureOptions) (facecap.Detector, error) {
	name := opts.Cascade
	if name == "" {
		name = defaultPigoCascade
		if opts.Detector == backendHaar {
			name = camera.DefaultHaarCascade
		}
	}
	path, cleanup, err := facecap.ResolvePath(name)
	if err != nil {
		return nil, err
	}
	// The cascade is read completely when the detector is created.
	defer cleanup()

	switch opts.Detector {
	case backendHaar:
		params := camera.DefaultHaarParams()
		if opts.ScaleFactor > 0 {
			params.ScaleFactor = opts.ScaleFactor
		}
		params.MinNeighbors = opts.MinNeighbors
		params.MinSize = opts.MinSize
		return camera.NewHaarDetector(path, params)
	default:
		params := facecap.DefaultPigoParams()
		if opts.ScaleFactor > 0 {
			params.ScaleFactor = opts.ScaleFactor
		}
		if opts.MinSize > 0 {
			params.MinSize = opts.MinSize
		}
		params.MinQuality = float32(opts.MinQuality)
		params.Angle = opts.Angle
		return facecap.NewPigoDetector(path, params)
	}
}

// printSummary prints the outcome of the capture run.
func printSummary(w io.Writer, sum *facecap.Summary) {
	fmt.Fprintf(w, "\n%s\n", utils.Separator("=", 50))
	fmt.Fprintln(w, utils.DecorateText("CAPTURE SUMMARY", utils.StatusMessage))
	fmt.Fprintln(w, utils.Separator("=", 50))
	fmt.Fprintf(w, "Frames processed:       %d\n", sum.Frames)
	fmt.Fprintf(w, "Frames with faces:      %d\n", sum.FramesWithFaces)
	fmt.Fprintf(w, "Samples saved:          %s\n", utils.DecorateText(fmt.Sprint(sum.Saved), utils.SuccessMessage))
	if sum.Failed > 0 {
		fmt.Fprintf(w, "Samples failed:         %s\n", utils.DecorateText(fmt.Sprint(sum.Failed), utils.ErrorMessage))
	}
	fmt.Fprintf(w, "Stopped because:        %s\n", sum.Reason)
	fmt.Fprintf(w, "Samples directory:      %s\n", sum.Dir)
	fmt.Fprintf(w, "Elapsed time:           %s\n", utils.FormatTime(sum.Elapsed))
	fmt.Fprintln(w, utils.Separator("=", 50))
}
