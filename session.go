package facecap

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// samplePrefix is the common prefix of every sample file name.
const samplePrefix = "face"

// Session holds the state of a single capture run: the user identifier, the
// samples directory and the running counters. It is not persisted.
type Session struct {
	ID  string
	Dir string
	// Offset is added to the sample counter when naming the files.
	// It is zero unless the session resumes a previous run.
	Offset int

	Count           int // samples attempted in this run
	Saved           int
	Failed          int
	Frames          int
	FramesWithFaces int
}

// Sample describes a sample file found in the samples directory.
type Sample struct {
	Path  string
	Index int
}

// NewSession creates a new session. The identifier is used verbatim in the file names.
func NewSession(id, dir string) *Session {
	return &Session{ID: id, Dir: dir}
}

// SampleName returns the file name of the n-th sample: face.<id>.<n>.<ext>.
func (s *Session) SampleName(n int, ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		ext = "jpg"
	}
	return fmt.Sprintf("%s.%s.%d.%s", samplePrefix, s.ID, n, ext)
}

// SamplePath returns the full path of the n-th sample.
func (s *Session) SamplePath(n int, ext string) string {
	return filepath.Join(s.Dir, s.SampleName(n, ext))
}

// Prepare makes sure the samples directory exists. It reports whether the
// directory had to be created. When probe is set a temporary file is created
// and removed to check the directory is writable.
func (s *Session) Prepare(probe bool) (created bool, err error) {
	info, err := os.Stat(s.Dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return false, fmt.Errorf("%w: %s is not a directory", ErrDirUnwritable, s.Dir)
		}
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(s.Dir, 0755); err != nil {
			return false, fmt.Errorf("%w: %v", ErrDirUnwritable, err)
		}
		created = true
	default:
		return false, fmt.Errorf("%w: %v", ErrDirUnwritable, err)
	}

	if probe {
		f, err := os.CreateTemp(s.Dir, ".write-test-*")
		if err != nil {
			return created, fmt.Errorf("%w: %v", ErrDirUnwritable, err)
		}
		f.Close()
		if err := os.Remove(f.Name()); err != nil {
			return created, fmt.Errorf("%w: %v", ErrDirUnwritable, err)
		}
	}
	return created, nil
}

// Existing lists the samples of this session's identifier already present in
// the samples directory, sorted by their index.
func (s *Session) Existing() ([]Sample, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	prefix := samplePrefix + "." + s.ID + "."
	var samples []Sample
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		rest := strings.TrimPrefix(e.Name(), prefix)
		idx, ext, ok := strings.Cut(rest, ".")
		if !ok || !isValidFormat(ext) {
			continue
		}
		n, err := strconv.Atoi(idx)
		if err != nil {
			continue
		}
		samples = append(samples, Sample{Path: filepath.Join(s.Dir, e.Name()), Index: n})
	}
	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Index == samples[j].Index {
			return samples[i].Path < samples[j].Path
		}
		return samples[i].Index < samples[j].Index
	})
	return samples, nil
}

// Resume sets the offset after the highest sample index already saved for the
// identifier, so a new run does not overwrite the files of a previous one.
func (s *Session) Resume() error {
	samples, err := s.Existing()
	if err != nil {
		return err
	}
	if len(samples) > 0 {
		s.Offset = samples[len(samples)-1].Index
	}
	return nil
}
