package facecap

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/esimov/facecap/utils"
)

// ExecDir returns the directory of the running executable. The cascade files
// and the samples directory are looked up relative to it.
func ExecDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// ResolvePath resolves a model or output location. Absolute paths are returned unchanged,
// relative paths are joined with the executable's directory and URLs are downloaded
// into a temporary file. The returned cleanup function removes any temporary file and
// must be called once the path is no longer needed.
func ResolvePath(name string) (path string, cleanup func(), err error) {
	cleanup = func() {}

	// Check if the source path is a local file or URL.
	if utils.IsValidUrl(name) {
		f, err := utils.DownloadFile(name)
		if err != nil {
			return "", cleanup, fmt.Errorf("%w: %v", ErrModelLoad, err)
		}
		f.Close()
		return f.Name(), func() { os.Remove(f.Name()) }, nil
	}

	if filepath.IsAbs(name) {
		return name, cleanup, nil
	}

	dir, err := ExecDir()
	if err != nil {
		return "", cleanup, fmt.Errorf("unable to locate the executable: %w", err)
	}
	return filepath.Join(dir, name), cleanup, nil
}
