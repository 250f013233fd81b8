package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths contains the application paths. All relative paths are anchored at
// the executable directory, never the current working directory.
type Paths struct {
	ExecutableDir   string
	DataDir         string
	LogsDir         string
	CredentialsFile string
}

// GetPaths returns the application paths relative to the executable location
func GetPaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	// Resolve symlinks to get the actual executable location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve executable symlinks: %w", err)
	}
	return NewPaths(filepath.Dir(exe)), nil
}

// NewPaths lays out the application directories under base.
func NewPaths(base string) *Paths {
	return &Paths{
		ExecutableDir:   base,
		DataDir:         filepath.Join(base, "data"),
		LogsDir:         filepath.Join(base, "logs"),
		CredentialsFile: filepath.Join(base, "credentials.json"),
	}
}

// Resolve anchors a relative path at the executable directory. Absolute and
// empty paths are returned unchanged.
func (p *Paths) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.ExecutableDir, path)
}

// EnsureDirectories creates the data and log directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
