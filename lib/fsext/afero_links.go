package fsext

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// Fs represents a file system
type Fs = afero.Fs

// FilePathSeparator is the FilePathSeparator to be used within a file system
const FilePathSeparator = afero.FilePathSeparator

// NewMemMapFs returns a Fs that is in memory
func NewMemMapFs() Fs {
	return afero.NewMemMapFs()
}

// NewOsFs returns a new wrapped os.Fs
func NewOsFs() Fs {
	return afero.NewOsFs()
}

// NewReadOnlyFs returns a Fs wrapping the provided one and returning error on any not read operation.
func NewReadOnlyFs(fs Fs) Fs {
	return afero.NewReadOnlyFs(fs)
}

// ReadFile reads the whole file from the filesystem
func ReadFile(fs Fs, filename string) ([]byte, error) {
	return afero.ReadFile(fs, filename)
}

// WriteFile writes data to filename, creating the parent directories if needed.
func WriteFile(fs Fs, filename string, data []byte, perm fs.FileMode) error {
	if err := fs.MkdirAll(filepath.Dir(filename), 0o751); err != nil {
		return err
	}
	return afero.WriteFile(fs, filename, data, perm)
}

// Exists checks if the provided path exists on the filesystem
func Exists(fs Fs, path string) (bool, error) {
	return afero.Exists(fs, path)
}

// IsDir checks if the provided path is a directory
func IsDir(fs Fs, path string) (bool, error) {
	return afero.IsDir(fs, path)
}

// IsNotExist is os.IsNotExist, afero returns the same errors os does.
func IsNotExist(err error) bool {
	return os.IsNotExist(err)
}
