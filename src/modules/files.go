package modules

import (
	"fmt"
	"os"

	"github.com/spf13/afero"
)

func MakeDir(fs afero.Fs, dir string) error {
	err := fs.MkdirAll(dir, 0o755)
	if err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	return nil
}

func FileExists(fs afero.Fs, path string) (bool, error) {
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return false, fmt.Errorf("error checking file: %w", err)
	}

	return exists, nil
}

func RemoveFile(fs afero.Fs, path string) error {
	err := fs.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("error removing file: %w", err)
	}

	return nil
}

// WriteFile creates path, or truncates it if it already exists, and writes
// data to it.
func WriteFile(fs afero.Fs, path string, data []byte) error {
	err := afero.WriteFile(fs, path, data, 0o644)
	if err != nil {
		return fmt.Errorf("error writing file: %w", err)
	}

	return nil
}
