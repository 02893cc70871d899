package downloader

import (
	"errors"
	"fmt"
	"path/filepath"

	"artifact-downloader/src/modules"

	"github.com/inhies/go-bytesize"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

var ErrWrite = errors.New("error saving artifact")

// WriteError is returned when the archive could not be written to disk.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%v %s: %v", ErrWrite, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func (e *WriteError) Is(target error) bool {
	return target == ErrWrite
}

// OutputFile returns where an artifact is saved: <dir>/<name>.zip when
// overwriting, <dir>/<name>-<runNumber>.zip otherwise.
func OutputFile(dir, name string, overwrite bool, runNumber int) string {
	if overwrite {
		return filepath.Join(dir, name+".zip")
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%d.zip", name, runNumber))
}

type Writer struct {
	fs  afero.Fs
	log zerolog.Logger
}

func NewWriter(fs afero.Fs, log zerolog.Logger) *Writer {
	return &Writer{fs: fs, log: log}
}

// Save writes data to path, creating the parent directory when needed. In
// overwrite mode an existing file is removed first. Either way the result
// holds exactly data.
func (w *Writer) Save(path string, data []byte, overwrite bool) error {
	if err := modules.MakeDir(w.fs, filepath.Dir(path)); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	exists, err := modules.FileExists(w.fs, path)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	if exists {
		if overwrite {
			w.log.Info().Str("path", path).Msg("Removing old file")
			if err := modules.RemoveFile(w.fs, path); err != nil {
				return &WriteError{Path: path, Err: err}
			}
		} else {
			w.log.Warn().Str("path", path).Msg("File for this run already exists, replacing it")
		}
	}

	if err := modules.WriteFile(w.fs, path, data); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	w.log.Info().
		Str("path", path).
		Str("size", bytesize.New(float64(len(data))).String()).
		Msg("Artifact saved")
	return nil
}
