package logger

import (
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// DebugFile receives a copy of every log line when debug logging is on.
const DebugFile = "debug.log"

// New builds the console logger. With debug set, the level drops to debug
// and every line is also written to DebugFile on fs. The returned func
// closes that file.
func New(console io.Writer, fs afero.Fs, debug bool) (zerolog.Logger, func() error, error) {
	consoleWriter := zerolog.ConsoleWriter{Out: console, TimeFormat: time.RFC3339}

	if !debug {
		log := zerolog.New(consoleWriter).Level(zerolog.InfoLevel).With().Timestamp().Logger()
		return log, func() error { return nil }, nil
	}

	file, err := fs.Create(DebugFile)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("error creating %s: %w", DebugFile, err)
	}

	writer := zerolog.MultiLevelWriter(consoleWriter, file)
	log := zerolog.New(writer).Level(zerolog.DebugLevel).With().Timestamp().Logger()
	return log, file.Close, nil
}
