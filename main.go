package main

import (
	"context"
	"errors"
	"io"
	"os"

	"artifact-downloader/src/actions"
	"artifact-downloader/src/logger"
	"artifact-downloader/src/runner"
	"artifact-downloader/src/settings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand(os.Stdout, os.Stderr, afero.NewOsFs()).Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func newRootCommand(stdout, stderr io.Writer, fs afero.Fs) *cobra.Command {
	return &cobra.Command{
		Use:   "artifact-downloader --repository=NAME --user=NAME --artifact=NAME --workflow=ID --output=DIR --pat=TOKEN [--overwrite]",
		Short: "Download an artifact from the latest completed GitHub Actions workflow run",
		// Flags are NAME=VALUE tokens and unknown ones only warn, so parsing
		// is left to the settings package.
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), stdout, stderr, fs, append([]string{cmd.Name()}, args...))
		},
	}
}

func run(ctx context.Context, stdout, stderr io.Writer, fs afero.Fs, args []string) error {
	log, closeLog, err := logger.New(stderr, fs, settings.WantsDebug(args))
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := settings.Parse(args, stdout, log)
	if errors.Is(err, settings.ErrHelp) {
		return nil
	}
	if err != nil {
		log.Error().Err(err).Msg("Invalid arguments")
		return err
	}

	newAPI := func(ctx context.Context, token string) (runner.API, error) {
		var opts []actions.Option
		if s.APIURL != "" {
			opts = append(opts, actions.WithBaseURL(s.APIURL))
		}
		client, err := actions.NewClient(ctx, token, log, opts...)
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	path, err := runner.New(newAPI, fs, log).Run(ctx, s)
	if settings.IsConfigError(err) {
		log.Error().Err(err).Msg("Invalid settings")
		return err
	}
	if err != nil {
		log.Error().Err(err).Msg("Download failed")
		return err
	}

	log.Info().Str("path", path).Msg("Artifact downloaded successfully")
	return nil
}

func exitCode(err error) int {
	if settings.IsConfigError(err) {
		return 2
	}
	return 1
}
