package runner

import (
	"context"
	"fmt"

	"artifact-downloader/src/actions"
	"artifact-downloader/src/downloader"
	"artifact-downloader/src/settings"

	"github.com/inhies/go-bytesize"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// API is the subset of the GitHub Actions API the download needs.
type API interface {
	GetWorkflow(ctx context.Context, owner, repo, id string) (actions.Workflow, error)
	ListRuns(ctx context.Context, owner, repo string, workflowID int64) ([]actions.Run, error)
	ListArtifacts(ctx context.Context, owner, repo string, runID int64) ([]actions.Artifact, error)
	DownloadArtifact(ctx context.Context, owner, repo string, artifactID int64) ([]byte, error)
}

// NewAPIFunc builds an API authenticated with token. It is only called once
// the settings are valid.
type NewAPIFunc func(ctx context.Context, token string) (API, error)

type Runner struct {
	newAPI NewAPIFunc
	writer *downloader.Writer
	log    zerolog.Logger
}

func New(newAPI NewAPIFunc, fs afero.Fs, log zerolog.Logger) *Runner {
	return &Runner{
		newAPI: newAPI,
		writer: downloader.NewWriter(fs, log),
		log:    log,
	}
}

// Run downloads the configured artifact from the latest completed run of the
// workflow and returns the path it was saved to.
func (r *Runner) Run(ctx context.Context, s *settings.Settings) (string, error) {
	if err := s.Validate(); err != nil {
		return "", err
	}

	api, err := r.newAPI(ctx, s.Token)
	if err != nil {
		return "", fmt.Errorf("error creating client: %w", err)
	}

	r.log.Info().Str("workflow", s.WorkflowID).Msg("Getting workflow...")
	workflow, err := api.GetWorkflow(ctx, s.Owner, s.Repo, s.WorkflowID)
	if err != nil {
		return "", err
	}

	r.log.Info().Str("workflow", workflow.Name).Msg("Getting workflow latest run...")
	runs, err := api.ListRuns(ctx, s.Owner, s.Repo, workflow.ID)
	if err != nil {
		return "", err
	}

	run, err := actions.LatestCompletedRun(runs)
	if err != nil {
		return "", fmt.Errorf("%w for workflow %q", err, workflow.Name)
	}
	r.log.Info().Int("run", run.RunNumber).Int64("id", run.ID).Msg("Workflow run found")

	artifacts, err := api.ListArtifacts(ctx, s.Owner, s.Repo, run.ID)
	if err != nil {
		return "", err
	}

	artifact, err := actions.FindArtifact(artifacts, s.ArtifactName)
	if err != nil {
		return "", fmt.Errorf("%w in run #%d", err, run.RunNumber)
	}

	r.log.Info().
		Str("artifact", artifact.Name).
		Str("size", bytesize.New(float64(artifact.SizeInBytes)).String()).
		Msg("Downloading artifact...")
	data, err := api.DownloadArtifact(ctx, s.Owner, s.Repo, artifact.ID)
	if err != nil {
		return "", err
	}

	path := downloader.OutputFile(s.OutputPath, s.ArtifactName, s.Overwrite, run.RunNumber)
	if err := r.writer.Save(path, data, s.Overwrite); err != nil {
		return "", err
	}

	return path, nil
}
