package actions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/go-github/v61/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const statusCompleted = "completed"

var (
	ErrWorkflowNotFound = errors.New("workflow not found")
	ErrNoCompletedRuns  = errors.New("no completed workflow runs found")
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrArtifactExpired  = errors.New("artifact expired")
	ErrRateLimited      = errors.New("rate limit exceeded")
)

type Workflow struct {
	ID   int64
	Name string
	Path string
}

type Run struct {
	ID        int64
	RunNumber int
	Status    string
}

type Artifact struct {
	ID          int64
	Name        string
	SizeInBytes int64
	Expired     bool
}

// TransportError wraps a failed call to the GitHub API.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

type Client struct {
	gh   *github.Client
	blob *http.Client
	log  zerolog.Logger
}

type Option func(*Client) error

// WithBaseURL points the client at a different API root, e.g. a GitHub
// Enterprise server or a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		u, err := url.Parse(baseURL)
		if err != nil {
			return fmt.Errorf("error parsing base URL: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		c.gh.BaseURL = u
		return nil
	}
}

// WithBlobClient sets the client used to fetch archives from the
// redirect location the API hands out.
func WithBlobClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.blob = hc
		return nil
	}
}

func NewClient(ctx context.Context, token string, log zerolog.Logger, opts ...Option) (*Client, error) {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token, TokenType: "Bearer"},
	)
	tc := oauth2.NewClient(ctx, ts)

	c := &Client{
		gh:   github.NewClient(tc),
		blob: http.DefaultClient,
		log:  log,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// GetWorkflow resolves a workflow by numeric id or by file name.
func (c *Client) GetWorkflow(ctx context.Context, owner, repo, id string) (Workflow, error) {
	var (
		workflow *github.Workflow
		err      error
	)

	if numericID, parseErr := strconv.ParseInt(id, 10, 64); parseErr == nil {
		workflow, _, err = c.gh.Actions.GetWorkflowByID(ctx, owner, repo, numericID)
	} else {
		workflow, _, err = c.gh.Actions.GetWorkflowByFileName(ctx, owner, repo, id)
	}
	if err != nil {
		if isNotFound(err) {
			return Workflow{}, fmt.Errorf("%w: %s/%s %s", ErrWorkflowNotFound, owner, repo, id)
		}
		return Workflow{}, wrap("get workflow", err)
	}

	c.log.Debug().Int64("id", workflow.GetID()).Str("name", workflow.GetName()).Msg("Workflow resolved")
	return Workflow{
		ID:   workflow.GetID(),
		Name: workflow.GetName(),
		Path: workflow.GetPath(),
	}, nil
}

// ListRuns returns the first page of runs for a workflow.
func (c *Client) ListRuns(ctx context.Context, owner, repo string, workflowID int64) ([]Run, error) {
	workflowRuns, _, err := c.gh.Actions.ListWorkflowRunsByID(ctx, owner, repo, workflowID, &github.ListWorkflowRunsOptions{})
	if err != nil {
		return nil, wrap("list workflow runs", err)
	}

	runs := make([]Run, 0, len(workflowRuns.WorkflowRuns))
	for _, run := range workflowRuns.WorkflowRuns {
		runs = append(runs, Run{
			ID:        run.GetID(),
			RunNumber: run.GetRunNumber(),
			Status:    run.GetStatus(),
		})
	}

	c.log.Debug().Int("count", len(runs)).Msg("Workflow runs listed")
	return runs, nil
}

// ListArtifacts returns the first page of artifacts attached to a run.
func (c *Client) ListArtifacts(ctx context.Context, owner, repo string, runID int64) ([]Artifact, error) {
	list, _, err := c.gh.Actions.ListWorkflowRunArtifacts(ctx, owner, repo, runID, &github.ListOptions{})
	if err != nil {
		return nil, wrap("list workflow run artifacts", err)
	}

	artifacts := make([]Artifact, 0, len(list.Artifacts))
	for _, artifact := range list.Artifacts {
		artifacts = append(artifacts, Artifact{
			ID:          artifact.GetID(),
			Name:        artifact.GetName(),
			SizeInBytes: artifact.GetSizeInBytes(),
			Expired:     artifact.GetExpired(),
		})
	}

	c.log.Debug().Int("count", len(artifacts)).Msg("Artifacts listed")
	return artifacts, nil
}

// DownloadArtifact fetches the zip archive of an artifact into memory.
func (c *Client) DownloadArtifact(ctx context.Context, owner, repo string, artifactID int64) ([]byte, error) {
	artifactDownloadUrl, _, err := c.gh.Actions.DownloadArtifact(ctx, owner, repo, artifactID, 1)
	if err != nil {
		return nil, wrap("get artifact download url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifactDownloadUrl.String(), nil)
	if err != nil {
		return nil, wrap("download artifact", err)
	}

	resp, err := c.blob.Do(req)
	if err != nil {
		return nil, wrap("download artifact", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, wrap("download artifact", fmt.Errorf("unexpected status %s", resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrap("download artifact", err)
	}

	return data, nil
}

// LatestCompletedRun picks the completed run with the highest run number.
// When two runs share a number the first one seen is kept.
func LatestCompletedRun(runs []Run) (Run, error) {
	var (
		latest Run
		found  bool
	)

	for _, run := range runs {
		if run.Status != statusCompleted {
			continue
		}
		if !found || run.RunNumber > latest.RunNumber {
			latest = run
			found = true
		}
	}

	if !found {
		return Run{}, ErrNoCompletedRuns
	}
	return latest, nil
}

// FindArtifact returns the artifact whose name equals name exactly. If
// several match, the last one in the listing wins; the API does not
// promise an order, so neither does this.
func FindArtifact(artifacts []Artifact, name string) (Artifact, error) {
	var (
		match Artifact
		found bool
	)

	for _, artifact := range artifacts {
		if artifact.Name == name {
			match = artifact
			found = true
		}
	}

	if !found {
		return Artifact{}, fmt.Errorf("%w: %q", ErrArtifactNotFound, name)
	}
	if match.Expired {
		return Artifact{}, fmt.Errorf("%w: %q (id %d)", ErrArtifactExpired, name, match.ID)
	}
	return match, nil
}

func isNotFound(err error) bool {
	var errResp *github.ErrorResponse
	return errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound
}

func wrap(op string, err error) error {
	var rateLimitErr *github.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return &TransportError{Op: op, Err: fmt.Errorf("%w: %w", ErrRateLimited, err)}
	}
	return &TransportError{Op: op, Err: err}
}
