package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"artifact-downloader/src/settings"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGitHub(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("GET /repos/octo/app/actions/workflows/build.yml", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":123,"name":"Build"}`)
	})
	mux.HandleFunc("GET /repos/octo/app/actions/workflows/123/runs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count":2,"workflow_runs":[
			{"id":1,"run_number":41,"status":"completed"},
			{"id":2,"run_number":42,"status":"completed"}]}`)
	})
	mux.HandleFunc("GET /repos/octo/app/actions/runs/2/artifacts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count":1,"artifacts":[{"id":9,"name":"build","size_in_bytes":4}]}`)
	})
	mux.HandleFunc("GET /repos/octo/app/actions/artifacts/9/zip", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, server.URL+"/blob/9", http.StatusFound)
	})
	mux.HandleFunc("GET /blob/9", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("PK\x03\x04"))
	})

	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	t.Setenv("TOKEN_PAT", "")
	t.Setenv("ARTIFACT_DOWNLOADER_PAT", "")
	t.Setenv("ARTIFACT_DOWNLOADER_DEBUG", "")

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand(&stdout, &stderr, fs)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String() + stderr.String(), err
}

func TestRootCommand_Downloads(t *testing.T) {
	var requests atomic.Int32
	server := newGitHub(t, &requests)
	fs := afero.NewMemMapFs()

	output, err := execute(t, fs,
		"--api-url="+server.URL,
		"-u=octo", "-r=app", "-a=build", "-w=build.yml", "-o=out", "-p=secret",
		"--unknown=1",
	)
	require.NoError(t, err)
	assert.Contains(t, output, "Unknown argument")
	assert.Contains(t, output, "Artifact downloaded successfully")

	data, err := afero.ReadFile(fs, filepath.Join("out", "build-42.zip"))
	require.NoError(t, err)
	assert.Equal(t, []byte("PK\x03\x04"), data)
	assert.EqualValues(t, 5, requests.Load())
}

func TestRootCommand_DebugLog(t *testing.T) {
	var requests atomic.Int32
	server := newGitHub(t, &requests)
	fs := afero.NewMemMapFs()

	_, err := execute(t, fs,
		"--api-url="+server.URL,
		"--user=octo", "--repository=app", "--artifact=build", "--workflow=build.yml",
		"--output=out", "--pat=secret", "--overwrite", "--debug",
	)
	require.NoError(t, err)

	exists, err := afero.Exists(fs, filepath.Join("out", "build.zip"))
	require.NoError(t, err)
	assert.True(t, exists)

	debugLog, err := afero.ReadFile(fs, "debug.log")
	require.NoError(t, err)
	assert.Contains(t, string(debugLog), "Workflow runs listed")
}

func TestRootCommand_DebugLogIncludesArgumentWarnings(t *testing.T) {
	fs := afero.NewMemMapFs()

	output, err := execute(t, fs, "--debug", "--bogus=1", "-u=octo")
	require.Error(t, err)
	assert.Contains(t, output, "Unknown argument")

	debugLog, err := afero.ReadFile(fs, "debug.log")
	require.NoError(t, err)
	assert.Contains(t, string(debugLog), `"message":"Unknown argument"`)
	assert.Contains(t, string(debugLog), `"argument":"--bogus"`)
	assert.Contains(t, string(debugLog), `"message":"Settings parsed"`)
	assert.Contains(t, string(debugLog), `"message":"Invalid settings"`)
}

func TestRootCommand_MissingSetting(t *testing.T) {
	var requests atomic.Int32
	server := newGitHub(t, &requests)

	output, err := execute(t, afero.NewMemMapFs(),
		"--api-url="+server.URL,
		"-u=octo", "-r=app", "-a=build", "-w=build.yml", "-o=out",
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, settings.ErrMissingSetting)
	assert.Contains(t, output, "personal access token is not set")
	assert.Contains(t, output, "Invalid settings")
	assert.NotContains(t, output, "Download failed")
	assert.Equal(t, 2, exitCode(err))
	assert.Zero(t, requests.Load())
}

func TestRootCommand_Help(t *testing.T) {
	output, err := execute(t, afero.NewMemMapFs(), "--help")
	require.NoError(t, err)
	assert.Contains(t, output, "--workflow")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(settings.ErrInvalidSetting))
	assert.Equal(t, 1, exitCode(fmt.Errorf("boom")))
}
