package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/percona/percona-collection-migrator/errors"
)

// errCommandTimeout is returned when the command execution times out.
var errCommandTimeout = errors.New("command timed out")

// binaryPath holds the path to the compiled pcmm binary.
//
//nolint:gochecknoglobals
var binaryPath string

// TestMain builds the binary once before running all tests.
func TestMain(m *testing.M) {
	code := runTestMain(m)
	os.Exit(code)
}

func runTestMain(m *testing.M) int {
	tmpDir, err := os.MkdirTemp("", "pcmm-cli-test")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)

		return 1
	}
	defer os.RemoveAll(tmpDir)

	binaryPath = filepath.Join(tmpDir, "pcmm")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(ctx, "go", "build", "-race", "-o", binaryPath, ".")
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build binary: %v\n", err)

		return 1
	}

	return m.Run()
}

// capturedRequest holds the details of an HTTP request captured by the mock server.
type capturedRequest struct {
	Method    string
	Path      string
	RequestID string
	Body      []byte
}

// mockPCMMServer creates a mock pcmm HTTP server that captures requests.
func mockPCMMServer(t *testing.T, response any) (*httptest.Server, *capturedRequest, *sync.Mutex) {
	t.Helper()

	var captured capturedRequest
	var mu sync.Mutex

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()

		captured.Method = r.Method
		captured.Path = r.URL.Path
		captured.RequestID = r.Header.Get("X-Request-Id")

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read request body: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)

			return
		}
		captured.Body = body

		w.Header().Set("Content-Type", "application/json")

		encErr := json.NewEncoder(w).Encode(response)
		if encErr != nil {
			t.Errorf("failed to encode response: %v", encErr)
		}
	}))

	return server, &captured, &mu
}

func extractPort(serverURL string) string {
	parts := strings.Split(serverURL, ":")
	if len(parts) < 3 {
		return ""
	}

	return parts[len(parts)-1]
}

// runPCMM runs the pcmm binary with the given arguments and environment variables.
func runPCMM(t *testing.T, args []string, env map[string]string) (string, string, error) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, binaryPath, args...)

	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return stdout.String(), stderr.String(), errCommandTimeout
	}

	return stdout.String(), stderr.String(), err
}

type mockResult struct {
	DatabaseName   string `json:"databaseName"`
	CollectionName string `json:"collectionName"`
	Operation      string `json:"operation"`
	Status         string `json:"status"`
	Count          *int64 `json:"count,omitempty"`
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	stdout, stderr, err := runPCMM(t, []string{"version"}, nil)
	require.NoError(t, err, "stderr: %s", stderr)

	assert.Contains(t, stdout, "Version:")
	assert.Contains(t, stdout, "GoVersion:")
	assert.NotContains(t, stderr, "Version:")
}

func TestRemoteOperationCommands(t *testing.T) {
	t.Parallel()

	tests := []struct {
		command    string
		collection string
		operation  string
	}{
		{command: "migrate", collection: "orders", operation: "executeMigration"},
		{command: "migrate", collection: "", operation: "executeMigration"},
		{command: "check", collection: "orders", operation: "checkConnectivity"},
		{command: "size", collection: "orders", operation: "getCollectionSize"},
		{command: "drop", collection: "orders", operation: "dropCollection"},
	}

	for _, tt := range tests {
		t.Run(tt.command+"/"+tt.collection, func(t *testing.T) {
			t.Parallel()

			response := mockResult{
				DatabaseName:   "app",
				CollectionName: tt.collection,
				Operation:      tt.operation,
				Status:         "Successful",
			}

			server, captured, mu := mockPCMMServer(t, response)
			defer server.Close()

			args := []string{
				"--port", extractPort(server.URL),
				tt.command,
				"--remote",
				"--env", "dev",
				"--database", "app",
				"--request-id", "req-42",
			}
			if tt.collection != "" {
				args = append(args, "--collection", tt.collection)
			}

			stdout, stderr, err := runPCMM(t, args, nil)
			require.NoError(t, err, "stderr: %s", stderr)

			mu.Lock()
			defer mu.Unlock()

			assert.Equal(t, http.MethodPost, captured.Method)
			assert.Equal(t, "/invoke", captured.Path)
			assert.Equal(t, "req-42", captured.RequestID)

			var body map[string]any
			require.NoError(t, json.Unmarshal(captured.Body, &body))
			assert.Equal(t, map[string]any{
				"environment":    "dev",
				"databaseName":   "app",
				"collectionName": tt.collection,
				"operation":      tt.operation,
			}, body)

			assert.Contains(t, stdout, `"status": "Successful"`)
			assert.Contains(t, stdout, `"operation": "`+tt.operation+`"`)
		})
	}
}

func TestRemoteSizeReportsCount(t *testing.T) {
	t.Parallel()

	count := int64(1234)
	response := mockResult{
		DatabaseName:   "app",
		CollectionName: "orders",
		Operation:      "getCollectionSize",
		Status:         "Successful",
		Count:          &count,
	}

	server, _, _ := mockPCMMServer(t, response)
	defer server.Close()

	stdout, stderr, err := runPCMM(t, []string{
		"--port", extractPort(server.URL),
		"size", "--remote", "--env", "dev", "--database", "app", "--collection", "orders",
	}, nil)
	require.NoError(t, err, "stderr: %s", stderr)

	assert.Contains(t, stdout, `"count": 1234`)
}

func TestRemoteFailedOperationExitsNonZero(t *testing.T) {
	t.Parallel()

	response := mockResult{
		DatabaseName:   "app",
		CollectionName: "orders",
		Operation:      "executeMigration",
		Status:         "Failed with: Source Connectivity Test Failed",
	}

	server, _, _ := mockPCMMServer(t, response)
	defer server.Close()

	stdout, _, err := runPCMM(t, []string{
		"--port", extractPort(server.URL),
		"migrate", "--remote", "--env", "dev", "--database", "app", "--collection", "orders",
	}, nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, errCommandTimeout)

	assert.Contains(t, stdout, `"status": "Failed with: Source Connectivity Test Failed"`)
}

func TestMissingEnvironmentsFile(t *testing.T) {
	t.Parallel()

	missing := filepath.Join(t.TempDir(), "missing.yaml")

	_, stderr, err := runPCMM(t, []string{
		"--config", missing,
		"--secrets-provider", "env",
		"check", "--env", "dev", "--database", "app", "--collection", "orders",
	}, nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, errCommandTimeout)

	assert.Contains(t, stderr, "load environments")
}

func TestInvalidConfig(t *testing.T) {
	t.Parallel()

	_, stderr, err := runPCMM(t, []string{"check"}, map[string]string{
		"PCMM_NUM_PARALLEL_COLLECTIONS": "1000",
	})
	require.Error(t, err)

	assert.Contains(t, stderr, "parallel collections 1000 is outside")
}
