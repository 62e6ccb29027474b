//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/knowpool/internal/testutil"
)

const testAPIKey = "kp_e2e_0123456789abcdef"

// E2ETestEnv holds the containers, binaries and running daemon for a test.
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	PostgresC  *testutil.PostgresContainer
	RustFSC    *testutil.RustFSContainer
	BinaryDir  string
	ServerURL  string
	Daemon     *exec.Cmd
	DaemonLog  *bytes.Buffer
	HTTPClient *http.Client
}

// SetupE2EEnv starts PostgreSQL and RustFS, builds both binaries and launches
// knowpoold serve against them.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	env := &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		PostgresC:  testutil.NewPostgresContainer(ctx, t),
		RustFSC:    testutil.NewRustFSContainer(ctx, t),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
	t.Cleanup(env.Cleanup)

	env.buildBinaries()

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}
	env.ServerURL = fmt.Sprintf("http://localhost:%d", port)
	env.startDaemon(port)

	return env
}

// Cleanup stops the daemon and releases containers and binaries.
func (e *E2ETestEnv) Cleanup() {
	if e.Daemon != nil && e.Daemon.Process != nil {
		_ = e.Daemon.Process.Signal(os.Interrupt)
		done := make(chan struct{})
		go func() {
			_ = e.Daemon.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			_ = e.Daemon.Process.Kill()
		}
		if e.T.Failed() {
			e.T.Logf("knowpoold output:\n%s", e.DaemonLog.String())
		}
	}
	if e.RustFSC != nil {
		_ = e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		_ = e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		_ = os.RemoveAll(e.BinaryDir)
	}
}

func (e *E2ETestEnv) buildBinaries() {
	tmpDir, err := os.MkdirTemp("", "knowpool-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	for _, name := range []string{"knowpoold", "knowpool"} {
		cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, name), "./cmd/"+name)
		cmd.Dir = "../.."
		if out, err := cmd.CombinedOutput(); err != nil {
			e.T.Fatalf("failed to build %s: %v\n%s", name, err, out)
		}
	}
}

func (e *E2ETestEnv) daemonEnv(port int) []string {
	return append(os.Environ(),
		"KNOWPOOL_PORT="+fmt.Sprint(port),
		"KNOWPOOL_STORE_DRIVER=postgres",
		"KNOWPOOL_DATABASE_URL="+e.PostgresC.ConnectionString(),
		"KNOWPOOL_API_KEY="+testAPIKey,
		"KNOWPOOL_S3_ENDPOINT="+e.RustFSC.Endpoint(),
		"KNOWPOOL_S3_ACCESS_KEY_ID="+testutil.RustFSCredential,
		"KNOWPOOL_S3_SECRET_ACCESS_KEY="+testutil.RustFSCredential,
		"KNOWPOOL_S3_BUCKET=e2e-snapshots",
		"KNOWPOOL_ACCUMULATION_POLL_INTERVAL=200ms",
		"KNOWPOOL_OPENAI_API_KEY=",
		"KNOWPOOL_SENTRY_DSN=",
	)
}

func (e *E2ETestEnv) startDaemon(port int) {
	e.DaemonLog = &bytes.Buffer{}
	cmd := exec.Command(filepath.Join(e.BinaryDir, "knowpoold"), "serve")
	cmd.Dir = e.BinaryDir
	cmd.Env = e.daemonEnv(port)
	cmd.Stdout = e.DaemonLog
	cmd.Stderr = e.DaemonLog
	if err := cmd.Start(); err != nil {
		e.T.Fatalf("failed to start knowpoold: %v", err)
	}
	e.Daemon = cmd

	waitForServer(e.T, e.ServerURL, 60*time.Second, e.DaemonLog)
}

// RunKnowpool runs the client CLI against the daemon.
func (e *E2ETestEnv) RunKnowpool(input string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "knowpool"), args...)
	cmd.Dir = e.BinaryDir
	cmd.Stdin = bytes.NewReader([]byte(input))
	cmd.Env = append(os.Environ(),
		"KNOWPOOL_API_KEY="+testAPIKey,
		"KNOWPOOL_API_URL="+e.ServerURL,
		"XDG_CONFIG_HOME="+e.BinaryDir,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// RunKnowpoold runs a one-shot daemon command against the same database.
func (e *E2ETestEnv) RunKnowpoold(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "knowpoold"), args...)
	cmd.Dir = e.BinaryDir
	cmd.Env = e.daemonEnv(0)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse is the server's JSON envelope.
type APIResponse struct {
	StatusCode int
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error,omitempty"`
	Code       string          `json:"code,omitempty"`
}

// Get performs an authenticated GET.
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest(http.MethodGet, path, nil, testAPIKey)
}

// Post performs an authenticated POST.
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest(http.MethodPost, path, body, testAPIKey)
}

// GetText performs an authenticated GET that expects a plain text body.
func (e *E2ETestEnv) GetText(path string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, e.ServerURL+path, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+testAPIKey)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, body)
	}
	return string(body), nil
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	apiResp := &APIResponse{}
	if err := json.Unmarshal(respBody, apiResp); err != nil {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, respBody)
	}
	apiResp.StatusCode = resp.StatusCode
	return apiResp, nil
}

// WaitForJob polls a queued session until the worker settles it.
func (e *E2ETestEnv) WaitForJob(id string, timeout time.Duration) (string, int) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := e.Get("/sessions/" + id)
		if err == nil && resp.StatusCode == http.StatusOK {
			var job struct {
				Status       string `json:"status"`
				EntriesSaved int    `json:"entriesSaved"`
			}
			if err := json.Unmarshal(resp.Data, &job); err == nil {
				if job.Status == "completed" || job.Status == "failed" {
					return job.Status, job.EntriesSaved
				}
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	e.T.Fatalf("job %s did not settle within %v", id, timeout)
	return "", 0
}

func waitForServer(t *testing.T, url string, timeout time.Duration, log *bytes.Buffer) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v\n%s", timeout, log.String())
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
