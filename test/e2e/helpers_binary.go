//go:build e2e

package e2e

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// standupServer manages a running standup server process.
type standupServer struct {
	cmd     *exec.Cmd
	dataDir string
	address string
	apiKey  string
	logFile string
}

// startStandup launches the standup binary and waits for it to become healthy.
// The server is configured entirely via environment variables.
func startStandup(t *testing.T) *standupServer {
	t.Helper()
	requireStandup(t)
	return launchStandup(t, t.TempDir(), "standup.log")
}

func launchStandup(t *testing.T, dataDir, logName string) *standupServer {
	t.Helper()

	port := freePort(t)
	s := &standupServer{
		dataDir: dataDir,
		address: fmt.Sprintf("127.0.0.1:%d", port),
		apiKey:  testAPIKey,
		logFile: filepath.Join(dataDir, logName),
	}

	cmd := exec.Command(standupBin)
	cmd.Env = append(os.Environ(), s.env(port)...)

	lf, err := os.Create(s.logFile)
	if err != nil {
		t.Fatalf("create log file: %v", err)
	}
	cmd.Stdout = lf
	cmd.Stderr = lf

	if err := cmd.Start(); err != nil {
		lf.Close()
		t.Fatalf("start standup: %v", err)
	}
	s.cmd = cmd

	t.Cleanup(func() {
		s.stop()
		lf.Close()
	})

	if err := s.waitHealthy(10 * time.Second); err != nil {
		t.Fatalf("standup not healthy: %v", err)
	}
	return s
}

func (s *standupServer) env(port int) []string {
	return []string{
		fmt.Sprintf("STANDUP_PORT=%d", port),
		"STANDUP_DB_PATH=" + s.dbPath(),
		"STANDUP_SNAPSHOT_PATH=" + filepath.Join(s.dataDir, "snapshots", "current.db"),
		"STANDUP_API_KEY=" + s.apiKey,
		"STANDUP_CONFIG_PATH=" + filepath.Join(s.dataDir, "nonexistent.yaml"), // skip YAML file
		"STANDUP_LOCK_INTERVAL=1h",
		"STANDUP_SNAPSHOT_INTERVAL=1h",
	}
}

func (s *standupServer) dbPath() string {
	return filepath.Join(s.dataDir, "standup.db")
}

func (s *standupServer) stop() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Signal(os.Interrupt)
		_ = s.cmd.Wait()
	}
}

func (s *standupServer) baseURL() string {
	return fmt.Sprintf("http://%s", s.address)
}

func (s *standupServer) client(t *testing.T, userID string) *apiClient {
	return &apiClient{t: t, baseURL: s.baseURL(), apiKey: s.apiKey, userID: userID}
}

func (s *standupServer) waitHealthy(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	url := fmt.Sprintf("%s/api/v1/health", s.baseURL())

	for time.Now().Before(deadline) {
		resp, err := http.Get(url)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("standup not healthy after %s", timeout)
}

// restartOnSameData stops the server and starts a new one using the same data directory.
func (s *standupServer) restartOnSameData(t *testing.T) *standupServer {
	t.Helper()
	s.stop()
	time.Sleep(200 * time.Millisecond) // allow port release
	return launchStandup(t, s.dataDir, "standup-restart.log")
}

// runCLI runs a standup subcommand against the server's database.
func (s *standupServer) runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	full := append(args, "--db", s.dbPath())
	cmd := exec.Command(standupBin, full...)
	cmd.Env = append(os.Environ(), "STANDUP_CONFIG_PATH="+filepath.Join(s.dataDir, "nonexistent.yaml"))
	out, err := cmd.Output()
	return string(out), err
}

// freePort returns a free TCP port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("find free port: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
