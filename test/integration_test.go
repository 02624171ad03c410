//go:build integration

package test_test

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("LISTENING_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "LISTENING_TEST_BIN not set; build the binary and point it there")
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func generateSilenceWAV(path string, sampleRate int, durationS float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	return os.WriteFile(path, buf, 0644)
}

// backend is a stand-in server that remembers which paths were hit.
type backend struct {
	*httptest.Server

	mu      sync.Mutex
	hits    []string
	uploads []string
	healthy bool
}

func newBackend(t *testing.T, healthy bool) *backend {
	t.Helper()
	b := &backend{healthy: healthy}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits = append(b.hits, r.Method+" "+r.URL.Path)
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/api/diagnoses/diagnose" {
			_, fh, err := r.FormFile("audio")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprintf(w, `{"isSuccess":false,"code":"BAD","message":%q}`, err.Error())
				return
			}
			b.mu.Lock()
			b.uploads = append(b.uploads, fh.Filename)
			b.mu.Unlock()
			fmt.Fprint(w, `{"isSuccess":true,"code":"OK","message":"ok","data":{"propList":[{"id":1,"name":"발음","level":"HIGH"}],"member":{"nickname":"홍길동"}}}`)
			return
		}
		if strings.HasSuffix(r.URL.Path, "/health-check") && !b.healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprint(w, `{"isSuccess":false,"code":"DOWN","message":"down"}`)
			return
		}
		fmt.Fprint(w, `{"isSuccess":true,"code":"OK","message":"ok","data":null}`)
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) hit(path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, h := range b.hits {
		if strings.HasSuffix(h, " "+path) {
			return true
		}
	}
	return false
}

type result struct {
	logDir string
	stdout string
	stderr string
	err    error
}

func runListening(t *testing.T, baseURL string, args ...string) result {
	t.Helper()
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")

	cfg := fmt.Sprintf(`api:
  base_url: %s
  timeout: 5s
storage:
  data_dir: %s
credentials:
  backend: memory
recording:
  cues: false
`, baseURL, filepath.Join(dir, "data"))
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	full := append([]string{"--logpath", logDir, "--config", cfgPath}, args...)
	cmd := exec.Command(testBinary, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Stdin = strings.NewReader("")

	done := make(chan error, 1)
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return result{logDir: logDir, stdout: stdout.String(), stderr: stderr.String(), err: err}
	case <-time.After(30 * time.Second):
		cmd.Process.Kill()
		t.Fatalf("listening timed out\nstdout:\n%s\nstderr:\n%s", stdout.String(), stderr.String())
	}
	return result{}
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return ""
		}
		t.Fatalf("failed to read %s: %v", filename, err)
	}
	return string(data)
}

func TestHealth(t *testing.T) {
	b := newBackend(t, true)
	r := runListening(t, b.URL, "health")
	if r.err != nil {
		t.Fatalf("health failed: %v\n%s", r.err, r.stderr)
	}
	if strings.Count(r.stdout, " ok") != 2 {
		t.Errorf("expected two ok lines, got:\n%s", r.stdout)
	}
	if !b.hit("/api/diagnoses/health-check") || !b.hit("/api/conversions/health-check") {
		t.Errorf("health endpoints not called: %v", b.hits)
	}

	diag := readLog(t, r.logDir, "diagnostics_log.txt")
	for _, want := range []string{"session_start", "session_end", "path=/api/diagnoses/health-check"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %s", want)
		}
	}
}

func TestHealthFailure(t *testing.T) {
	b := newBackend(t, false)
	r := runListening(t, b.URL, "health")
	if r.err == nil {
		t.Fatal("expected a non-zero exit")
	}
	if !strings.Contains(r.stderr, "backend is not healthy") {
		t.Errorf("stderr = %q", r.stderr)
	}
	if strings.Count(r.stdout, "FAIL") != 2 {
		t.Errorf("expected two FAIL lines, got:\n%s", r.stdout)
	}
}

func TestDiagnoseFromWAV(t *testing.T) {
	wav := filepath.Join(t.TempDir(), "silence.wav")
	if err := generateSilenceWAV(wav, 16000, 1.0); err != nil {
		t.Fatal(err)
	}

	b := newBackend(t, true)
	r := runListening(t, b.URL, "diagnose", "--wav", wav, "--duration", "300ms")
	if r.err != nil {
		t.Fatalf("diagnose failed: %v\n%s", r.err, r.stderr)
	}
	if !strings.Contains(r.stdout, "홍길동 님은 현재 발음") || !strings.Contains(r.stdout, "위험") {
		t.Errorf("stdout = %q", r.stdout)
	}

	b.mu.Lock()
	uploads := b.uploads
	b.mu.Unlock()
	if len(uploads) != 1 || !strings.HasPrefix(uploads[0], "recording-") || !strings.HasSuffix(uploads[0], ".wav") {
		t.Errorf("uploads = %v", uploads)
	}

	diag := readLog(t, r.logDir, "diagnostics_log.txt")
	for _, want := range []string{"recording_state", "upload", "path=/api/diagnoses/diagnose"} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics missing %s", want)
		}
	}
}

func TestLogoutWithoutLogin(t *testing.T) {
	b := newBackend(t, true)
	r := runListening(t, b.URL, "logout")
	if r.err != nil {
		t.Fatalf("logout failed: %v\n%s", r.err, r.stderr)
	}
	if !strings.Contains(r.stdout, "Not logged in.") {
		t.Errorf("stdout = %q", r.stdout)
	}
}
