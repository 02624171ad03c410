package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcriptFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
)

const (
	diagFileName       = "diagnostics_log.txt"
	transcriptFileName = "transcript_log.txt"
)

// RequestMetrics is the subset of per-request timing that ends up in the diagnostics log.
type RequestMetrics struct {
	DNSMs      float64
	TLSMs      float64
	TTFBMs     float64
	TotalMs    float64
	PhasesMs   float64 // sum of the traced phases
	ConnReused bool
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, diagFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcriptFile, err = os.OpenFile(filepath.Join(dir, transcriptFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcriptFile != nil {
		transcriptFile.Close()
		transcriptFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Request records one HTTP exchange with the backend.
func Request(method, path string, status int, authenticated bool, m RequestMetrics) {
	if !logReady {
		return
	}

	connStatus := "new"
	if m.ConnReused {
		connStatus = "reused"
	}

	diagLog.Info().
		Str("method", method).
		Str("path", path).
		Int("status", status).
		Bool("auth", authenticated).
		Str("conn", connStatus).
		Float64("dns_ms", m.DNSMs).
		Float64("tls_ms", m.TLSMs).
		Float64("ttfb_ms", m.TTFBMs).
		Float64("total_ms", m.TotalMs).
		Float64("phases_ms", m.PhasesMs).
		Msg("request")
}

func Reissue(ok bool, reason string) {
	if !logReady {
		return
	}
	ev := diagLog.Info()
	if !ok {
		ev = diagLog.Warn()
	}
	ev.Bool("ok", ok).Str("reason", reason).Msg("token_reissue")
}

func RecordingState(from, to string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("from", from).
		Str("to", to).
		Msg("recording_state")
}

func Upload(path, file, mimeType string, sizeBytes int64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("path", path).
		Str("file", file).
		Str("mime", mimeType).
		Float64("size_kb", float64(sizeBytes)/1024).
		Msg("upload")
}

func Action(action string, err error) {
	if !logReady {
		return
	}
	if err != nil {
		diagLog.Warn().Str("action", action).Err(err).Msg("assistant_action")
		return
	}
	diagLog.Info().Str("action", action).Msg("assistant_action")
}

func TranscriptText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcriptFile.WriteString(line)
}

// Redact shortens a bearer token for logging.
func Redact(token string) string {
	if token == "" {
		return "<none>"
	}
	if len(token) <= 10 {
		return token[:len(token)/2] + "..."
	}
	return token[:10] + "..."
}

func SessionStart(baseURL, version string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("base_url", baseURL).
		Str("version", version).
		Msg("session_start")
}

func SessionEnd(messages int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("messages", messages).
		Msg("session_end")
}
