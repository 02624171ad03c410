package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"listening/api"
	"listening/beep"
	"listening/config"
	"listening/credential"
	"listening/doctor"
	"listening/log"
	"listening/transcript"
)

var version = "dev"

var (
	cfgFile string
	logPath string
)

// App is the wiring shared by every command.
type App struct {
	cfg     *config.Config
	store   credential.Store
	session *credential.Session
	client  *api.Client

	messages int
}

var app *App

var rootCmd = &cobra.Command{
	Use:   "listening",
	Short: "Speech diagnosis, voice conversion and a voice assistant from the terminal",
	Long: `listening records speech, uploads it for diagnosis or text conversion, and
talks to an assistant that can search the web, place calls and send messages.

Configuration is read from --config, else $XDG_CONFIG_HOME/listening/config.yaml,
and LISTENING_* environment variables (LISTENING_API_BASE_URL, ...).`,
	Version:           version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { teardown() },
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/listening/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logPath, "logpath", "", "log directory (default is the OS log location)")

	doctorCmd.Flags().BoolVar(&doctorSkipClipboard, "skip-clipboard", false, "skip the clipboard round trip")

	rootCmd.AddCommand(healthCmd, doctorCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		teardown()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	dir, err := log.ResolveDir(logPath)
	if err != nil {
		return fmt.Errorf("resolve log directory: %w", err)
	}
	log.SetDir(dir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	log.SessionStart(cfg.API.BaseURL, version)
	beep.SetEnabled(cfg.Recording.Cues)

	var store credential.Store
	switch cfg.Credentials.Backend {
	case "memory":
		store = credential.NewMemoryStore()
	default:
		store = credential.NewKeyringStore(cfg.Credentials.Service)
	}
	session := credential.NewSession(store)

	app = &App{
		cfg:     cfg,
		store:   store,
		session: session,
		client:  api.New(cfg.API.BaseURL, session, api.WithTimeout(cfg.API.Timeout)),
	}
	return nil
}

func teardown() {
	if app == nil {
		return
	}
	log.SessionEnd(app.messages)
	log.Close()
	app = nil
}

// openTranscript opens the SQLite-backed transcript for one conversation.
func (a *App) openTranscript(conversation string) (*transcript.Transcript, func(), error) {
	path := a.cfg.Storage.TranscriptDB
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}
	store, err := transcript.OpenSQLite(path)
	if err != nil {
		return nil, nil, err
	}
	return transcript.New(store, conversation), func() { store.Close() }, nil
}

var stdin = bufio.NewReader(os.Stdin)

func prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func promptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(label)
	}
	fmt.Print(label)
	b, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the diagnosis and conversion services are up",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		failed := false
		for _, check := range []struct {
			name string
			fn   func(context.Context) error
		}{
			{"diagnosis", app.client.DiagnosisHealth},
			{"conversion", app.client.ConversionHealth},
		} {
			if err := check.fn(ctx); err != nil {
				failed = true
				fmt.Printf("  %-10s  FAIL  %v\n", check.name, err)
				continue
			}
			fmt.Printf("  %-10s  ok\n", check.name)
		}
		if failed {
			return errors.New("backend is not healthy")
		}
		return nil
	},
}

var doctorSkipClipboard bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostics for the backend, credentials, microphone and clipboard",
	RunE: func(cmd *cobra.Command, _ []string) error {
		code := doctor.Run(cmd.Context(), doctor.Options{
			Backend:       app.client,
			Credentials:   app.store,
			SampleRate:    uint32(app.cfg.Recording.SampleRate),
			SkipClipboard: doctorSkipClipboard,
			In:            os.Stdin,
			Out:           os.Stdout,
		})
		if code != 0 {
			return errors.New("some checks failed")
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(*cobra.Command, []string) {
		fmt.Printf("listening %s\n", version)
	},
}
