package log

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "listening"

// ResolveDir picks the log directory: the --logpath flag, then LISTENING_LOG_PATH,
// then the OS default. Relative paths resolve against the working directory.
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absolute(flagPath)
	}
	if envPath := os.Getenv("LISTENING_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}
	return defaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

// defaultDir is ~/Library/Logs on macOS, %LOCALAPPDATA% on Windows and
// $XDG_STATE_HOME (~/.local/state) elsewhere.
func defaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", appName), nil
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, appName, "logs"), nil
	}
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, appName, "logs"), nil
}
