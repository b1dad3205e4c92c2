package profile

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.matrixtui, or $MATRIXTUI_HOME when set.
func BaseDir() string {
	if dir := os.Getenv("MATRIXTUI_HOME"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".matrixtui")
}

// Dir returns the profile directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "profiles", name)
}

// ConfigPath returns the profile config file.
func ConfigPath(name string) string {
	return filepath.Join(Dir(name), "config.toml")
}

// ArchivePath returns the sqlite message archive.
func ArchivePath(name string) string {
	return filepath.Join(Dir(name), "archive.db")
}

// SocketPath returns the control socket.
func SocketPath(name string) string {
	return filepath.Join(Dir(name), "control.sock")
}

// LogDir returns the log directory for a profile.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the client log file.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "matrixtui.log")
}

// GlobalConfigPath returns the profile-independent config file.
func GlobalConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the profile directory tree.
func EnsureDir(name string) error {
	for _, d := range []string{Dir(name), LogDir(name)} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
