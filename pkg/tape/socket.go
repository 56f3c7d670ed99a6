package tape

import (
	"os"
	"path/filepath"
)

// RuntimeDir returns the directory the daemon's socket lives under:
// $XDG_RUNTIME_DIR/tape, falling back to the user cache directory when
// XDG_RUNTIME_DIR is unset (no systemd-managed runtime directory on the
// machine, so os.UserCacheDir is the closest stdlib analog).
func RuntimeDir() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "tape"), nil
	}

	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "tape"), nil
}

// SocketPath returns the daemon's Unix domain socket path.
func SocketPath() (string, error) {
	dir, err := RuntimeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(dir, "tape.sock"), nil
}
