// Package socketdir manages the directory of Unix-domain sockets and
// per-session lock files the bridge uses for same-host IPC and for the
// Monitor-per-session-key exclusivity invariant (spec §3).
package socketdir

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"tmuxbridge/internal/config"
)

// maxSocketPathLen is the conservative limit for Unix domain socket paths.
// macOS has sizeof(sockaddr_un.sun_path) = 104; we leave room for the name.
const maxSocketPathLen = 100

var (
	dir     string
	dirOnce sync.Once
)

// Dir returns the socket directory, derived from the resolved bridge dir.
// If the resulting path would be too long for Unix domain sockets, a
// symlink from a short temp-dir path is created and returned instead.
func Dir() string {
	dirOnce.Do(func() {
		dir = ResolveIn(config.Dir())
	})
	return dir
}

// ResetDirCache resets the cached Dir result. For testing only.
func ResetDirCache() {
	dirOnce = sync.Once{}
	dir = ""
}

// ResolveIn returns the socket directory for a given bridge dir, applying
// the short-symlink fallback for overlong paths.
func ResolveIn(bridgeDir string) string {
	realDir := filepath.Join(bridgeDir, "sockets")

	testPath := filepath.Join(realDir, "session.a-reasonably-long-session-name.sock")
	if len(testPath) <= maxSocketPathLen {
		os.MkdirAll(realDir, 0o700)
		return realDir
	}

	hash := sha256.Sum256([]byte(realDir))
	shortDir := filepath.Join(os.TempDir(), fmt.Sprintf("tmuxbridge-%x", hash[:8]))

	if target, err := os.Readlink(shortDir); err == nil && target == realDir {
		return shortDir
	}

	os.MkdirAll(realDir, 0o700)
	os.Remove(shortDir)
	if err := os.Symlink(realDir, shortDir); err != nil {
		return realDir
	}
	return shortDir
}

// SocketPath returns the path of the IPC socket for the given session name.
func SocketPath(sessionName string) string {
	return filepath.Join(Dir(), "session."+sanitize(sessionName)+".sock")
}

// LockPath returns the path of the advisory lock file backing the
// Monitor-per-session-key invariant for the given session name.
func LockPath(sessionName string) string {
	return filepath.Join(Dir(), "session."+sanitize(sessionName)+".lock")
}

// sanitize strips path separators from a session name so it is safe to use
// as a single path component.
func sanitize(name string) string {
	return strings.NewReplacer("/", "_", string(filepath.Separator), "_").Replace(name)
}
