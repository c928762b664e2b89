package storage

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Identity namespaces the state directory per vendor and application.
type Identity struct {
	Qualifier    string
	Organization string
	Application  string
}

// DefaultIdentity keeps state where earlier releases of the notifier left it.
var DefaultIdentity = Identity{Qualifier: "com.github", Organization: "lfrancke", Application: "gh-notifier"}

// StateDir resolves the per-application cache directory for the current user.
func StateDir(id Identity) (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return projectDir(runtime.GOOS, base, id)
}

// projectDir follows each platform's convention: a bare application name on
// Linux/BSD, a reverse-DNS bundle id on macOS, org\app\cache on Windows.
func projectDir(goos, base string, id Identity) (string, error) {
	app := strings.TrimSpace(id.Application)
	if app == "" {
		return "", errors.New("application name is required")
	}
	switch goos {
	case "darwin":
		parts := make([]string, 0, 3)
		for _, p := range []string{id.Qualifier, id.Organization, app} {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, strings.ReplaceAll(p, " ", "-"))
			}
		}
		return filepath.Join(base, strings.Join(parts, ".")), nil
	case "windows":
		return filepath.Join(base, id.Organization, app, "cache"), nil
	default:
		return filepath.Join(base, strings.ToLower(strings.ReplaceAll(app, " ", ""))), nil
	}
}
