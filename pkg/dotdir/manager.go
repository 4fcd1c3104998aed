// Package dotdir manages the .mnemo/ and ~/.mnemo directories.
//
// Besides config.toml and the default SQLite database, the directory holds
// the recall state: the records returned by the most recent search, so
// follow-up commands can refer to them by position.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the mnemo directory.
	dirName = ".mnemo"

	// DatabaseFile is the default SQLite database name inside the directory.
	DatabaseFile = "mnemo.sqlite"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .mnemo/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.mnemo/ dir
//  3. Home ~/.mnemo/ dir
//  4. If none found, attempt to create ~/.mnemo/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating mnemo directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// DatabasePath returns the default SQLite path inside the resolved directory.
func (m *Manager) DatabasePath(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DatabaseFile), nil
}

// InitLocal creates a .mnemo/ directory under root and returns its path.
func (m *Manager) InitLocal(root string) (string, error) {
	dir := filepath.Join(root, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating mnemo directory %s: %w", dir, err)
	}
	return filepath.Abs(dir)
}

// localDirExists checks whether a .mnemo/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
