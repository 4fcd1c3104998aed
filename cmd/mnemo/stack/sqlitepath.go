package stack

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/mnemo/pkg/dotdir"
)

// ResolveSQLitePath picks the SQLite database file. An explicit path wins,
// then MNEMO_DB, then an existing database in a known location, then the
// default file inside the resolved .mnemo directory.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("MNEMO_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range sqliteCandidates() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return dotdir.NewManager().DatabasePath(configDir)
}

func sqliteCandidates() []string {
	candidates := []string{
		filepath.Join(".mnemo", dotdir.DatabaseFile),
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "mnemo", dotdir.DatabaseFile))
	}

	return candidates
}
