package record

import (
	"path/filepath"
	"strings"
)

var extLanguages = map[string]string{
	".go":    "go",
	".ts":    "typescript",
	".tsx":   "typescript",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".py":    "python",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".rb":    "ruby",
	".php":   "php",
	".cs":    "csharp",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".sql":   "sql",
	".md":    "markdown",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".toml":  "toml",
}

// LanguageFromPath returns the language tag for a file path based on its
// extension, or "" when unknown.
func LanguageFromPath(path string) string {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}
