package identity

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// Identity is everything the resolver knows about the project at a path.
type Identity struct {
	Root        string
	Name        string
	RemoteURL   string
	Language    string
	Framework   string
	Fingerprint string
}

type manifestLanguage struct {
	manifest string
	language string
}

var manifestLanguages = []manifestLanguage{
	{"go.mod", "go"},
	{"Cargo.toml", "rust"},
	{"package.json", "javascript"},
	{"pyproject.toml", "python"},
	{"setup.py", "python"},
	{"pom.xml", "java"},
	{"build.gradle", "java"},
	{"composer.json", "php"},
	{"Gemfile", "ruby"},
}

// frameworkHints maps a manifest to substrings that identify a framework in
// its content. The first hit wins.
var frameworkHints = map[string][][2]string{
	"package.json": {
		{`"next"`, "nextjs"},
		{`"react"`, "react"},
		{`"vue"`, "vue"},
		{`"@angular/core"`, "angular"},
		{`"express"`, "express"},
	},
	"go.mod": {
		{"github.com/gofiber/fiber", "fiber"},
		{"github.com/gin-gonic/gin", "gin"},
		{"github.com/labstack/echo", "echo"},
		{"github.com/spf13/cobra", "cobra"},
	},
	"pyproject.toml": {
		{"django", "django"},
		{"fastapi", "fastapi"},
		{"flask", "flask"},
	},
	"Cargo.toml": {
		{"axum", "axum"},
		{"actix-web", "actix"},
		{"tokio", "tokio"},
	},
	"Gemfile": {
		{"rails", "rails"},
	},
}

// Identify resolves the root of path and collects name, remote, language,
// framework and fingerprint. Like every resolver operation it never fails.
func (r *Resolver) Identify(ctx context.Context, path string) Identity {
	root := r.ResolveRoot(path)
	id := Identity{
		Root:        r.Normalize(root),
		Name:        filepath.Base(filepath.Clean(root)),
		Fingerprint: digest(r.fingerprintSignal(ctx, root)),
	}

	if r.remote != nil {
		if url, err := r.remote.RemoteURL(ctx, root); err == nil {
			id.RemoteURL = strings.TrimSpace(url)
		}
	}
	if id.RemoteURL != "" {
		if name := repoNameFromRemote(id.RemoteURL); name != "" {
			id.Name = name
		}
	}

	id.Language, id.Framework = detectLanguage(root)
	return id
}

func detectLanguage(root string) (string, string) {
	for _, ml := range manifestLanguages {
		content, err := os.ReadFile(filepath.Join(root, ml.manifest))
		if err != nil {
			continue
		}

		language := ml.language
		if ml.manifest == "package.json" {
			if _, err := os.Stat(filepath.Join(root, "tsconfig.json")); err == nil {
				language = "typescript"
			}
		}

		text := strings.ToLower(string(content))
		for _, hint := range frameworkHints[ml.manifest] {
			if strings.Contains(text, strings.ToLower(hint[0])) {
				return language, hint[1]
			}
		}
		return language, ""
	}
	return "", ""
}

func repoNameFromRemote(url string) string {
	n := NormalizeRemote(url)
	if i := strings.LastIndex(n, "/"); i >= 0 {
		return n[i+1:]
	}
	return ""
}
