package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/mnemo/internal/dagger"
)

// Build and return directory of go binaries.
//
// The sqlite storage and vector drivers need cgo, so each target builds in a
// native container of its platform rather than cross-compiling.
func (m *Mnemo) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	platforms := []dagger.Platform{"linux/amd64", "linux/arm64"}

	// create empty directory to put build artifacts
	outputs := dag.Directory()

	for _, platform := range platforms {
		// create directory for each OS and architecture
		path := string(platform) + "/"

		build := dag.Container(dagger.ContainerOpts{Platform: platform}).
			From("golang:1.25-bookworm").
			WithExec([]string{"apt-get", "update"}).
			WithExec([]string{"apt-get", "install", "-y", "gcc", "libsqlite3-dev"}).
			WithEnvVariable("CGO_ENABLED", "1").
			WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod-"+strings.ReplaceAll(string(platform), "/", "-"))).
			WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build-"+strings.ReplaceAll(string(platform), "/", "-"))).
			WithDirectory("/src", m.Source).
			WithWorkdir("/src").
			WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/mnemo"})

		// add build to outputs
		outputs = outputs.WithDirectory(path, build.Directory(path))
	}

	// return build directory
	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (m *Mnemo) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	buildtime := time.Now()

	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X 'github.com/papercomputeco/mnemo/pkg/utils.Version=%s'", version),
		fmt.Sprintf("-X 'github.com/papercomputeco/mnemo/pkg/utils.Sha=%s'", commit),
		fmt.Sprintf("-X 'github.com/papercomputeco/mnemo/pkg/utils.Buildtime=%s'", buildtime),
	}

	return m.Build(ctx, strings.Join(ldflags, " "))
}
