package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/howell/internal/dagger"
)

const versionPkg = "github.com/ryanlack616/howell-brain/pkg/utils"

// Build and return directory of howell binaries for every supported platform
func (h *Howell) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	gooses := []string{"linux", "darwin"}
	goarches := []string{"amd64", "arm64"}

	outputs := dag.Directory()

	golang := dag.Container().
		From("golang:1.25-alpine").
		WithEnvVariable("CGO_ENABLED", "0").
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithDirectory("/src", h.Source).
		WithWorkdir("/src")

	for _, goos := range gooses {
		for _, goarch := range goarches {
			path := fmt.Sprintf("%s/%s/", goos, goarch)

			build := golang.
				WithEnvVariable("GOOS", goos).
				WithEnvVariable("GOARCH", goarch).
				WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", path, "./cli/howell"})

			outputs = outputs.WithDirectory(path, build.Directory(path))
		}
	}

	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (h *Howell) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	ldflags := []string{
		"-s",
		"-w",
		fmt.Sprintf("-X '%s.Version=%s'", versionPkg, version),
		fmt.Sprintf("-X '%s.Sha=%s'", versionPkg, commit),
		fmt.Sprintf("-X '%s.Buildtime=%s'", versionPkg, time.Now().UTC().Format(time.RFC3339)),
	}

	return h.Build(ctx, strings.Join(ldflags, " "))
}
