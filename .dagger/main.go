// Howell CI
//
// Package main provides reproducible builds and tests locally and in CI.
package main

import (
	"context"

	"dagger/howell/internal/dagger"
)

// Howell is the main module for the howell CI pipeline
type Howell struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Howell CI module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", "build", "tmp", ".howell"]
	source *dagger.Directory,
) *Howell {
	return &Howell{
		Source: source,
	}
}

// goContainer returns a Go container with the project source mounted and the
// module and build caches attached. The SQLite driver is pure Go, so CGO is
// off.
func (h *Howell) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", h.Source)
}

// Test runs the howell unit tests via "go test"
//
// +check
func (h *Howell) Test(ctx context.Context) (string, error) {
	return h.goContainer().
		WithExec([]string{"go", "test", "./..."}).
		Stdout(ctx)
}

// Vet runs "go vet" over every package.
//
// +check
func (h *Howell) Vet(ctx context.Context) (string, error) {
	return h.goContainer().
		WithExec([]string{"go", "vet", "./..."}).
		Stdout(ctx)
}
