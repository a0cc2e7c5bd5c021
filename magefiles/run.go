//go:build mage

package main

import (
	"fmt"
	"strconv"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the testbed scene with lumen.toml.
func (Run) Testbed() error {
	mg.Deps(Build.Shaders)
	fmt.Println("Run testbed...")
	_, err := executeCmd("go", withArgs("run", ".", "-config", "lumen.toml"), withStream())
	return err
}

// Renders a fixed number of frames and exits. Useful for smoke tests on CI.
func (Run) Frames(n int) error {
	_, err := executeCmd("go", withArgs("run", ".", "-config", "lumen.toml", "-frames", strconv.Itoa(n)), withStream())
	return err
}

// Bakes the assets listed by a manifest.
func (Run) Bake(manifest string) error {
	_, err := executeCmd("go", withArgs("run", "./cmd/meshbake", "-config", "lumen.toml", "-manifest", manifest), withStream())
	return err
}
