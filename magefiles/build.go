//go:build mage

package main

import (
	"path/filepath"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const shaderDir = "assets/shaders"

// Compiles every GLSL shader under assets/shaders to SPIR-V next to its source.
func (Build) Shaders() error {
	var sources []string
	for _, pattern := range []string{"*.vert", "*.frag"} {
		matches, err := filepath.Glob(filepath.Join(shaderDir, pattern))
		if err != nil {
			return err
		}
		sources = append(sources, matches...)
	}
	for _, src := range sources {
		if _, err := executeCmd("glslc", withArgs(src, "-o", src+".spv"), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Builds the testbed and the meshbake tool into bin/.
func (Build) Binaries() error {
	targets := map[string]string{
		"bin/lumen":    ".",
		"bin/meshbake": "./cmd/meshbake",
	}
	for out, pkg := range targets {
		if _, err := executeCmd("go", withArgs("build", "-o", out, pkg), withStream()); err != nil {
			return err
		}
	}
	return nil
}

// Compiles the shaders and the binaries.
func (Build) All() {
	mg.SerialDeps(Build.Shaders, Build.Binaries)
}
