package main

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/spaghettifunk/lumen/engine/core"
)

// Manifest lists the assets one bake run processes.
type Manifest struct {
	// Directory asset sources are relative to. Defaults to the manifest's directory.
	Root string `yaml:"root,omitempty"`
	// Where the summary is written, relative to Root.
	Output   string         `yaml:"output,omitempty"`
	Meshes   []MeshEntry    `yaml:"meshes"`
	Textures []TextureEntry `yaml:"textures"`
}

type MeshEntry struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	// Keep OBJ texture coordinates bottom-left instead of flipping them.
	KeepV bool `yaml:"keep_v,omitempty"`
	// Generate tangents and bitangents when the mesh has texture coordinates.
	Tangents bool `yaml:"tangents,omitempty"`
	// Optional converter run before import. Its stdout is read as OBJ.
	// "{source}" in an argument is replaced by the source path.
	Tool []string `yaml:"tool,omitempty"`
}

type TextureEntry struct {
	Name   string `yaml:"name"`
	Source string `yaml:"source"`
	FlipY  bool   `yaml:"flip_y,omitempty"`
}

const defaultSummaryFile = "bake-summary.yaml"

func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, errors.Wrapf(err, "parsing manifest %s", path)
	}
	if m.Root == "" {
		m.Root = filepath.Dir(path)
	} else if !filepath.IsAbs(m.Root) {
		m.Root = filepath.Join(filepath.Dir(path), m.Root)
	}
	if m.Output == "" {
		m.Output = defaultSummaryFile
	}
	return m, m.Validate()
}

// Validate rejects entries without a source and duplicate names.
func (m *Manifest) Validate() error {
	seen := make(map[string]bool)
	check := func(kind, name, source string) error {
		if source == "" {
			return core.InvalidArgumentf("%s %q has no source", kind, name)
		}
		if name == "" {
			return core.InvalidArgumentf("%s with source %s has no name", kind, source)
		}
		if seen[name] {
			return core.InvalidArgumentf("duplicate asset name %q", name)
		}
		seen[name] = true
		return nil
	}
	for _, e := range m.Meshes {
		if err := check("mesh", e.Name, e.Source); err != nil {
			return err
		}
	}
	for _, e := range m.Textures {
		if err := check("texture", e.Name, e.Source); err != nil {
			return err
		}
	}
	if len(seen) == 0 {
		return core.InvalidArgumentf("manifest lists no assets")
	}
	return nil
}

func (m *Manifest) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Root, p)
}
