package resources

import (
	"strings"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
)

const (
	BuiltinQuad   = BuiltinPrefix + "Quad"
	BuiltinCube   = BuiltinPrefix + "Cube"
	BuiltinPlane  = BuiltinPrefix + "Plane"
	BuiltinSphere = BuiltinPrefix + "Sphere"
)

var builtinGenerators = map[string]func() GeometryData{
	BuiltinQuad:   func() GeometryData { return GenerateQuad(1, 1) },
	BuiltinCube:   func() GeometryData { return GenerateCube(1, 1, 1, 1, 1) },
	BuiltinPlane:  func() GeometryData { return GeneratePlane(10, 10, 10, 10, 1, 1) },
	BuiltinSphere: func() GeometryData { return GenerateSphere(0.5, 16, 32) },
}

// BuiltinMeshes lists the names NewBuiltinMesh accepts.
func BuiltinMeshes() []string {
	return []string{BuiltinQuad, BuiltinCube, BuiltinPlane, BuiltinSphere}
}

/**
 * @brief Creates one of the engine's built-in meshes. name may omit the
 * "Internal/" prefix. The returned mesh is readable but not writable.
 */
func NewBuiltinMesh(r *renderer.Renderer, name string) (*Mesh, error) {
	if !strings.HasPrefix(name, BuiltinPrefix) {
		name = BuiltinPrefix + name
	}
	generate, ok := builtinGenerators[name]
	if !ok {
		return nil, core.InvalidArgumentf("unknown built-in mesh %q", name)
	}
	m := newMesh(r, name, DefaultMeshFlags)
	if err := m.SetGeometry(generate()); err != nil {
		return nil, err
	}
	m.UpdateBounds()
	m.writable = false
	return m, nil
}
