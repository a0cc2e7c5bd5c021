package metadata

import "github.com/spaghettifunk/lumen/engine/math"

/** @brief The name of the default material. */
const DefaultMaterialName string = "default"

/**
 * @brief A material, which represents the surface properties a draw is
 * rendered with. Changing Lighting between draws forces the backend to
 * discard bound state.
 */
type Material struct {
	/** @brief Asset identity. */
	Guid string
	/** @brief The material name. */
	Name     string
	Lighting LightingMode
	Blend    BlendMode
	Cull     FaceCullMode
	Depth    DepthMode
	/** @brief The diffuse colour. */
	DiffuseColour math.Vec4
	/** @brief Optional diffuse texture. */
	DiffuseTexture ResourceHandle
	/** @brief Incremented every time the material is changed. */
	Generation uint32
}

// Hash identifies the material for batching. Two materials with the same Guid
// hash equal.
func (m *Material) Hash() uint64 {
	return HashString(m.Guid)
}
