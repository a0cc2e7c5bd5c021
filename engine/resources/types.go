package resources

import "github.com/spaghettifunk/lumen/engine/renderer/metadata"

type ResourceType int

/** @brief Resource types the asset manager can load. */
const (
	/** @brief Files the asset manager does not know how to load. */
	ResourceTypeNone ResourceType = iota
	/** @brief Text resource type. */
	ResourceTypeText
	/** @brief Binary resource type. */
	ResourceTypeBinary
	/** @brief Image resource type, decoded to RGBA8 pixels. */
	ResourceTypeImage
	/** @brief Mesh resource type (a Mesh with CPU data, not yet uploaded). */
	ResourceTypeMesh
	/** @brief Material resource type, parsed from a .kmt file. */
	ResourceTypeMaterial
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeText:
		return "text"
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeMesh:
		return "mesh"
	case ResourceTypeMaterial:
		return "material"
	}
	return "unknown"
}

/**
 * @brief A generic structure for a loaded resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The resource type, which tells what Data holds. */
	Type ResourceType
	/** @brief The name of the resource, relative to the asset root. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data: string, []byte, *ImageData, *ModelData or *MaterialConfig. */
	Data interface{}
}

/**
 * @brief Decoded image pixels, always RGBA8 and tightly packed.
 */
type ImageData struct {
	Width  uint32
	Height uint32
	Pixels []byte
}

// ModelData is an imported model: one submesh per object, each naming the
// material it was authored with.
type ModelData struct {
	Mesh      *Mesh
	Materials []string
}

/**
 * @brief A material read from disk. The diffuse map is resolved to a texture
 * handle by the texture system.
 */
type MaterialConfig struct {
	Material       metadata.Material
	DiffuseMapName string
}
