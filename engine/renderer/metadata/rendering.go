package metadata

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
)

/** @brief Determines face culling mode during rendering. */
type FaceCullMode int

const (
	/** @brief No faces are culled. */
	FaceCullModeNone FaceCullMode = 0x0
	/** @brief Only front faces are culled. */
	FaceCullModeFront FaceCullMode = 0x1
	/** @brief Only back faces are culled. */
	FaceCullModeBack FaceCullMode = 0x2
	/** @brief Both front and back faces are culled. */
	FaceCullModeFrontAndBack FaceCullMode = 0x3
)

/** @brief How an index buffer is assembled into primitives. */
type Topology uint8

const (
	TopologyTriangles Topology = iota
	TopologyTriangleStrip
	TopologyLines
	TopologyLineStrip
)

func (t Topology) String() string {
	switch t {
	case TopologyTriangles:
		return "Triangles"
	case TopologyTriangleStrip:
		return "TriangleStrip"
	case TopologyLines:
		return "Lines"
	case TopologyLineStrip:
		return "LineStrip"
	}
	return "Unknown"
}

// ValidateIndexCount checks count against what the topology can assemble.
func (t Topology) ValidateIndexCount(count int) error {
	switch t {
	case TopologyTriangles:
		if count%3 != 0 {
			return core.InvalidOperationf("topology Triangles needs an index count that is a multiple of 3, got %d", count)
		}
	case TopologyTriangleStrip:
		if count < 3 {
			return core.InvalidOperationf("topology TriangleStrip needs at least 3 indices, got %d", count)
		}
	case TopologyLines:
		if count%2 != 0 {
			return core.InvalidOperationf("topology Lines needs an index count that is a multiple of 2, got %d", count)
		}
	case TopologyLineStrip:
		if count < 2 {
			return core.InvalidOperationf("topology LineStrip needs at least 2 indices, got %d", count)
		}
	default:
		return core.InvalidArgumentf("unknown topology %d", t)
	}
	return nil
}

// PrimitiveCount returns the number of primitives count indices produce.
func (t Topology) PrimitiveCount(count uint32) uint32 {
	switch t {
	case TopologyTriangles:
		return count / 3
	case TopologyTriangleStrip:
		if count < 3 {
			return 0
		}
		return count - 2
	case TopologyLines:
		return count / 2
	case TopologyLineStrip:
		if count < 2 {
			return 0
		}
		return count - 1
	}
	return 0
}

type IndexFormat uint8

const (
	IndexFormatUInt16 IndexFormat = iota
	IndexFormatUInt32
)

func (f IndexFormat) Size() uint32 {
	if f == IndexFormatUInt32 {
		return 4
	}
	return 2
}

func (f IndexFormat) String() string {
	if f == IndexFormatUInt32 {
		return "uint32"
	}
	return "uint16"
}

type BlendMode uint8

const (
	BlendModeOpaque BlendMode = iota
	BlendModeAlpha
	BlendModeAdditive
)

type DepthMode uint8

const (
	DepthModeTestWrite DepthMode = iota
	DepthModeTest
	DepthModeOff
)

/** @brief Lighting model a material is drawn with. Changing it invalidates bound state. */
type LightingMode uint8

const (
	LightingModeLit LightingMode = iota
	LightingModeUnlit
)

// DrawRange is the part of the bound buffers a draw consumes.
type DrawRange struct {
	StartVertex uint32
	VertexCount uint32
	StartIndex  uint32
	IndexCount  uint32
}

/**
 * @brief Everything the backend needs for one draw. Built by Mesh.SetActive
 * and completed by the render systems.
 */
type RenderState struct {
	VertexBuffer ResourceHandle
	IndexBuffer  ResourceHandle
	IndexFormat  IndexFormat
	Layout       *VertexLayout
	Range        DrawRange

	Topology Topology
	Cull     FaceCullMode
	Blend    BlendMode
	Depth    DepthMode
	Lighting LightingMode

	// World maps object space to clip space. Instanced draws apply it after each instance matrix.
	World math.Mat4

	// InstanceBuffer holds InstanceCount world matrices when valid.
	InstanceBuffer ResourceHandle
	InstanceCount  uint32

	MaterialHash   uint64
	DiffuseColour  math.Vec4
	DiffuseTexture ResourceHandle
}

/** @brief A render pass the draws of a frame are recorded into. */
type RenderPass struct {
	Name        string
	ClearColour math.Vec4
	ClearDepth  float32
	// Target is a render-target texture; an invalid handle means the default target.
	Target ResourceHandle
}
