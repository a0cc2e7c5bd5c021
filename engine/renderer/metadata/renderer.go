package metadata

import "github.com/spaghettifunk/lumen/engine/core"

type RendererType uint8

const (
	RendererTypeHeadless RendererType = iota
	RendererTypeVulkan
)

func ParseRendererType(s string) (RendererType, bool) {
	switch s {
	case "headless":
		return RendererTypeHeadless, true
	case "vulkan":
		return RendererTypeVulkan, true
	}
	return RendererTypeHeadless, false
}

func (t RendererType) String() string {
	if t == RendererTypeVulkan {
		return "vulkan"
	}
	return "headless"
}

type RendererBackendConfig struct {
	/** @brief The name of the application */
	ApplicationName string
	/** @brief Capacity of the vertex buffer resource table. */
	MaxVertexBuffers uint32
	/** @brief Capacity of the index buffer resource table. */
	MaxIndexBuffers uint32
	/** @brief Capacity of the texture resource table. */
	MaxTextures uint32
	/** @brief Idle staging buffers kept per direction and size. */
	StagingPoolSize uint32
	/** @brief Enables API validation layers where supported. */
	Validation bool
	/** @brief Optional; receives ResourceReleased events. */
	Events *core.EventSystem
	/** @brief Size of the default render target. */
	TargetWidth  uint32
	TargetHeight uint32
	/** @brief SPIR-V code for the mesh pipeline. Backends without shaders ignore it. */
	VertexShader   []byte
	FragmentShader []byte
}

/** @brief What a backend can do. */
type Capabilities struct {
	MaxVertexBuffers uint32
	MaxIndexBuffers  uint32
	MaxTextures      uint32
	MaxTextureSize   uint32
	Instancing       bool
	Index32          bool
	// Buffers can be read back with ReadVertexBuffer/ReadIndexBuffer.
	Readback bool
}

type RenderBufferType int

const (
	/** @brief Buffer is use is unknown. Default, but usually invalid. */
	RenderBufferTypeUnknown RenderBufferType = iota
	/** @brief Buffer is used for vertex data. */
	RenderBufferTypeVertex
	/** @brief Buffer is used for index data. */
	RenderBufferTypeIndex
	/** @brief Buffer is used for per-instance data. */
	RenderBufferTypeInstance
	/** @brief Buffer is used for staging purposes (i.e. from host-visible to device-local memory) */
	RenderBufferTypeStaging
	/** @brief Buffer is used for reading purposes (i.e copy to from device local, then read) */
	RenderBufferTypeRead
)

func (t RenderBufferType) String() string {
	switch t {
	case RenderBufferTypeVertex:
		return "vertex"
	case RenderBufferTypeIndex:
		return "index"
	case RenderBufferTypeInstance:
		return "instance"
	case RenderBufferTypeStaging:
		return "staging"
	case RenderBufferTypeRead:
		return "read"
	}
	return "unknown"
}

/**
 * @brief Receives the result of a read-back. err is non-nil (and matches
 * core.ErrResourceReleased) when the resource was destroyed before the copy
 * completed.
 */
type ReadbackCallback func(data []byte, err error)

/**
 * @brief A byte range of a buffer to copy. An empty list of ranges passed to
 * an update means the whole buffer.
 */
type BufferUpdateRange struct {
	Offset uint64
	Length uint64
}

/** @brief A range, typically of memory */
type MemoryRange struct {
	/** @brief The Offset in bytes. */
	Offset uint64
	/** @brief The size in bytes. */
	Size uint64
}
