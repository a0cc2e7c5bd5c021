package renderer

import "github.com/spaghettifunk/lumen/engine/renderer/metadata"

/**
 * @brief The contract every GPU backend implements. Resources are referred to
 * by handles into backend-owned tables. Creation failures (exhausted tables,
 * native allocation errors) return metadata.InvalidHandle and are logged by
 * the backend; they never panic.
 *
 * Backends are driven from a single thread.
 */
type RendererBackend interface {
	Initialize(config *metadata.RendererBackendConfig) error
	Shutdown() error
	Name() string
	Capabilities() metadata.Capabilities
	SupportsTextureFormat(format metadata.TextureFormat) bool
	CreateVertexLayoutBuilder() *metadata.VertexLayoutBuilder

	CreateVertexBuffer(data []byte, flags metadata.ResourceFlags) metadata.ResourceHandle
	// UpdateVertexBuffer copies data through a staging buffer. With ranges only
	// those byte ranges are copied. len(data) must equal the buffer length.
	UpdateVertexBuffer(handle metadata.ResourceHandle, data []byte, ranges ...metadata.BufferUpdateRange) bool
	ReadVertexBuffer(handle metadata.ResourceHandle, callback metadata.ReadbackCallback) bool
	DestroyVertexBuffer(handle metadata.ResourceHandle)

	CreateIndexBuffer(data []byte, format metadata.IndexFormat, flags metadata.ResourceFlags) metadata.ResourceHandle
	UpdateIndexBuffer(handle metadata.ResourceHandle, data []byte, ranges ...metadata.BufferUpdateRange) bool
	ReadIndexBuffer(handle metadata.ResourceHandle, callback metadata.ReadbackCallback) bool
	DestroyIndexBuffer(handle metadata.ResourceHandle)

	CreateTexture(desc metadata.TextureDescriptor, pixels []byte) metadata.ResourceHandle
	UpdateTexture(handle metadata.ResourceHandle, region metadata.TextureRegion, pixels []byte) bool
	ReadTexture(handle metadata.ResourceHandle, callback metadata.ReadbackCallback) bool
	DestroyTexture(handle metadata.ResourceHandle)

	// BeginCommand starts recording. Copies and draws issued while recording are
	// executed by SubmitCommand, copies first.
	BeginCommand() error
	Render(pass *metadata.RenderPass, state *metadata.RenderState) bool
	// DiscardState forgets bound pipeline state so the next draw rebinds everything.
	DiscardState()
	// SubmitCommand leaves the command open when it fails; cancel it then.
	SubmitCommand() error
	// CancelCommand drops the draws and read-backs recorded since BeginCommand.
	// Copies staged in the command still reach their resources.
	CancelCommand()
	// WaitIdle blocks until submitted work, including read-backs, has completed.
	WaitIdle() error
}
