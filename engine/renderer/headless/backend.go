// Package headless is an in-memory renderer backend. It keeps every buffer and
// texture in host memory, executes copies and draws deterministically on
// SubmitCommand, and records what was drawn so it can be inspected.
package headless

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func init() {
	renderer.RegisterBackend(metadata.RendererTypeHeadless, func() renderer.RendererBackend {
		return New()
	})
}

const (
	defaultMaxBuffers   uint32 = 4096
	defaultMaxTextures  uint32 = 1024
	defaultStagingPool  uint32 = 4
	maxTextureDimension uint32 = 16384
)

type resourceKind uint8

const (
	kindVertex resourceKind = iota
	kindIndex
	kindTexture
)

func (k resourceKind) String() string {
	switch k {
	case kindVertex:
		return "vertex"
	case kindIndex:
		return "index"
	}
	return "texture"
}

type buffer struct {
	data   []byte
	format metadata.IndexFormat
}

type texture struct {
	desc   metadata.TextureDescriptor
	pixels []byte
}

type pendingCopy struct {
	kind    resourceKind
	handle  metadata.ResourceHandle
	staging []byte
	ranges  []metadata.BufferUpdateRange
	region  metadata.TextureRegion
}

type pendingRead struct {
	kind     resourceKind
	handle   metadata.ResourceHandle
	callback metadata.ReadbackCallback
	// Issued while a command was recording; cancelled with it.
	inCommand bool
}

// DrawCall is one draw executed by SubmitCommand.
type DrawCall struct {
	Pass       string
	State      metadata.RenderState
	Instances  uint32
	Primitives uint32
}

type Stats struct {
	Draws           uint64
	InstancedDraws  uint64
	Discards        uint64
	Submits         uint64
	Cancels         uint64
	Copies          uint64
	BytesUploaded   uint64
	Readbacks       uint64
	FailedReadbacks uint64
}

type Backend struct {
	config      metadata.RendererBackendConfig
	initialized bool

	vertexBuffers *metadata.ResourceTable[*buffer]
	indexBuffers  *metadata.ResourceTable[*buffer]
	textures      *metadata.ResourceTable[*texture]
	staging       *metadata.TransferBufferPool[[]byte]

	recording bool
	copies    []pendingCopy
	recorded  []DrawCall
	reads     []pendingRead

	executed   []DrawCall
	stateBound bool
	stats      Stats
	failSubmit error
}

var _ renderer.RendererBackend = (*Backend)(nil)

func New() *Backend {
	return &Backend{}
}

// FailNextSubmit makes the next SubmitCommand return err, leaving the command
// open the way a lost device does.
func (b *Backend) FailNextSubmit(err error) {
	b.failSubmit = err
}

func (b *Backend) Initialize(config *metadata.RendererBackendConfig) error {
	if b.initialized {
		return core.InvalidOperationf("headless backend already initialized")
	}
	if config != nil {
		b.config = *config
	}
	if b.config.MaxVertexBuffers == 0 {
		b.config.MaxVertexBuffers = defaultMaxBuffers
	}
	if b.config.MaxIndexBuffers == 0 {
		b.config.MaxIndexBuffers = defaultMaxBuffers
	}
	if b.config.MaxTextures == 0 {
		b.config.MaxTextures = defaultMaxTextures
	}
	if b.config.StagingPoolSize == 0 {
		b.config.StagingPoolSize = defaultStagingPool
	}

	b.vertexBuffers = metadata.NewResourceTable[*buffer](b.config.MaxVertexBuffers)
	b.indexBuffers = metadata.NewResourceTable[*buffer](b.config.MaxIndexBuffers)
	b.textures = metadata.NewResourceTable[*texture](b.config.MaxTextures)
	b.staging = metadata.NewTransferBufferPool[[]byte](
		int(b.config.StagingPoolSize),
		func(_ metadata.TransferDirection, size uint64) ([]byte, error) {
			return make([]byte, size), nil
		},
		func([]byte) {},
	)
	b.initialized = true
	core.LogDebug("headless backend ready: %d vertex, %d index, %d texture slots",
		b.config.MaxVertexBuffers, b.config.MaxIndexBuffers, b.config.MaxTextures)
	return nil
}

func (b *Backend) Shutdown() error {
	if !b.initialized {
		return core.ErrBackendNotInitialized
	}
	b.CancelCommand()

	var handles []metadata.ResourceHandle
	b.vertexBuffers.Each(func(h metadata.ResourceHandle, _ *metadata.ResourceSlot[*buffer]) { handles = append(handles, h) })
	for _, h := range handles {
		b.DestroyVertexBuffer(h)
	}
	handles = handles[:0]
	b.indexBuffers.Each(func(h metadata.ResourceHandle, _ *metadata.ResourceSlot[*buffer]) { handles = append(handles, h) })
	for _, h := range handles {
		b.DestroyIndexBuffer(h)
	}
	handles = handles[:0]
	b.textures.Each(func(h metadata.ResourceHandle, _ *metadata.ResourceSlot[*texture]) { handles = append(handles, h) })
	for _, h := range handles {
		b.DestroyTexture(h)
	}

	b.staging.Drain()
	b.executed = nil
	b.initialized = false
	return nil
}

func (b *Backend) Name() string {
	return "headless"
}

func (b *Backend) Capabilities() metadata.Capabilities {
	return metadata.Capabilities{
		MaxVertexBuffers: b.config.MaxVertexBuffers,
		MaxIndexBuffers:  b.config.MaxIndexBuffers,
		MaxTextures:      b.config.MaxTextures,
		MaxTextureSize:   maxTextureDimension,
		Instancing:       true,
		Index32:          true,
		Readback:         true,
	}
}

func (b *Backend) SupportsTextureFormat(format metadata.TextureFormat) bool {
	return format <= metadata.TextureFormatDepth32F
}

func (b *Backend) CreateVertexLayoutBuilder() *metadata.VertexLayoutBuilder {
	return metadata.NewVertexLayoutBuilder()
}

// Stats returns counters accumulated since Initialize.
func (b *Backend) Stats() Stats {
	return b.stats
}

// Executed returns the draws performed by the last SubmitCommand.
func (b *Backend) Executed() []DrawCall {
	out := make([]DrawCall, len(b.executed))
	copy(out, b.executed)
	return out
}

// Live returns how many resources of each kind are allocated.
func (b *Backend) Live() (vertex, index, textures uint32) {
	if !b.initialized {
		return 0, 0, 0
	}
	return b.vertexBuffers.Used(), b.indexBuffers.Used(), b.textures.Used()
}

// StagingStats reports staging buffer allocations and pool hits.
func (b *Backend) StagingStats() (created, reused uint64) {
	return b.staging.Stats()
}

func (b *Backend) released(kind resourceKind, h metadata.ResourceHandle) {
	if b.config.Events == nil {
		return
	}
	b.config.Events.Fire(b, core.NewEvent(core.ResourceReleasedEvent{Kind: kind.String(), Index: h.Index}))
}

func releasedError(kind resourceKind, h metadata.ResourceHandle) error {
	return errors.Mark(errors.Newf("%s resource %d released before read-back completed", kind, h.Index), core.ErrResourceReleased)
}
