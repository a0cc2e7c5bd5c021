// Package vulkan is an offscreen Vulkan renderer backend. Draws land in a
// colour image owned by the backend, or in render-target textures; nothing is
// presented to a window.
package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

func init() {
	renderer.RegisterBackend(metadata.RendererTypeVulkan, func() renderer.RendererBackend {
		return New()
	})
}

const (
	defaultMaxBuffers   uint32 = 4096
	defaultMaxTextures  uint32 = 1024
	defaultStagingPool  uint32 = 4
	defaultTargetWidth  uint32 = 1280
	defaultTargetHeight uint32 = 720

	validationLayer = "VK_LAYER_KHRONOS_validation"
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

type VulkanRenderer struct {
	config      metadata.RendererBackendConfig
	platform    *platform.Platform
	context     *VulkanContext
	initialized bool
	FrameNumber uint64

	vertexBuffers *metadata.ResourceTable[*VulkanBuffer]
	indexBuffers  *metadata.ResourceTable[*VulkanBuffer]
	textures      *metadata.ResourceTable[*vulkanTexture]
	staging       *metadata.TransferBufferPool[*VulkanBuffer]

	descriptors  *VulkanDescriptorAllocator
	pipelines    *VulkanPipelineCache
	renderpasses map[vk.Format]*VulkanRenderpass
	// Draws without a target land here.
	defaultTarget      *VulkanImage
	defaultFramebuffer *VulkanFramebuffer
	// Bound when a draw has no diffuse texture.
	whiteTexture *vulkanTexture

	commandBuffer *VulkanCommandBuffer
	fence         *VulkanFence

	recording  bool
	copies     []pendingCopy
	draws      []recordedDraw
	reads      []pendingRead
	stateBound bool
	noShaders  bool
	stats      Stats
}

var _ renderer.RendererBackend = (*VulkanRenderer)(nil)

func New() *VulkanRenderer {
	return &VulkanRenderer{
		platform:     platform.Shared(),
		context:      &VulkanContext{},
		renderpasses: make(map[vk.Format]*VulkanRenderpass),
	}
}

func (r *VulkanRenderer) Initialize(config *metadata.RendererBackendConfig) error {
	if r.initialized {
		return core.InvalidOperationf("vulkan backend already initialized")
	}
	if config != nil {
		r.config = *config
	}
	r.applyDefaults()

	if err := r.initialize(); err != nil {
		r.teardown()
		return err
	}
	r.initialized = true
	core.LogInfo("Vulkan renderer initialized successfully.")
	return nil
}

func (r *VulkanRenderer) applyDefaults() {
	if r.config.ApplicationName == "" {
		r.config.ApplicationName = "Lumen"
	}
	if r.config.MaxVertexBuffers == 0 {
		r.config.MaxVertexBuffers = defaultMaxBuffers
	}
	if r.config.MaxIndexBuffers == 0 {
		r.config.MaxIndexBuffers = defaultMaxBuffers
	}
	if r.config.MaxTextures == 0 {
		r.config.MaxTextures = defaultMaxTextures
	}
	if r.config.StagingPoolSize == 0 {
		r.config.StagingPoolSize = defaultStagingPool
	}
	if r.config.TargetWidth == 0 || r.config.TargetHeight == 0 {
		r.config.TargetWidth = defaultTargetWidth
		r.config.TargetHeight = defaultTargetHeight
	}
}

func (r *VulkanRenderer) initialize() error {
	if err := r.platform.Startup(); err != nil {
		return err
	}
	procAddr, err := r.platform.VulkanProcAddr()
	if err != nil {
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return errors.Wrap(err, "initializing vulkan loader")
	}

	if err := r.createInstance(); err != nil {
		return err
	}
	if err := DeviceCreate(r.context); err != nil {
		return errors.Wrap(err, "creating device")
	}

	r.vertexBuffers = metadata.NewResourceTable[*VulkanBuffer](r.config.MaxVertexBuffers)
	r.indexBuffers = metadata.NewResourceTable[*VulkanBuffer](r.config.MaxIndexBuffers)
	r.textures = metadata.NewResourceTable[*vulkanTexture](r.config.MaxTextures)
	r.staging = metadata.NewTransferBufferPool[*VulkanBuffer](
		int(r.config.StagingPoolSize),
		r.createStaging,
		func(b *VulkanBuffer) { b.Destroy(r.context) },
	)

	// One extra set for the white fallback texture.
	if r.descriptors, err = NewDescriptorAllocator(r.context, r.config.MaxTextures+1); err != nil {
		return err
	}
	if r.pipelines, err = NewPipelineCache(r.context, r.descriptors.Layout, r.config.VertexShader, r.config.FragmentShader); err != nil {
		return err
	}

	if r.commandBuffer, err = NewVulkanCommandBuffer(r.context, r.context.Device.GraphicsCommandPool, true); err != nil {
		return err
	}
	if r.fence, err = NewFence(r.context, false); err != nil {
		return err
	}

	if err := r.createDefaultTarget(); err != nil {
		return err
	}
	return r.createWhiteTexture()
}

func (r *VulkanRenderer) createInstance() error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 1, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(r.config.ApplicationName),
		PEngineName:        VulkanSafeString("Lumen Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	var extensions []string
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	var layers []string
	if r.config.Validation {
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
		if err := requireLayer(validationLayer); err != nil {
			return err
		}
		layers = append(layers, validationLayer)
		core.LogInfo("Validation layers enabled.")
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, r.context.Allocator, &instance); res != vk.Success {
		return resultError("vkCreateInstance", res)
	}
	r.context.Instance = instance
	if err := vk.InitInstance(instance); err != nil {
		return errors.Wrap(err, "loading instance functions")
	}
	core.LogInfo("Vulkan Instance created.")

	if r.config.Validation {
		core.LogDebug("Creating Vulkan debugger...")
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(instance, &debugCreateInfo, r.context.Allocator, &dbg); res != vk.Success {
			return resultError("vkCreateDebugReportCallback", res)
		}
		r.context.debugMessenger = dbg
	}
	return nil
}

func requireLayer(name string) error {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}
	available := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, available); res != vk.Success {
		return resultError("vkEnumerateInstanceLayerProperties", res)
	}
	for i := range available {
		available[i].Deref()
		if vk.ToString(available[i].LayerName[:]) == name {
			return nil
		}
	}
	return errors.Mark(errors.Newf("required validation layer %s is missing", name), core.ErrUnsupported)
}

func (r *VulkanRenderer) createStaging(dir metadata.TransferDirection, size uint64) (*VulkanBuffer, error) {
	usage := vk.BufferUsageTransferSrcBit
	if dir == metadata.TransferDownload {
		usage = vk.BufferUsageTransferDstBit
	}
	return NewVulkanBuffer(r.context, size, usage, vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
}

// renderpass returns the pass drawing into colour images of format, creating it on first use.
func (r *VulkanRenderer) renderpass(format vk.Format) (*VulkanRenderpass, error) {
	if rp, ok := r.renderpasses[format]; ok {
		return rp, nil
	}
	rp, err := RenderpassCreate(r.context, format)
	if err != nil {
		return nil, err
	}
	r.renderpasses[format] = rp
	return rp, nil
}

func (r *VulkanRenderer) newTargetFramebuffer(color *VulkanImage) (*VulkanFramebuffer, error) {
	rp, err := r.renderpass(color.Format)
	if err != nil {
		return nil, err
	}
	return FramebufferCreate(r.context, rp, color)
}

func (r *VulkanRenderer) createDefaultTarget() error {
	target, err := NewVulkanImage(r.context, r.config.TargetWidth, r.config.TargetHeight, vk.FormatR8g8b8a8Unorm,
		vk.ImageUsageColorAttachmentBit|vk.ImageUsageTransferSrcBit, vk.ImageAspectColorBit)
	if err != nil {
		return errors.Wrap(err, "creating default render target")
	}
	r.defaultTarget = target
	if r.defaultFramebuffer, err = r.newTargetFramebuffer(target); err != nil {
		return err
	}
	return r.immediate(func(cmd vk.CommandBuffer) {
		r.defaultFramebuffer.prepare(cmd)
	})
}

func (r *VulkanRenderer) createWhiteTexture() error {
	desc := metadata.TextureDescriptor{Name: "white", Width: 1, Height: 1, Format: metadata.TextureFormatRGBA8}
	tex, err := r.newTexture(desc, vk.FormatR8g8b8a8Unorm)
	if err != nil {
		return errors.Wrap(err, "creating fallback texture")
	}
	r.whiteTexture = tex
	staging, err := r.staging.Acquire(metadata.TransferUpload, 4)
	if err != nil {
		return err
	}
	defer r.staging.Return(metadata.TransferUpload, 4, staging)
	staging.Write(0, []byte{0xff, 0xff, 0xff, 0xff})
	return r.immediate(func(cmd vk.CommandBuffer) {
		recordImageCopy(cmd, staging, tex, metadata.TextureRegion{})
	})
}

func (r *VulkanRenderer) Shutdown() error {
	if !r.initialized {
		return core.ErrBackendNotInitialized
	}
	r.CancelCommand()

	var handles []metadata.ResourceHandle
	r.vertexBuffers.Each(func(h metadata.ResourceHandle, _ *metadata.ResourceSlot[*VulkanBuffer]) { handles = append(handles, h) })
	for _, h := range handles {
		r.DestroyVertexBuffer(h)
	}
	handles = handles[:0]
	r.indexBuffers.Each(func(h metadata.ResourceHandle, _ *metadata.ResourceSlot[*VulkanBuffer]) { handles = append(handles, h) })
	for _, h := range handles {
		r.DestroyIndexBuffer(h)
	}
	handles = handles[:0]
	r.textures.Each(func(h metadata.ResourceHandle, _ *metadata.ResourceSlot[*vulkanTexture]) { handles = append(handles, h) })
	for _, h := range handles {
		r.DestroyTexture(h)
	}

	// Reads issued outside a command still get an answer.
	r.resolveReads(false)
	r.teardown()
	r.initialized = false
	return nil
}

// teardown destroys whatever Initialize managed to create, in reverse order.
func (r *VulkanRenderer) teardown() {
	ctx := r.context
	if ctx.Device != nil && ctx.Device.LogicalDevice != nil {
		vk.DeviceWaitIdle(ctx.Device.LogicalDevice)

		if r.staging != nil {
			r.staging.Drain()
		}
		if r.whiteTexture != nil {
			r.destroyTexture(r.whiteTexture)
			r.whiteTexture = nil
		}
		if r.defaultFramebuffer != nil {
			r.defaultFramebuffer.Destroy(ctx)
			r.defaultFramebuffer = nil
		}
		if r.defaultTarget != nil {
			r.defaultTarget.Destroy(ctx)
			r.defaultTarget = nil
		}
		for format, rp := range r.renderpasses {
			rp.Destroy(ctx)
			delete(r.renderpasses, format)
		}
		if r.pipelines != nil {
			r.pipelines.Destroy(ctx)
			r.pipelines = nil
		}
		if r.descriptors != nil {
			r.descriptors.Destroy(ctx)
			r.descriptors = nil
		}
		if r.fence != nil {
			r.fence.Destroy(ctx)
			r.fence = nil
		}
		if r.commandBuffer != nil {
			r.commandBuffer.Free(ctx, ctx.Device.GraphicsCommandPool)
			r.commandBuffer = nil
		}
		core.LogDebug("Destroying Vulkan device...")
		DeviceDestroy(ctx)
	}

	if ctx.debugMessenger != vk.NullDebugReportCallback {
		core.LogDebug("Destroying Vulkan debugger...")
		vk.DestroyDebugReportCallback(ctx.Instance, ctx.debugMessenger, ctx.Allocator)
		ctx.debugMessenger = vk.NullDebugReportCallback
	}
	if ctx.Instance != nil {
		core.LogDebug("Destroying Vulkan instance...")
		vk.DestroyInstance(ctx.Instance, ctx.Allocator)
		ctx.Instance = nil
	}
	if err := r.platform.Shutdown(); err != nil {
		core.LogWarn("platform shutdown: %s", err)
	}
}

func (r *VulkanRenderer) Name() string {
	return "vulkan"
}

func (r *VulkanRenderer) Capabilities() metadata.Capabilities {
	caps := metadata.Capabilities{
		MaxVertexBuffers: r.config.MaxVertexBuffers,
		MaxIndexBuffers:  r.config.MaxIndexBuffers,
		MaxTextures:      r.config.MaxTextures,
		Instancing:       true,
		Index32:          true,
		Readback:         true,
	}
	if r.context.Device != nil {
		caps.MaxTextureSize = r.context.Device.Properties.Limits.MaxImageDimension2D
	}
	return caps
}

func (r *VulkanRenderer) CreateVertexLayoutBuilder() *metadata.VertexLayoutBuilder {
	return metadata.NewVertexLayoutBuilder()
}

// Stats returns counters accumulated since Initialize.
func (r *VulkanRenderer) Stats() Stats {
	return r.stats
}

// PipelineCount reports how many pipelines have been built.
func (r *VulkanRenderer) PipelineCount() int {
	if r.pipelines == nil {
		return 0
	}
	return r.pipelines.Len()
}

// ReadDefaultTarget copies the default colour target back as tightly packed RGBA8.
func (r *VulkanRenderer) ReadDefaultTarget() ([]byte, error) {
	if !r.initialized {
		return nil, core.ErrBackendNotInitialized
	}
	if r.recording {
		return nil, core.InvalidOperationf("cannot read the default target while a command is recording")
	}
	size := uint64(r.defaultTarget.Width) * uint64(r.defaultTarget.Height) * 4
	staging, err := r.staging.Acquire(metadata.TransferDownload, size)
	if err != nil {
		return nil, err
	}
	defer r.staging.Return(metadata.TransferDownload, size, staging)
	err = r.immediate(func(cmd vk.CommandBuffer) {
		recordImageRead(cmd, r.defaultTarget, staging, vk.ImageLayoutColorAttachmentOptimal)
	})
	if err != nil {
		return nil, err
	}
	return staging.Bytes(size), nil
}

func (r *VulkanRenderer) released(kind resourceKind, h metadata.ResourceHandle) {
	if r.config.Events == nil {
		return
	}
	r.config.Events.Fire(r, core.NewEvent(core.ResourceReleasedEvent{Kind: kind.String(), Index: h.Index}))
}

func releasedError(kind resourceKind, h metadata.ResourceHandle) error {
	return errors.Mark(errors.Newf("%s resource %d released before read-back completed", kind, h.Index), core.ErrResourceReleased)
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE: [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
