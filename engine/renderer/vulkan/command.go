package vulkan

import (
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type pendingCopy struct {
	kind    resourceKind
	handle  metadata.ResourceHandle
	staging *VulkanBuffer
	ranges  []metadata.BufferUpdateRange
	region  metadata.TextureRegion
	// First fill of a resource created while recording.
	created bool
}

type pendingRead struct {
	kind     resourceKind
	handle   metadata.ResourceHandle
	callback metadata.ReadbackCallback
	// Issued while a command was recording; cancelled with it.
	inCommand bool
}

// recordedDraw is a validated draw waiting for SubmitCommand.
type recordedDraw struct {
	pass        metadata.RenderPass
	framebuffer *VulkanFramebuffer
	key         pipelineKey
	state       metadata.RenderState
	vertex      *VulkanBuffer
	index       *VulkanBuffer
	instance    *VulkanBuffer
	texture     *vulkanTexture
	instances   uint32
	// State was discarded before this draw; everything is bound again.
	rebind bool
}

func (r *VulkanRenderer) BeginCommand() error {
	if !r.initialized {
		return core.ErrBackendNotInitialized
	}
	if r.recording {
		return core.InvalidOperationf("a command is already recording")
	}
	r.recording = true
	r.copies = r.copies[:0]
	r.draws = r.draws[:0]
	return nil
}

/**
 * @brief Validates a draw and records it into the open command. Nothing is
 * recorded when a referenced resource is missing, the range does not fit the
 * bound buffers or no pipeline can be built for the state.
 */
func (r *VulkanRenderer) Render(pass *metadata.RenderPass, state *metadata.RenderState) bool {
	if !r.recording {
		core.LogError("Render called outside BeginCommand/SubmitCommand")
		return false
	}
	if !r.pipelines.CanDraw() {
		if !r.noShaders {
			core.LogError("Render: no shaders configured, draws are dropped")
			r.noShaders = true
		}
		return false
	}
	if state == nil || state.Layout == nil || state.Layout.Stride == 0 {
		core.LogError("Render called without a vertex layout")
		return false
	}
	vb, ok := r.vertexBuffers.TryGet(state.VertexBuffer)
	if !ok {
		core.LogError("Render: vertex buffer %d is not live", state.VertexBuffer.Index)
		return false
	}
	ib, ok := r.indexBuffers.TryGet(state.IndexBuffer)
	if !ok {
		core.LogError("Render: index buffer %d is not live", state.IndexBuffer.Index)
		return false
	}
	if ib.Native.format != state.IndexFormat {
		core.LogError("Render: index buffer %d holds %s indices, draw expects %s", state.IndexBuffer.Index, ib.Native.format, state.IndexFormat)
		return false
	}
	texture := r.whiteTexture
	if state.DiffuseTexture.Valid {
		ts, ok := r.textures.TryGet(state.DiffuseTexture)
		if !ok {
			core.LogError("Render: texture %d is not live", state.DiffuseTexture.Index)
			return false
		}
		if ts.Native.descriptor == vk.NullDescriptorSet {
			core.LogError("Render: texture %q cannot be sampled", ts.Native.desc.Name)
			return false
		}
		texture = ts.Native
	}

	rg := state.Range
	vertexCount := uint32(vb.Length / uint64(state.Layout.Stride))
	indexCount := uint32(ib.Length / uint64(state.IndexFormat.Size()))
	if rg.IndexCount == 0 || rg.StartIndex+rg.IndexCount > indexCount || rg.StartVertex+rg.VertexCount > vertexCount {
		core.LogError("Render: draw range %+v exceeds %d vertices / %d indices", rg, vertexCount, indexCount)
		return false
	}

	draw := recordedDraw{
		state:     *state,
		vertex:    vb.Native,
		index:     ib.Native,
		texture:   texture,
		instances: 1,
		rebind:    !r.stateBound,
	}
	if state.InstanceCount > 1 {
		inst, ok := r.vertexBuffers.TryGet(state.InstanceBuffer)
		if !ok || inst.Length < uint64(state.InstanceCount)*uint64(instanceStride) {
			core.LogError("Render: instance buffer cannot hold %d instances", state.InstanceCount)
			return false
		}
		draw.instance = inst.Native
		draw.instances = state.InstanceCount
	}

	draw.framebuffer = r.defaultFramebuffer
	draw.pass = metadata.RenderPass{ClearDepth: 1}
	if pass != nil {
		draw.pass = *pass
		if pass.Target.Valid {
			ts, ok := r.textures.TryGet(pass.Target)
			if !ok || ts.Native.framebuffer == nil {
				core.LogError("Render: pass %q target %d is not a live render target", pass.Name, pass.Target.Index)
				return false
			}
			if ts.Native == texture {
				core.LogError("Render: pass %q samples its own target", pass.Name)
				return false
			}
			draw.framebuffer = ts.Native.framebuffer
		}
	}

	draw.key = pipelineKey{
		renderPass: draw.framebuffer.Renderpass.Handle,
		layout:     state.Layout,
		topology:   state.Topology,
		cull:       state.Cull,
		blend:      state.Blend,
		depth:      state.Depth,
		instanced:  draw.instance != nil,
	}
	if _, err := r.pipelines.Get(r.context, draw.key); err != nil {
		core.LogError("Render: %s", err)
		return false
	}

	r.draws = append(r.draws, draw)
	r.stateBound = true
	return true
}

func (r *VulkanRenderer) DiscardState() {
	r.stateBound = false
	r.stats.Discards++
}

/**
 * @brief Executes the recorded copies, then the draws grouped by pass, then
 * resolves read-backs. On failure the command stays open with its copies and
 * draws queued; the caller must CancelCommand.
 */
func (r *VulkanRenderer) SubmitCommand() error {
	if !r.recording {
		return core.InvalidOperationf("SubmitCommand without BeginCommand")
	}
	cb := r.commandBuffer
	if err := cb.Reset(); err != nil {
		r.failCommandReads(err)
		return err
	}
	if err := cb.Begin(true, false, false); err != nil {
		r.failCommandReads(err)
		return err
	}
	var copied uint64
	for _, c := range r.copies {
		copied += r.recordCopy(cb.Handle, c)
	}
	if len(r.copies) > 0 {
		transferBarrier(cb.Handle)
	}
	r.recordDraws(cb, r.draws)
	if err := cb.End(); err != nil {
		r.failCommandReads(err)
		return err
	}

	if err := r.fence.Reset(r.context); err != nil {
		r.failCommandReads(err)
		return err
	}
	if err := cb.Submit(r.context.Device.GraphicsQueue, r.fence); err != nil {
		r.failCommandReads(err)
		return err
	}
	if err := r.fence.Wait(r.context, math.MaxUint64); err != nil {
		r.failCommandReads(err)
		return err
	}
	cb.State = CommandBufferStateReady

	for _, d := range r.draws {
		r.stats.Draws++
		if d.instances > 1 {
			r.stats.InstancedDraws++
		}
	}
	r.countCopies(len(r.copies), copied)
	r.returnStaging(r.copies)
	r.copies, r.draws = nil, r.draws[:0]
	r.recording = false
	r.stats.Submits++
	r.FrameNumber++
	r.resolveReads(true)
	return nil
}

func (r *VulkanRenderer) recordDraws(cb *VulkanCommandBuffer, draws []recordedDraw) {
	var targets []*vulkanTexture
	for start := 0; start < len(draws); {
		end := start + 1
		for end < len(draws) && draws[end].framebuffer == draws[start].framebuffer && draws[end].pass.Name == draws[start].pass.Name {
			end++
		}
		run := draws[start:end]
		fb := run[0].framebuffer

		// Sampled images must be readable before the pass begins.
		for _, d := range run {
			d.texture.image.Transition(cb.Handle, vk.ImageLayoutShaderReadOnlyOptimal)
		}
		fb.prepare(cb.Handle)
		if fb != r.defaultFramebuffer {
			if tex := r.textureFor(fb); tex != nil {
				targets = append(targets, tex)
			}
		}

		fb.Renderpass.Begin(cb, fb, run[0].pass.ClearColour, run[0].pass.ClearDepth)
		vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{{
			Width:    float32(fb.Width),
			Height:   float32(fb.Height),
			MinDepth: 0,
			MaxDepth: 1,
		}})
		vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{{
			Extent: vk.Extent2D{Width: fb.Width, Height: fb.Height},
		}})

		var bound *VulkanPipeline
		var boundSet vk.DescriptorSet
		for _, d := range run {
			pipeline, _ := r.pipelines.Get(r.context, d.key)
			if d.rebind || pipeline != bound {
				pipeline.Bind(cb, vk.PipelineBindPointGraphics)
				bound = pipeline
				boundSet = vk.NullDescriptorSet
			}
			if d.texture.descriptor != boundSet {
				vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, r.pipelines.Layout,
					0, 1, []vk.DescriptorSet{d.texture.descriptor}, 0, nil)
				boundSet = d.texture.descriptor
			}
			pushDrawConstants(cb.Handle, r.pipelines.Layout, &d.state)

			if d.instance != nil {
				vk.CmdBindVertexBuffers(cb.Handle, 0, 2,
					[]vk.Buffer{d.vertex.Handle, d.instance.Handle}, []vk.DeviceSize{0, 0})
			} else {
				vk.CmdBindVertexBuffers(cb.Handle, 0, 1, []vk.Buffer{d.vertex.Handle}, []vk.DeviceSize{0})
			}
			indexType := vk.IndexTypeUint16
			if d.state.IndexFormat == metadata.IndexFormatUInt32 {
				indexType = vk.IndexTypeUint32
			}
			vk.CmdBindIndexBuffer(cb.Handle, d.index.Handle, 0, indexType)
			// Indices address the whole vertex buffer, so no vertex offset.
			vk.CmdDrawIndexed(cb.Handle, d.state.Range.IndexCount, d.instances, d.state.Range.StartIndex, 0, 0)
		}
		fb.Renderpass.End(cb)
		start = end
	}

	for _, tex := range targets {
		tex.image.Transition(cb.Handle, restingLayout(tex.desc.Flags, tex.desc.Format))
	}
}

func pushDrawConstants(cmd vk.CommandBuffer, layout vk.PipelineLayout, state *metadata.RenderState) {
	var constants [20]float32
	copy(constants[:16], state.World.Data[:])
	constants[16] = state.DiffuseColour.X
	constants[17] = state.DiffuseColour.Y
	constants[18] = state.DiffuseColour.Z
	constants[19] = state.DiffuseColour.W
	vk.CmdPushConstants(cmd, layout,
		vk.ShaderStageFlags(vk.ShaderStageVertexBit)|vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		0, pushConstantSize, unsafe.Pointer(&constants[0]))
}

func (r *VulkanRenderer) textureFor(fb *VulkanFramebuffer) *vulkanTexture {
	var found *vulkanTexture
	r.textures.Each(func(_ metadata.ResourceHandle, s *metadata.ResourceSlot[*vulkanTexture]) {
		if s.Native.framebuffer == fb {
			found = s.Native
		}
	})
	return found
}

// transferBarrier makes copied data visible to vertex input and shaders.
func transferBarrier(cmd vk.CommandBuffer) {
	vk.CmdPipelineBarrier(cmd,
		vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		vk.PipelineStageFlags(vk.PipelineStageVertexInputBit|vk.PipelineStageFragmentShaderBit),
		vk.DependencyFlags(0),
		1, []vk.MemoryBarrier{{
			SType:         vk.StructureTypeMemoryBarrier,
			SrcAccessMask: vk.AccessFlags(vk.AccessTransferWriteBit),
			DstAccessMask: vk.AccessFlags(vk.AccessVertexAttributeReadBit | vk.AccessIndexReadBit | vk.AccessShaderReadBit),
		}},
		0, nil, 0, nil)
}

/**
 * @brief Drops the recorded draws and fails the reads issued in the command.
 * Staged copies are flushed outside the command.
 */
func (r *VulkanRenderer) CancelCommand() {
	if !r.recording {
		return
	}
	copies := r.copies
	r.copies, r.draws = nil, r.draws[:0]
	r.recording = false
	r.flushCopies(copies)
	r.stateBound = false
	r.stats.Cancels++

	var cancelled []pendingRead
	reads := r.reads[:0]
	for _, rd := range r.reads {
		if rd.inCommand {
			cancelled = append(cancelled, rd)
			continue
		}
		reads = append(reads, rd)
	}
	r.reads = reads
	for _, rd := range cancelled {
		r.stats.FailedReadbacks++
		rd.callback(nil, errors.Mark(errors.Newf("read-back of %s resource %d cancelled", rd.kind, rd.handle.Index), core.ErrCommandCancelled))
	}
}

/**
 * @brief Runs copies in a single one-off submission. If that fails, resources
 * whose first fill was among them are destroyed.
 */
func (r *VulkanRenderer) flushCopies(copies []pendingCopy) {
	if len(copies) == 0 {
		return
	}
	defer r.returnStaging(copies)
	var copied uint64
	err := r.immediate(func(cmd vk.CommandBuffer) {
		for _, c := range copies {
			copied += r.recordCopy(cmd, c)
		}
	})
	if err == nil {
		r.countCopies(len(copies), copied)
		return
	}
	core.LogError("flushing %d staged copies: %s", len(copies), err)
	for _, c := range copies {
		if !c.created {
			continue
		}
		switch c.kind {
		case kindVertex:
			r.destroyBuffer(kindVertex, r.vertexBuffers, c.handle)
		case kindIndex:
			r.destroyBuffer(kindIndex, r.indexBuffers, c.handle)
		case kindTexture:
			r.DestroyTexture(c.handle)
		}
	}
}

// WaitIdle drains the queue and resolves read-backs issued outside an open command.
func (r *VulkanRenderer) WaitIdle() error {
	if !r.initialized {
		return core.ErrBackendNotInitialized
	}
	if err := r.waitQueue(); err != nil {
		return err
	}
	r.resolveReads(false)
	return nil
}

func (r *VulkanRenderer) waitQueue() error {
	if res := vk.QueueWaitIdle(r.context.Device.GraphicsQueue); res != vk.Success {
		err := resultError("vkQueueWaitIdle", res)
		core.LogError("%s", err)
		return err
	}
	return nil
}

// immediate records fn into a one-off command buffer and waits for it to finish.
func (r *VulkanRenderer) immediate(fn func(cmd vk.CommandBuffer)) error {
	device := r.context.Device
	cb, err := AllocateAndBeginSingleUse(r.context, device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	fn(cb.Handle)
	return cb.EndSingleUse(r.context, device.GraphicsCommandPool, device.GraphicsQueue)
}

// upload stages data. While a command is recording the copy waits for
// SubmitCommand, otherwise it runs immediately.
func (r *VulkanRenderer) upload(c pendingCopy, data []byte) bool {
	size := uint64(len(data))
	staging, err := r.staging.Acquire(metadata.TransferUpload, size)
	if err != nil {
		core.LogError("acquiring staging buffer: %s", err)
		return false
	}
	staging.Write(0, data)
	c.staging = staging
	if r.recording {
		r.copies = append(r.copies, c)
		return true
	}

	defer r.staging.Return(metadata.TransferUpload, size, staging)
	var copied uint64
	if err := r.immediate(func(cmd vk.CommandBuffer) { copied = r.recordCopy(cmd, c) }); err != nil {
		core.LogError("uploading %s resource %d: %s", c.kind, c.handle.Index, err)
		return false
	}
	r.countCopies(1, copied)
	return true
}

func (r *VulkanRenderer) returnStaging(copies []pendingCopy) {
	for _, c := range copies {
		r.staging.Return(metadata.TransferUpload, c.staging.Size, c.staging)
	}
}

// recordCopy records c and returns the bytes it moves. Copies to released
// resources are skipped.
func (r *VulkanRenderer) recordCopy(cmd vk.CommandBuffer, c pendingCopy) uint64 {
	switch c.kind {
	case kindVertex, kindIndex:
		table := r.vertexBuffers
		if c.kind == kindIndex {
			table = r.indexBuffers
		}
		if slot, ok := table.TryGet(c.handle); ok {
			return recordBufferCopy(cmd, c.staging, slot.Native, c.ranges)
		}
	case kindTexture:
		if slot, ok := r.textures.TryGet(c.handle); ok {
			return recordImageCopy(cmd, c.staging, slot.Native, c.region)
		}
	}
	return 0
}

func (r *VulkanRenderer) countCopies(n int, bytes uint64) {
	r.stats.Copies += uint64(n)
	r.stats.BytesUploaded += bytes
}

// recordImageCopy uploads a tightly packed region and returns the texture to its resting layout.
func recordImageCopy(cmd vk.CommandBuffer, staging *VulkanBuffer, tex *vulkanTexture, region metadata.TextureRegion) uint64 {
	img := tex.image
	img.Transition(cmd, vk.ImageLayoutTransferDstOptimal)
	copyInfo := img.copyRegion(region)
	vk.CmdCopyBufferToImage(cmd, staging.Handle, img.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{copyInfo})
	img.Transition(cmd, restingLayout(tex.desc.Flags, tex.desc.Format))
	extent := copyInfo.ImageExtent
	return uint64(extent.Width) * uint64(extent.Height) * uint64(tex.desc.Format.BytesPerPixel())
}

// recordImageRead copies the whole image into staging, leaving it in layout afterwards.
func recordImageRead(cmd vk.CommandBuffer, img *VulkanImage, staging *VulkanBuffer, layout vk.ImageLayout) {
	img.Transition(cmd, vk.ImageLayoutTransferSrcOptimal)
	vk.CmdCopyImageToBuffer(cmd, img.Handle, vk.ImageLayoutTransferSrcOptimal, staging.Handle, 1,
		[]vk.BufferImageCopy{img.copyRegion(metadata.TextureRegion{})})
	img.Transition(cmd, layout)
}

func (r *VulkanRenderer) resourceLength(kind resourceKind, h metadata.ResourceHandle) (uint64, bool) {
	switch kind {
	case kindVertex:
		if s, ok := r.vertexBuffers.TryGet(h); ok {
			return s.Length, true
		}
	case kindIndex:
		if s, ok := r.indexBuffers.TryGet(h); ok {
			return s.Length, true
		}
	case kindTexture:
		if s, ok := r.textures.TryGet(h); ok {
			return s.Length, true
		}
	}
	return 0, false
}

func (r *VulkanRenderer) queueRead(kind resourceKind, h metadata.ResourceHandle, callback metadata.ReadbackCallback) bool {
	if !r.initialized || callback == nil {
		return false
	}
	if _, ok := r.resourceLength(kind, h); !ok {
		core.LogError("read-back of unknown %s resource %d", kind, h.Index)
		return false
	}
	r.reads = append(r.reads, pendingRead{kind: kind, handle: h, callback: callback, inCommand: r.recording})
	return true
}

// resolveReads copies queued read-backs through download staging buffers in
// one submission. When includeCommand is false, reads recorded in the open
// command stay queued.
func (r *VulkanRenderer) resolveReads(includeCommand bool) {
	var ready, waiting []pendingRead
	for _, rd := range r.reads {
		if rd.inCommand && !includeCommand {
			waiting = append(waiting, rd)
			continue
		}
		ready = append(ready, rd)
	}
	r.reads = waiting
	if len(ready) == 0 {
		return
	}

	type transfer struct {
		read    pendingRead
		staging *VulkanBuffer
		size    uint64
	}
	var transfers []transfer
	for _, rd := range ready {
		size, ok := r.resourceLength(rd.kind, rd.handle)
		if !ok {
			r.stats.FailedReadbacks++
			rd.callback(nil, releasedError(rd.kind, rd.handle))
			continue
		}
		staging, err := r.staging.Acquire(metadata.TransferDownload, size)
		if err != nil {
			r.stats.FailedReadbacks++
			rd.callback(nil, err)
			continue
		}
		transfers = append(transfers, transfer{read: rd, staging: staging, size: size})
	}
	if len(transfers) == 0 {
		return
	}

	err := r.immediate(func(cmd vk.CommandBuffer) {
		for _, t := range transfers {
			switch t.read.kind {
			case kindVertex:
				s, _ := r.vertexBuffers.TryGet(t.read.handle)
				vk.CmdCopyBuffer(cmd, s.Native.Handle, t.staging.Handle, 1, []vk.BufferCopy{{Size: vk.DeviceSize(t.size)}})
			case kindIndex:
				s, _ := r.indexBuffers.TryGet(t.read.handle)
				vk.CmdCopyBuffer(cmd, s.Native.Handle, t.staging.Handle, 1, []vk.BufferCopy{{Size: vk.DeviceSize(t.size)}})
			case kindTexture:
				s, _ := r.textures.TryGet(t.read.handle)
				tex := s.Native
				recordImageRead(cmd, tex.image, t.staging, restingLayout(tex.desc.Flags, tex.desc.Format))
			}
		}
	})

	for _, t := range transfers {
		if err != nil {
			r.stats.FailedReadbacks++
			t.read.callback(nil, errors.Wrapf(err, "reading back %s resource %d", t.read.kind, t.read.handle.Index))
		} else {
			r.stats.Readbacks++
			t.read.callback(t.staging.Bytes(t.size), nil)
		}
		r.staging.Return(metadata.TransferDownload, t.size, t.staging)
	}
}

// failCommandReads fails every read queued in a command whose submission failed.
func (r *VulkanRenderer) failCommandReads(cause error) {
	var failed []pendingRead
	reads := r.reads[:0]
	for _, rd := range r.reads {
		if rd.inCommand {
			failed = append(failed, rd)
			continue
		}
		reads = append(reads, rd)
	}
	r.reads = reads
	for _, rd := range failed {
		r.stats.FailedReadbacks++
		rd.callback(nil, errors.Wrapf(cause, "read-back of %s resource %d", rd.kind, rd.handle.Index))
	}
}

// dropPending discards copies and draws referencing a released resource and
// fails its outstanding read-backs.
func (r *VulkanRenderer) dropPending(kind resourceKind, h metadata.ResourceHandle) {
	copies := r.copies[:0]
	for _, c := range r.copies {
		if c.kind == kind && c.handle == h {
			r.staging.Return(metadata.TransferUpload, c.staging.Size, c.staging)
			continue
		}
		copies = append(copies, c)
	}
	r.copies = copies

	draws := r.draws[:0]
	for _, d := range r.draws {
		if drawReferences(d, kind, h) {
			continue
		}
		draws = append(draws, d)
	}
	r.draws = draws

	var failed []pendingRead
	reads := r.reads[:0]
	for _, rd := range r.reads {
		if rd.kind == kind && rd.handle == h {
			failed = append(failed, rd)
			continue
		}
		reads = append(reads, rd)
	}
	r.reads = reads
	for _, rd := range failed {
		r.stats.FailedReadbacks++
		rd.callback(nil, releasedError(kind, h))
	}
}

func drawReferences(d recordedDraw, kind resourceKind, h metadata.ResourceHandle) bool {
	s := d.state
	switch kind {
	case kindVertex:
		return s.VertexBuffer == h || (d.instance != nil && s.InstanceBuffer == h)
	case kindIndex:
		return s.IndexBuffer == h
	case kindTexture:
		return (s.DiffuseTexture.Valid && s.DiffuseTexture == h) || (d.pass.Target.Valid && d.pass.Target == h)
	}
	return false
}
