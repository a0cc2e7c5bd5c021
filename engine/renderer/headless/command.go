package headless

import (
	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

const instanceStride = 64

func (b *Backend) BeginCommand() error {
	if !b.initialized {
		return core.ErrBackendNotInitialized
	}
	if b.recording {
		return core.InvalidOperationf("a command is already recording")
	}
	b.recording = true
	b.copies = b.copies[:0]
	b.recorded = b.recorded[:0]
	return nil
}

/**
 * @brief Records a draw into the open command. Returns false without recording
 * anything when a referenced resource is missing or the draw range does not
 * fit the bound buffers.
 */
func (b *Backend) Render(pass *metadata.RenderPass, state *metadata.RenderState) bool {
	if !b.recording {
		core.LogError("Render called outside BeginCommand/SubmitCommand")
		return false
	}
	if state == nil || state.Layout == nil || state.Layout.Stride == 0 {
		core.LogError("Render called without a vertex layout")
		return false
	}
	vb, ok := b.vertexBuffers.TryGet(state.VertexBuffer)
	if !ok {
		core.LogError("Render: vertex buffer %d is not live", state.VertexBuffer.Index)
		return false
	}
	ib, ok := b.indexBuffers.TryGet(state.IndexBuffer)
	if !ok {
		core.LogError("Render: index buffer %d is not live", state.IndexBuffer.Index)
		return false
	}
	if ib.Native.format != state.IndexFormat {
		core.LogError("Render: index buffer %d holds %s indices, draw expects %s", state.IndexBuffer.Index, ib.Native.format, state.IndexFormat)
		return false
	}
	if state.DiffuseTexture.Valid {
		if _, ok := b.textures.TryGet(state.DiffuseTexture); !ok {
			core.LogError("Render: texture %d is not live", state.DiffuseTexture.Index)
			return false
		}
	}

	r := state.Range
	vertexCount := uint32(vb.Length / uint64(state.Layout.Stride))
	indexCount := uint32(ib.Length / uint64(state.IndexFormat.Size()))
	if r.IndexCount == 0 || r.StartIndex+r.IndexCount > indexCount || r.StartVertex+r.VertexCount > vertexCount {
		core.LogError("Render: draw range %+v exceeds %d vertices / %d indices", r, vertexCount, indexCount)
		return false
	}

	instances := uint32(1)
	if state.InstanceCount > 1 {
		inst, ok := b.vertexBuffers.TryGet(state.InstanceBuffer)
		if !ok || inst.Length < uint64(state.InstanceCount)*instanceStride {
			core.LogError("Render: instance buffer cannot hold %d instances", state.InstanceCount)
			return false
		}
		instances = state.InstanceCount
	}

	name := ""
	if pass != nil {
		name = pass.Name
	}
	b.recorded = append(b.recorded, DrawCall{
		Pass:       name,
		State:      *state,
		Instances:  instances,
		Primitives: state.Topology.PrimitiveCount(r.IndexCount),
	})
	b.stateBound = true
	return true
}

func (b *Backend) DiscardState() {
	b.stateBound = false
	b.stats.Discards++
}

// SubmitCommand runs the recorded copies, then the draws, then resolves
// read-backs. On failure the command stays open for CancelCommand.
func (b *Backend) SubmitCommand() error {
	if !b.recording {
		return core.InvalidOperationf("SubmitCommand without BeginCommand")
	}
	if err := b.failSubmit; err != nil {
		b.failSubmit = nil
		return err
	}
	for _, c := range b.copies {
		b.executeCopy(c)
	}
	b.copies = b.copies[:0]

	b.executed = append(b.executed[:0], b.recorded...)
	b.recorded = b.recorded[:0]
	for _, d := range b.executed {
		b.stats.Draws++
		if d.Instances > 1 {
			b.stats.InstancedDraws++
		}
	}

	b.recording = false
	b.stats.Submits++
	b.resolveReads(true)
	return nil
}

// CancelCommand drops the recorded draws and reads. Staged copies still run.
func (b *Backend) CancelCommand() {
	if !b.recording {
		return
	}
	for _, c := range b.copies {
		b.executeCopy(c)
	}
	b.copies = b.copies[:0]
	b.recorded = b.recorded[:0]
	b.recording = false
	b.stateBound = false
	b.stats.Cancels++

	var cancelled []pendingRead
	reads := b.reads[:0]
	for _, r := range b.reads {
		if r.inCommand {
			cancelled = append(cancelled, r)
			continue
		}
		reads = append(reads, r)
	}
	b.reads = reads
	for _, r := range cancelled {
		b.stats.FailedReadbacks++
		r.callback(nil, errors.Mark(errors.Newf("read-back of %s resource %d cancelled", r.kind, r.handle.Index), core.ErrCommandCancelled))
	}
}

// WaitIdle resolves read-backs issued outside an open command.
func (b *Backend) WaitIdle() error {
	if !b.initialized {
		return core.ErrBackendNotInitialized
	}
	b.resolveReads(false)
	return nil
}
