package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

/**
 * @brief A VkBuffer with its own memory. Host visible buffers stay mapped
 * for their whole life.
 */
type VulkanBuffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	Usage  vk.BufferUsageFlagBits
	mapped unsafe.Pointer
	// Only meaningful for index buffers.
	format metadata.IndexFormat
}

func NewVulkanBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlagBits, properties vk.MemoryPropertyFlagBits) (*VulkanBuffer, error) {
	if size == 0 {
		return nil, core.InvalidArgumentf("cannot create an empty buffer")
	}
	device := context.Device.LogicalDevice
	out := &VulkanBuffer{Size: size, Usage: usage}

	var buffer vk.Buffer
	res := vk.CreateBuffer(device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Usage:       vk.BufferUsageFlags(usage),
		Size:        vk.DeviceSize(size),
		SharingMode: vk.SharingModeExclusive,
	}, context.Allocator, &buffer)
	if res != vk.Success {
		return nil, resultError("vkCreateBuffer", res)
	}
	out.Handle = buffer

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, buffer, &memReqs)
	memReqs.Deref()

	memoryType := context.FindMemoryIndex(memReqs.MemoryTypeBits, properties)
	if memoryType < 0 {
		out.Destroy(context)
		return nil, errors.Mark(errors.Newf("no memory type with properties %#x for a %d byte buffer", properties, size), core.ErrUnsupported)
	}

	var memory vk.DeviceMemory
	res = vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: uint32(memoryType),
	}, context.Allocator, &memory)
	if res != vk.Success {
		out.Destroy(context)
		return nil, resultError("vkAllocateMemory", res)
	}
	out.Memory = memory

	if res := vk.BindBufferMemory(device, buffer, memory, 0); res != vk.Success {
		out.Destroy(context)
		return nil, resultError("vkBindBufferMemory", res)
	}

	if properties&vk.MemoryPropertyHostVisibleBit != 0 {
		var ptr unsafe.Pointer
		if res := vk.MapMemory(device, memory, 0, vk.DeviceSize(size), 0, &ptr); res != vk.Success {
			out.Destroy(context)
			return nil, resultError("vkMapMemory", res)
		}
		out.mapped = ptr
	}
	return out, nil
}

func (b *VulkanBuffer) Destroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if b.mapped != nil {
		vk.UnmapMemory(device, b.Memory)
		b.mapped = nil
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(device, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(device, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
}

// Write copies data into a mapped buffer at offset.
func (b *VulkanBuffer) Write(offset uint64, data []byte) int {
	if b.mapped == nil || offset >= b.Size {
		return 0
	}
	dst := unsafe.Slice((*byte)(b.mapped), b.Size)
	return copy(dst[offset:], data)
}

// Bytes returns a copy of a mapped buffer's first n bytes.
func (b *VulkanBuffer) Bytes(n uint64) []byte {
	if b.mapped == nil {
		return nil
	}
	if n > b.Size {
		n = b.Size
	}
	return append([]byte(nil), unsafe.Slice((*byte)(b.mapped), n)...)
}

func (r *VulkanRenderer) CreateVertexBuffer(data []byte, flags metadata.ResourceFlags) metadata.ResourceHandle {
	return r.createBuffer(kindVertex, r.vertexBuffers, data, metadata.IndexFormatUInt16, flags)
}

func (r *VulkanRenderer) UpdateVertexBuffer(handle metadata.ResourceHandle, data []byte, ranges ...metadata.BufferUpdateRange) bool {
	return r.updateBuffer(kindVertex, r.vertexBuffers, handle, data, ranges)
}

func (r *VulkanRenderer) ReadVertexBuffer(handle metadata.ResourceHandle, callback metadata.ReadbackCallback) bool {
	return r.queueRead(kindVertex, handle, callback)
}

func (r *VulkanRenderer) DestroyVertexBuffer(handle metadata.ResourceHandle) {
	r.destroyBuffer(kindVertex, r.vertexBuffers, handle)
}

func (r *VulkanRenderer) CreateIndexBuffer(data []byte, format metadata.IndexFormat, flags metadata.ResourceFlags) metadata.ResourceHandle {
	if format == metadata.IndexFormatUInt32 {
		flags |= metadata.ResourceFlagIndex32
	}
	if uint32(len(data))%format.Size() != 0 {
		core.LogError("index data of %d bytes is not a multiple of the index size %d", len(data), format.Size())
		return metadata.InvalidHandle
	}
	return r.createBuffer(kindIndex, r.indexBuffers, data, format, flags)
}

func (r *VulkanRenderer) UpdateIndexBuffer(handle metadata.ResourceHandle, data []byte, ranges ...metadata.BufferUpdateRange) bool {
	return r.updateBuffer(kindIndex, r.indexBuffers, handle, data, ranges)
}

func (r *VulkanRenderer) ReadIndexBuffer(handle metadata.ResourceHandle, callback metadata.ReadbackCallback) bool {
	return r.queueRead(kindIndex, handle, callback)
}

func (r *VulkanRenderer) DestroyIndexBuffer(handle metadata.ResourceHandle) {
	r.destroyBuffer(kindIndex, r.indexBuffers, handle)
}

func bufferUsage(kind resourceKind) vk.BufferUsageFlagBits {
	usage := vk.BufferUsageTransferDstBit | vk.BufferUsageTransferSrcBit
	if kind == kindIndex {
		return usage | vk.BufferUsageIndexBufferBit
	}
	return usage | vk.BufferUsageVertexBufferBit
}

func (r *VulkanRenderer) createBuffer(
	kind resourceKind,
	table *metadata.ResourceTable[*VulkanBuffer],
	data []byte,
	format metadata.IndexFormat,
	flags metadata.ResourceFlags,
) metadata.ResourceHandle {
	if !r.initialized {
		core.LogError("cannot create %s buffer: %s", kind, core.ErrBackendNotInitialized)
		return metadata.InvalidHandle
	}
	if len(data) == 0 {
		core.LogError("cannot create an empty %s buffer", kind)
		return metadata.InvalidHandle
	}
	h := table.Reserve(flags)
	if !h.Valid {
		core.LogError("%s buffer table exhausted (%d slots)", kind, table.Capacity())
		return metadata.InvalidHandle
	}
	buffer, err := NewVulkanBuffer(r.context, uint64(len(data)), bufferUsage(kind), vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		table.Release(h)
		core.LogError("creating %s buffer: %s", kind, err)
		return metadata.InvalidHandle
	}
	buffer.format = format
	slot, _ := table.TryGet(h)
	slot.Native = buffer
	slot.Length = uint64(len(data))

	if !r.upload(pendingCopy{kind: kind, handle: h, created: true}, data) {
		table.Release(h)
		buffer.Destroy(r.context)
		return metadata.InvalidHandle
	}
	return h
}

func (r *VulkanRenderer) updateBuffer(
	kind resourceKind,
	table *metadata.ResourceTable[*VulkanBuffer],
	h metadata.ResourceHandle,
	data []byte,
	ranges []metadata.BufferUpdateRange,
) bool {
	if !r.initialized {
		return false
	}
	slot, ok := table.TryGet(h)
	if !ok {
		core.LogError("update of unknown %s buffer %d", kind, h.Index)
		return false
	}
	if uint64(len(data)) != slot.Length {
		core.LogWarn("%s buffer %d holds %d bytes, update has %d", kind, h.Index, slot.Length, len(data))
		return false
	}
	for _, rg := range ranges {
		if rg.Length == 0 || rg.Offset+rg.Length > slot.Length {
			core.LogError("%s buffer %d update range [%d,+%d) out of bounds", kind, h.Index, rg.Offset, rg.Length)
			return false
		}
	}
	c := pendingCopy{kind: kind, handle: h}
	if len(ranges) > 0 {
		c.ranges = append([]metadata.BufferUpdateRange(nil), ranges...)
	}
	return r.upload(c, data)
}

func (r *VulkanRenderer) destroyBuffer(kind resourceKind, table *metadata.ResourceTable[*VulkanBuffer], h metadata.ResourceHandle) {
	if !r.initialized {
		return
	}
	slot, ok := table.Release(h)
	if !ok {
		return
	}
	r.dropPending(kind, h)
	// Submitted work may still reference the buffer.
	r.waitQueue()
	slot.Native.Destroy(r.context)
	r.released(kind, h)
}

// recordBufferCopy records the staging to device copy of c.
func recordBufferCopy(cmd vk.CommandBuffer, staging, dst *VulkanBuffer, ranges []metadata.BufferUpdateRange) uint64 {
	var regions []vk.BufferCopy
	var copied uint64
	if len(ranges) == 0 {
		regions = []vk.BufferCopy{{Size: vk.DeviceSize(dst.Size)}}
		copied = dst.Size
	} else {
		regions = make([]vk.BufferCopy, len(ranges))
		for i, rg := range ranges {
			regions[i] = vk.BufferCopy{
				SrcOffset: vk.DeviceSize(rg.Offset),
				DstOffset: vk.DeviceSize(rg.Offset),
				Size:      vk.DeviceSize(rg.Length),
			}
			copied += rg.Length
		}
	}
	vk.CmdCopyBuffer(cmd, staging.Handle, dst.Handle, uint32(len(regions)), regions)
	return copied
}
