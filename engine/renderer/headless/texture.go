package headless

import (
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// write copies a tightly packed region of texels into the texture.
func (t *texture) write(region metadata.TextureRegion, src []byte) int {
	if region.IsZero() {
		return copy(t.pixels, src)
	}
	bpp := t.desc.Format.BytesPerPixel()
	rowBytes := region.Width * bpp
	copied := 0
	for row := uint32(0); row < region.Height; row++ {
		dst := ((region.Y+row)*t.desc.Width + region.X) * bpp
		from := row * rowBytes
		copied += copy(t.pixels[dst:dst+rowBytes], src[from:from+rowBytes])
	}
	return copied
}

func (b *Backend) CreateTexture(desc metadata.TextureDescriptor, pixels []byte) metadata.ResourceHandle {
	if !b.initialized {
		core.LogError("cannot create texture %q: %s", desc.Name, core.ErrBackendNotInitialized)
		return metadata.InvalidHandle
	}
	if !b.SupportsTextureFormat(desc.Format) {
		core.LogError("texture %q: unsupported format %d", desc.Name, desc.Format)
		return metadata.InvalidHandle
	}
	if desc.Width == 0 || desc.Height == 0 || desc.Width > maxTextureDimension || desc.Height > maxTextureDimension {
		core.LogError("texture %q: invalid size %dx%d", desc.Name, desc.Width, desc.Height)
		return metadata.InvalidHandle
	}
	size := desc.ByteSize()
	if pixels != nil && uint64(len(pixels)) != size {
		core.LogError("texture %q: expected %d bytes of pixels, got %d", desc.Name, size, len(pixels))
		return metadata.InvalidHandle
	}

	h := b.textures.Reserve(desc.Flags)
	if !h.Valid {
		core.LogError("texture table exhausted (%d slots)", b.textures.Capacity())
		return metadata.InvalidHandle
	}
	slot, _ := b.textures.TryGet(h)
	slot.Native = &texture{desc: desc, pixels: make([]byte, size)}
	slot.Length = size

	if pixels != nil && !b.upload(pendingCopy{kind: kindTexture, handle: h}, pixels) {
		b.textures.Release(h)
		return metadata.InvalidHandle
	}
	return h
}

func (b *Backend) UpdateTexture(handle metadata.ResourceHandle, region metadata.TextureRegion, pixels []byte) bool {
	if !b.initialized {
		return false
	}
	slot, ok := b.textures.TryGet(handle)
	if !ok {
		core.LogError("update of unknown texture %d", handle.Index)
		return false
	}
	desc := slot.Native.desc
	if region.IsZero() {
		region = metadata.TextureRegion{Width: desc.Width, Height: desc.Height}
	}
	if region.X+region.Width > desc.Width || region.Y+region.Height > desc.Height {
		core.LogError("texture %q: region %+v outside %dx%d", desc.Name, region, desc.Width, desc.Height)
		return false
	}
	want := uint64(region.Width) * uint64(region.Height) * uint64(desc.Format.BytesPerPixel())
	if uint64(len(pixels)) != want {
		core.LogError("texture %q: region needs %d bytes, got %d", desc.Name, want, len(pixels))
		return false
	}
	return b.upload(pendingCopy{kind: kindTexture, handle: handle, region: region}, pixels)
}

func (b *Backend) ReadTexture(handle metadata.ResourceHandle, callback metadata.ReadbackCallback) bool {
	return b.queueRead(kindTexture, handle, callback)
}

func (b *Backend) DestroyTexture(handle metadata.ResourceHandle) {
	if !b.initialized {
		return
	}
	if _, ok := b.textures.Release(handle); ok {
		b.dropPending(kindTexture, handle)
	}
}
