package metadata

/** @brief Pixel formats textures can be created with. */
type TextureFormat uint8

const (
	TextureFormatRGBA8 TextureFormat = iota
	TextureFormatBGRA8
	TextureFormatR8
	TextureFormatRG8
	TextureFormatRGBA16F
	TextureFormatRGBA32F
	TextureFormatDepth32F
)

// BytesPerPixel returns the texel size of the format.
func (f TextureFormat) BytesPerPixel() uint32 {
	switch f {
	case TextureFormatR8:
		return 1
	case TextureFormatRG8:
		return 2
	case TextureFormatRGBA16F:
		return 8
	case TextureFormatRGBA32F:
		return 16
	default:
		return 4
	}
}

/**
 * @brief Describes a texture to create.
 */
type TextureDescriptor struct {
	Name   string
	Width  uint32
	Height uint32
	Format TextureFormat
	Flags  ResourceFlags
}

func (d TextureDescriptor) ByteSize() uint64 {
	return uint64(d.Width) * uint64(d.Height) * uint64(d.Format.BytesPerPixel())
}

// TextureRegion is a rectangle of texels. The zero value means the whole texture.
type TextureRegion struct {
	X, Y          uint32
	Width, Height uint32
}

func (r TextureRegion) IsZero() bool {
	return r.Width == 0 || r.Height == 0
}
