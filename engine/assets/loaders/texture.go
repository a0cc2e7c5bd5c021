package loaders

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/resources"
)

type TextureParams struct {
	// FlipY stores rows bottom-up.
	FlipY bool
}

// TextureLoader decodes png, jpeg, bmp, tiff and webp files into RGBA8 pixels.
type TextureLoader struct{}

func (tl *TextureLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading texture %s", path)
	}
	var p TextureParams
	if tp, ok := params.(*TextureParams); ok && tp != nil {
		p = *tp
	}
	img, err := DecodeImage(buf, p.FlipY)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding texture %s", path)
	}
	return &resources.Resource{
		Type:     resources.ResourceTypeImage,
		Name:     path,
		FullPath: path,
		DataSize: uint64(len(img.Pixels)),
		Data:     img,
	}, nil
}

func (tl *TextureLoader) Unload(res *resources.Resource) error {
	res.Data = nil
	return nil
}

/**
 * @brief Decodes an encoded image into tightly packed RGBA8. The container is
 * sniffed from the magic bytes, so misnamed files still load.
 */
func DecodeImage(buf []byte, flipY bool) (*resources.ImageData, error) {
	kind, err := filetype.Match(buf)
	if err != nil {
		return nil, errors.Wrap(err, "sniffing image type")
	}
	if !filetype.IsImage(buf) {
		return nil, errors.Mark(errors.Newf("not an image (detected %q)", kind.MIME.Value), core.ErrUnsupported)
	}
	src, format, err := image.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decoding %s", kind.Extension), core.ErrUnsupported)
	}

	b := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, b.Min, draw.Src)

	width, height := b.Dx(), b.Dy()
	pixels := rgba.Pix
	if flipY {
		row := width * 4
		flipped := make([]byte, len(pixels))
		for y := 0; y < height; y++ {
			copy(flipped[y*row:(y+1)*row], pixels[(height-1-y)*row:(height-y)*row])
		}
		pixels = flipped
	}
	core.LogDebug("decoded %s image %dx%d", format, width, height)
	return &resources.ImageData{
		Width:  uint32(width),
		Height: uint32(height),
		Pixels: pixels,
	}, nil
}
