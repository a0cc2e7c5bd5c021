package systems

import (
	"context"
	"path"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/assets/loaders"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/resources"
)

const (
	DefaultTextureName = "default"
	defaultTextureSize = 256
	defaultTextureTile = 32
)

type TextureSystemConfig struct {
	/** @brief The maximum number of textures that can be loaded at once. */
	MaxTextureCount uint32
}

// Texture is a registered texture. Handle stays invalid until the pixels are uploaded.
type Texture struct {
	Name       string
	Handle     metadata.ResourceHandle
	Width      uint32
	Height     uint32
	HasAlpha   bool
	Generation uint32
}

type textureReference struct {
	texture        *Texture
	referenceCount uint64
	autoRelease    bool
}

type decodedTexture struct {
	name  string
	image *resources.ImageData
}

/**
 * @brief Reference counted textures keyed by asset name. Image decoding may
 * run on the job system; uploads always happen on the thread calling Update.
 */
type TextureSystem struct {
	config   TextureSystemConfig
	renderer *renderer.Renderer
	assets   *assets.AssetManager
	jobs     *JobSystem

	defaultTexture *Texture
	registered     map[string]*textureReference

	pendingMu sync.Mutex
	pending   []decodedTexture
}

func NewTextureSystem(config TextureSystemConfig, r *renderer.Renderer, am *assets.AssetManager, js *JobSystem) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		return nil, core.InvalidArgumentf("config.MaxTextureCount must be > 0")
	}
	return &TextureSystem{
		config:     config,
		renderer:   r,
		assets:     am,
		jobs:       js,
		registered: make(map[string]*textureReference),
	}, nil
}

// Initialize uploads the default checkerboard.
func (ts *TextureSystem) Initialize() error {
	img := CheckerboardImage(defaultTextureSize, defaultTextureTile)
	t := &Texture{Name: DefaultTextureName}
	if err := ts.upload(t, img); err != nil {
		return errors.Wrap(err, "creating default texture")
	}
	ts.defaultTexture = t
	return nil
}

func (ts *TextureSystem) Default() *Texture {
	return ts.defaultTexture
}

/**
 * @brief Returns the texture for name, loading and uploading it on the first
 * acquire. autoRelease is fixed by the first acquire; auto released textures
 * are destroyed when their reference count drops to zero.
 */
func (ts *TextureSystem) Acquire(name string, autoRelease bool) (*Texture, error) {
	if name == DefaultTextureName {
		core.LogWarn("Acquire called for the default texture; use Default instead")
		return ts.defaultTexture, nil
	}
	if ref, ok := ts.registered[name]; ok {
		ref.referenceCount++
		return ref.texture, nil
	}
	if uint32(len(ts.registered)) >= ts.config.MaxTextureCount {
		return nil, errors.Wrapf(core.ErrResourceExhausted, "texture system cannot hold more than %d textures", ts.config.MaxTextureCount)
	}

	img, err := ts.decode(name)
	if err != nil {
		return nil, err
	}
	t := &Texture{Name: name}
	if err := ts.upload(t, img); err != nil {
		return nil, err
	}
	ts.registered[name] = &textureReference{texture: t, referenceCount: 1, autoRelease: autoRelease}
	return t, nil
}

/**
 * @brief Like Acquire, but decoding runs on the job system. The returned
 * texture has an invalid handle until Update uploads it; draw it with the
 * default texture meanwhile.
 */
func (ts *TextureSystem) AcquireAsync(name string, autoRelease bool) (*Texture, error) {
	if ref, ok := ts.registered[name]; ok {
		ref.referenceCount++
		return ref.texture, nil
	}
	if ts.jobs == nil {
		return ts.Acquire(name, autoRelease)
	}
	if uint32(len(ts.registered)) >= ts.config.MaxTextureCount {
		return nil, errors.Wrapf(core.ErrResourceExhausted, "texture system cannot hold more than %d textures", ts.config.MaxTextureCount)
	}

	t := &Texture{Name: name, Handle: metadata.InvalidHandle}
	ts.registered[name] = &textureReference{texture: t, referenceCount: 1, autoRelease: autoRelease}
	err := ts.jobs.Submit(JobTask{
		Name: "texture:" + name,
		Run: func(ctx context.Context) error {
			img, err := ts.decode(name)
			if err != nil {
				return err
			}
			ts.pendingMu.Lock()
			ts.pending = append(ts.pending, decodedTexture{name: name, image: img})
			ts.pendingMu.Unlock()
			return nil
		},
		OnFailure: func(err error) {
			core.LogError("Failed to load texture '%s': %s", name, err)
		},
	})
	if err != nil {
		delete(ts.registered, name)
		return nil, err
	}
	return t, nil
}

// Update uploads textures decoded by AcquireAsync and returns how many were uploaded.
func (ts *TextureSystem) Update() int {
	ts.pendingMu.Lock()
	pending := ts.pending
	ts.pending = nil
	ts.pendingMu.Unlock()

	uploaded := 0
	for _, p := range pending {
		ref, ok := ts.registered[p.name]
		if !ok {
			// Released before the decode finished.
			continue
		}
		if err := ts.upload(ref.texture, p.image); err != nil {
			core.LogError("Failed to upload texture '%s': %s", p.name, err)
			continue
		}
		uploaded++
	}
	return uploaded
}

// Release drops one reference to name.
func (ts *TextureSystem) Release(name string) {
	ref, ok := ts.registered[name]
	if !ok {
		core.LogWarn("Tried to release non-existent texture: '%s'", name)
		return
	}
	if ref.referenceCount == 0 {
		core.LogWarn("Tried to release texture '%s' with no references", name)
		return
	}
	ref.referenceCount--
	if ref.referenceCount == 0 && ref.autoRelease {
		ts.destroy(ref.texture)
		delete(ts.registered, name)
	}
}

// Reload decodes name again and replaces the pixels of an acquired texture.
func (ts *TextureSystem) Reload(name string) error {
	ref, ok := ts.registered[name]
	if !ok {
		return core.InvalidOperationf("texture %s is not acquired", name)
	}
	img, err := ts.decode(name)
	if err != nil {
		return err
	}
	return ts.upload(ref.texture, img)
}

// Resolve returns the texture handle for a material's diffuse map, or the
// default texture when the map is empty or cannot be loaded.
func (ts *TextureSystem) Resolve(mapName string) metadata.ResourceHandle {
	if mapName == "" {
		return ts.defaultTexture.Handle
	}
	t, err := ts.Acquire(mapName, true)
	if err != nil {
		core.LogWarn("using default texture for '%s': %s", mapName, err)
		return ts.defaultTexture.Handle
	}
	return t.Handle
}

func (ts *TextureSystem) Len() int {
	return len(ts.registered)
}

func (ts *TextureSystem) Shutdown() error {
	for name, ref := range ts.registered {
		ts.destroy(ref.texture)
		delete(ts.registered, name)
	}
	if ts.defaultTexture != nil {
		ts.destroy(ts.defaultTexture)
		ts.defaultTexture = nil
	}
	return nil
}

// decode finds name in the asset index, trying textures/<name>.png and .jpg
// when name has no extension.
func (ts *TextureSystem) decode(name string) (*resources.ImageData, error) {
	if ts.assets == nil {
		return nil, core.InvalidOperationf("texture %s: no asset manager", name)
	}
	candidates := []string{name}
	if path.Ext(name) == "" {
		candidates = append(candidates, "textures/"+name+".png", "textures/"+name+".jpg")
	}
	for _, c := range candidates {
		if _, ok := ts.assets.Lookup(c); !ok {
			continue
		}
		res, err := ts.assets.LoadAsset(c, &loaders.TextureParams{FlipY: true})
		if err != nil {
			return nil, err
		}
		img, ok := res.Data.(*resources.ImageData)
		if !ok {
			return nil, core.InvalidArgumentf("asset %s is %s, not an image", c, res.Type)
		}
		return img, nil
	}
	return nil, errors.Wrapf(assets.ErrAssetNotFound, "texture %s", name)
}

func (ts *TextureSystem) upload(t *Texture, img *resources.ImageData) error {
	if ts.renderer == nil {
		return errors.Wrap(core.ErrBackendNotInitialized, "uploading texture")
	}
	backend := ts.renderer.Backend()
	desc := metadata.TextureDescriptor{
		Name:   t.Name,
		Width:  img.Width,
		Height: img.Height,
		Format: metadata.TextureFormatRGBA8,
	}
	if t.Handle.Valid && t.Width == img.Width && t.Height == img.Height {
		if !backend.UpdateTexture(t.Handle, metadata.TextureRegion{}, img.Pixels) {
			return errors.Mark(errors.Newf("updating texture %s", t.Name), core.ErrUploadFailed)
		}
	} else {
		h := backend.CreateTexture(desc, img.Pixels)
		if !h.Valid {
			return errors.Mark(errors.Newf("creating texture %s", t.Name), core.ErrUploadFailed)
		}
		if t.Handle.Valid {
			backend.DestroyTexture(t.Handle)
		}
		t.Handle = h
	}
	t.Width, t.Height = img.Width, img.Height
	t.HasAlpha = hasTransparency(img.Pixels)
	t.Generation++
	core.LogDebug("Successfully loaded texture '%s'.", t.Name)
	return nil
}

func (ts *TextureSystem) destroy(t *Texture) {
	if t.Handle.Valid && ts.renderer != nil {
		ts.renderer.Backend().DestroyTexture(t.Handle)
	}
	t.Handle = metadata.InvalidHandle
}

func hasTransparency(rgba []byte) bool {
	for i := 3; i < len(rgba); i += 4 {
		if rgba[i] < 255 {
			return true
		}
	}
	return false
}

// CheckerboardImage builds a white and blue checkerboard of size x size pixels.
func CheckerboardImage(size, tile uint32) *resources.ImageData {
	pixels := make([]byte, size*size*4)
	for row := uint32(0); row < size; row++ {
		for col := uint32(0); col < size; col++ {
			i := (row*size + col) * 4
			pixels[i+2] = 255
			pixels[i+3] = 255
			if (row/tile+col/tile)%2 == 0 {
				pixels[i] = 255
				pixels[i+1] = 255
			}
		}
	}
	return &resources.ImageData{Width: size, Height: size, Pixels: pixels}
}
