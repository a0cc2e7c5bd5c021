package assets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"

	"github.com/spaghettifunk/lumen/engine/assets/loaders"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/resources"
)

var ErrAssetNotFound = errors.New("asset not found")

type AssetInfo struct {
	// Name is the path relative to the asset root, with forward slashes.
	Name       string
	Path       string
	Type       resources.ResourceType
	LastLoaded time.Time
}

/**
 * @brief Indexes the files under the asset root and loads them through the
 * loader registered for their type. With watching enabled the index follows
 * the disk and an AssetChangedEvent is fired for every change.
 */
type AssetManager struct {
	config core.AssetsConfig
	events *core.EventSystem

	assets  map[string]AssetInfo
	loaders map[resources.ResourceType]Loader
	mutex   sync.RWMutex

	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

func NewAssetManager(cfg core.AssetsConfig, events *core.EventSystem) *AssetManager {
	return &AssetManager{
		config:  cfg,
		events:  events,
		assets:  make(map[string]AssetInfo),
		loaders: make(map[resources.ResourceType]Loader),
		done:    make(chan struct{}),
	}
}

func (am *AssetManager) Initialize() error {
	root := am.config.Root
	s, err := os.Stat(root)
	if err != nil {
		return errors.Wrapf(err, "asset root %s", root)
	}
	if !s.IsDir() {
		return core.InvalidArgumentf("asset root %s is not a directory", root)
	}

	am.RegisterLoader(resources.ResourceTypeText, &loaders.TextLoader{})
	am.RegisterLoader(resources.ResourceTypeBinary, &loaders.BinaryLoader{})
	am.RegisterLoader(resources.ResourceTypeImage, &loaders.TextureLoader{})
	am.RegisterLoader(resources.ResourceTypeMesh, &loaders.ModelLoader{})
	am.RegisterLoader(resources.ResourceTypeMaterial, &loaders.MaterialLoader{})

	if am.config.Watch {
		am.watcher, err = fsnotify.NewWatcher()
		if err != nil {
			return errors.Wrap(err, "creating asset watcher")
		}
		am.wg.Add(1)
		go am.watch()
	}
	if err := am.scan(root); err != nil {
		return err
	}
	core.LogInfo("asset manager indexed %d assets under %s", am.Len(), root)
	return nil
}

// RegisterLoader replaces the loader used for t.
func (am *AssetManager) RegisterLoader(t resources.ResourceType, loader Loader) {
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.loaders[t] = loader
}

// LoadAsset loads the asset at name, relative to the asset root.
func (am *AssetManager) LoadAsset(name string, params interface{}) (*resources.Resource, error) {
	name = filepath.ToSlash(name)

	am.mutex.Lock()
	asset, exists := am.assets[name]
	if exists {
		asset.LastLoaded = time.Now()
		am.assets[name] = asset
	}
	loader := am.loaders[asset.Type]
	am.mutex.Unlock()

	if !exists {
		return nil, errors.Wrapf(ErrAssetNotFound, "%s", name)
	}
	if loader == nil {
		return nil, errors.Wrapf(core.ErrUnsupported, "no loader for %s asset %s", asset.Type, name)
	}
	res, err := loader.Load(asset.Path, params)
	if err != nil {
		return nil, err
	}
	res.Name = name
	return res, nil
}

func (am *AssetManager) UnloadAsset(res *resources.Resource) error {
	if res == nil {
		return nil
	}
	am.mutex.RLock()
	loader := am.loaders[res.Type]
	am.mutex.RUnlock()
	if loader == nil {
		return errors.Wrapf(core.ErrUnsupported, "no loader for %s asset %s", res.Type, res.Name)
	}
	return loader.Unload(res)
}

func (am *AssetManager) Lookup(name string) (AssetInfo, bool) {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	a, ok := am.assets[filepath.ToSlash(name)]
	return a, ok
}

// Assets returns the indexed asset names in sorted order.
func (am *AssetManager) Assets() []string {
	am.mutex.RLock()
	names := make([]string, 0, len(am.assets))
	for name := range am.assets {
		names = append(names, name)
	}
	am.mutex.RUnlock()
	sort.Strings(names)
	return names
}

func (am *AssetManager) Len() int {
	am.mutex.RLock()
	defer am.mutex.RUnlock()
	return len(am.assets)
}

func (am *AssetManager) Shutdown() error {
	if am.watcher == nil {
		return nil
	}
	close(am.done)
	am.wg.Wait()
	err := am.watcher.Close()
	am.watcher = nil
	return err
}

func (am *AssetManager) watch() {
	defer am.wg.Done()
	for {
		select {
		case e, ok := <-am.watcher.Events:
			if !ok {
				return
			}
			am.handleEvent(e)
		case err, ok := <-am.watcher.Errors:
			if !ok {
				return
			}
			core.LogError("asset watcher: %s", err)
		case <-am.done:
			return
		}
	}
}

func (am *AssetManager) handleEvent(e fsnotify.Event) {
	switch {
	case e.Has(fsnotify.Create):
		if s, err := os.Stat(e.Name); err == nil && s.IsDir() {
			if err := am.scan(e.Name); err != nil {
				core.LogWarn("watching %s: %s", e.Name, err)
			}
			return
		}
		if am.index(e.Name) {
			am.fire(e.Name, core.AssetCreated)
		}
	case e.Has(fsnotify.Write):
		if am.index(e.Name) {
			am.fire(e.Name, core.AssetWritten)
		}
	case e.Has(fsnotify.Remove), e.Has(fsnotify.Rename):
		// A removed directory may still be registered with the watcher.
		_ = am.watcher.Remove(e.Name)
		if am.remove(e.Name) {
			am.fire(e.Name, core.AssetRemoved)
		}
	}
}

func (am *AssetManager) fire(path string, op core.AssetChangedOp) {
	core.LogDebug("asset %s changed (%d)", path, op)
	if am.events != nil {
		am.events.Fire(am, core.NewEvent(core.AssetChangedEvent{Path: am.name(path), Op: op}))
	}
}

// scan indexes every file under dir and, when watching, registers its directories.
func (am *AssetManager) scan(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if am.watcher != nil {
				return errors.Wrapf(am.watcher.Add(path), "watching %s", path)
			}
			return nil
		}
		am.index(path)
		return nil
	})
}

func (am *AssetManager) name(path string) string {
	rel, err := filepath.Rel(am.config.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// index records path and reports whether it is a known asset type.
func (am *AssetManager) index(path string) bool {
	assetType := DetermineAssetType(path)
	if assetType == resources.ResourceTypeNone {
		return false
	}
	name := am.name(path)
	am.mutex.Lock()
	defer am.mutex.Unlock()
	am.assets[name] = AssetInfo{
		Name: name,
		Path: path,
		Type: assetType,
	}
	return true
}

func (am *AssetManager) remove(path string) bool {
	name := am.name(path)
	am.mutex.Lock()
	defer am.mutex.Unlock()
	_, ok := am.assets[name]
	delete(am.assets, name)
	return ok
}

func DetermineAssetType(path string) resources.ResourceType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp":
		return resources.ResourceTypeImage
	case ".obj":
		return resources.ResourceTypeMesh
	case ".kmt":
		return resources.ResourceTypeMaterial
	case ".txt", ".toml", ".yaml", ".yml", ".json", ".mtl", ".glsl", ".vert", ".frag":
		return resources.ResourceTypeText
	case ".bin", ".spv", ".ksm":
		return resources.ResourceTypeBinary
	default:
		return resources.ResourceTypeNone
	}
}
