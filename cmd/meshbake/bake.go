package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/spaghettifunk/lumen/engine/assets/loaders"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/resources"
)

// AssetResult reports one baked asset. Error is set when the asset was skipped.
type AssetResult struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Source    string `yaml:"source"`
	Guid      string `yaml:"guid,omitempty"`
	Vertices  int    `yaml:"vertices,omitempty"`
	Indices   int    `yaml:"indices,omitempty"`
	Submeshes int    `yaml:"submeshes,omitempty"`
	Triangles int    `yaml:"triangles,omitempty"`
	Tangents  bool   `yaml:"tangents,omitempty"`
	Width     uint32 `yaml:"width,omitempty"`
	Height    uint32 `yaml:"height,omitempty"`
	// Bytes uploaded to prove the data.
	Bytes int    `yaml:"bytes,omitempty"`
	Error string `yaml:"error,omitempty"`
}

type Summary struct {
	Baked    int           `yaml:"baked"`
	Failed   int           `yaml:"failed"`
	Duration string        `yaml:"duration"`
	Assets   []AssetResult `yaml:"assets"`
}

/**
 * @brief Imports, completes and test-uploads the assets of a manifest.
 * Decoding runs on up to Workers goroutines; uploads are serialized because
 * the renderer belongs to one thread.
 */
type Baker struct {
	Workers     int
	ToolTimeout time.Duration
	// Progress output. Nil disables the bar.
	Progress io.Writer

	renderer *renderer.Renderer
	uploadMu sync.Mutex
}

func NewBaker(r *renderer.Renderer, workers int, toolTimeout time.Duration) *Baker {
	if workers < 1 {
		workers = 1
	}
	return &Baker{Workers: workers, ToolTimeout: toolTimeout, renderer: r}
}

// Bake processes every entry. Failed entries are recorded and skipped; the
// returned error is only set when ctx is cancelled.
func (b *Baker) Bake(ctx context.Context, m *Manifest) (*Summary, error) {
	start := time.Now()
	total := len(m.Meshes) + len(m.Textures)
	results := make([]AssetResult, total)

	var bar *progressbar.ProgressBar
	if b.Progress != nil {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(b.Progress),
			progressbar.OptionSetDescription("baking"),
			progressbar.OptionShowCount(),
		)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.Workers)
	for i, e := range m.Meshes {
		i, e := i, e
		g.Go(func() error {
			results[i] = b.bakeMesh(gctx, m, e)
			advance(bar)
			return gctx.Err()
		})
	}
	for i, e := range m.Textures {
		i, e := len(m.Meshes)+i, e
		g.Go(func() error {
			results[i] = b.bakeTexture(m, e)
			advance(bar)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "bake interrupted")
	}
	if bar != nil {
		_ = bar.Finish()
	}

	s := &Summary{Assets: results, Duration: time.Since(start).Round(time.Millisecond).String()}
	sort.SliceStable(s.Assets, func(i, j int) bool { return s.Assets[i].Name < s.Assets[j].Name })
	for _, r := range s.Assets {
		if r.Error != "" {
			s.Failed++
			core.LogWarn("skipped %s %s: %s", r.Kind, r.Name, r.Error)
			continue
		}
		s.Baked++
	}
	return s, nil
}

func advance(bar *progressbar.ProgressBar) {
	if bar != nil {
		_ = bar.Add(1)
	}
}

func (b *Baker) bakeMesh(ctx context.Context, m *Manifest, e MeshEntry) AssetResult {
	res := AssetResult{Name: e.Name, Kind: "mesh", Source: e.Source}
	if err := b.importMesh(ctx, m, e, &res); err != nil {
		res.Error = err.Error()
	}
	return res
}

func (b *Baker) importMesh(ctx context.Context, m *Manifest, e MeshEntry, res *AssetResult) error {
	source := m.path(e.Source)
	var objData []byte
	var err error
	if len(e.Tool) > 0 {
		objData, err = b.runTool(ctx, m.Root, e.Tool, source)
	} else {
		objData, err = os.ReadFile(source)
	}
	if err != nil {
		return err
	}

	var mtl io.Reader = strings.NewReader("")
	if data, err := os.ReadFile(strings.TrimSuffix(source, filepath.Ext(source)) + ".mtl"); err == nil {
		mtl = bytes.NewReader(data)
	}

	// Guids are stable across runs for the same source path.
	res.Guid = uuid.NewSHA1(uuid.NameSpaceURL, []byte(filepath.ToSlash(e.Source))).String()
	model, err := loaders.DecodeOBJ(bytes.NewReader(objData), mtl, res.Guid, loaders.ModelParams{
		Renderer: b.renderer,
		Flags:    resources.DefaultMeshFlags,
		FlipV:    !e.KeepV,
	})
	if err != nil {
		return err
	}
	mesh := model.Mesh
	defer func() {
		b.uploadMu.Lock()
		mesh.Destroy()
		b.uploadMu.Unlock()
	}()

	if e.Tangents && mesh.Has(resources.ChannelTexCoord0) && !mesh.Has(resources.ChannelTangent) {
		if err := mesh.RecalculateTangents(); err != nil {
			return errors.Wrap(err, "generating tangents")
		}
		res.Tangents = true
	}

	res.Vertices = mesh.VertexCount()
	res.Indices = mesh.IndexCount()
	res.Submeshes = len(mesh.Submeshes())
	for i := 0; i < res.Submeshes; i++ {
		n, err := mesh.SubmeshTriangleCount(i)
		if err != nil {
			return err
		}
		res.Triangles += n
	}
	if res.Submeshes == 0 {
		res.Triangles = int(mesh.Topology().PrimitiveCount(uint32(res.Indices)))
	}

	b.uploadMu.Lock()
	defer b.uploadMu.Unlock()
	if err := mesh.UploadMeshData(); err != nil {
		return err
	}
	layout, err := mesh.GetVertexLayout()
	if err != nil {
		return err
	}
	res.Bytes = res.Vertices*int(layout.Stride) + res.Indices*int(mesh.IndexFormat().Size())
	return nil
}

// runTool runs a converter and returns its stdout. It is killed after ToolTimeout.
func (b *Baker) runTool(ctx context.Context, dir string, tool []string, source string) ([]byte, error) {
	args := make([]string, len(tool))
	for i, a := range tool {
		args[i] = strings.ReplaceAll(a, "{source}", source)
	}
	toolCtx, cancel := context.WithTimeout(ctx, b.ToolTimeout)
	defer cancel()

	cmd := exec.CommandContext(toolCtx, args[0], args[1:]...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if toolCtx.Err() == context.DeadlineExceeded {
			return nil, errors.Newf("tool %s timed out after %s", args[0], b.ToolTimeout)
		}
		return nil, errors.Wrapf(err, "tool %s: %s", args[0], strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func (b *Baker) bakeTexture(m *Manifest, e TextureEntry) AssetResult {
	res := AssetResult{Name: e.Name, Kind: "texture", Source: e.Source}
	if err := b.importTexture(m, e, &res); err != nil {
		res.Error = err.Error()
	}
	return res
}

func (b *Baker) importTexture(m *Manifest, e TextureEntry, res *AssetResult) error {
	data, err := os.ReadFile(m.path(e.Source))
	if err != nil {
		return err
	}
	img, err := loaders.DecodeImage(data, e.FlipY)
	if err != nil {
		return err
	}
	res.Width, res.Height = img.Width, img.Height
	res.Guid = uuid.NewSHA1(uuid.NameSpaceURL, []byte(filepath.ToSlash(e.Source))).String()

	b.uploadMu.Lock()
	defer b.uploadMu.Unlock()
	backend := b.renderer.Backend()
	h := backend.CreateTexture(metadata.TextureDescriptor{
		Name:   e.Name,
		Width:  img.Width,
		Height: img.Height,
		Format: metadata.TextureFormatRGBA8,
	}, img.Pixels)
	if !h.Valid {
		return errors.Mark(errors.Newf("uploading %dx%d texture", img.Width, img.Height), core.ErrUploadFailed)
	}
	backend.DestroyTexture(h)
	res.Bytes = len(img.Pixels)
	return nil
}

// WriteSummary stores s as YAML at path.
func WriteSummary(path string, s *Summary) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encoding summary")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "writing summary %s", path)
}
