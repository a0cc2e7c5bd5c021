package core

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"
)

const DefaultConfigFile = "lumen.toml"

// Duration reads TOML strings such as "300s" or "5m".
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return nil
	}
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Wrapf(err, "invalid duration %q", string(text))
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

type LogConfig struct {
	Level string `toml:"level"`
}

type RendererConfig struct {
	// Backend is "headless" or "vulkan".
	Backend          string `toml:"backend"`
	AppName          string `toml:"app_name"`
	MaxVertexBuffers uint32 `toml:"max_vertex_buffers"`
	MaxIndexBuffers  uint32 `toml:"max_index_buffers"`
	MaxTextures      uint32 `toml:"max_textures"`
	// Number of idle staging buffers kept per (direction, size) key.
	StagingPoolSize uint32 `toml:"staging_pool_size"`
	Validation      bool   `toml:"validation"`
	// Size of the offscreen target draws land in when a pass names none.
	TargetWidth  uint32 `toml:"target_width"`
	TargetHeight uint32 `toml:"target_height"`
	// SPIR-V shader paths, relative to the asset root. Only the vulkan backend reads them.
	VertexShader   string `toml:"vertex_shader"`
	FragmentShader string `toml:"fragment_shader"`
}

type AssetsConfig struct {
	Root  string `toml:"root"`
	Watch bool   `toml:"watch"`
}

type BakeConfig struct {
	Workers     int      `toml:"workers"`
	ToolTimeout Duration `toml:"tool_timeout"`
}

type EngineConfig struct {
	Log      LogConfig      `toml:"log"`
	Renderer RendererConfig `toml:"renderer"`
	Assets   AssetsConfig   `toml:"assets"`
	Bake     BakeConfig     `toml:"bake"`
}

func DefaultConfig() *EngineConfig {
	return &EngineConfig{
		Log: LogConfig{Level: "info"},
		Renderer: RendererConfig{
			Backend:          "headless",
			AppName:          "Lumen",
			MaxVertexBuffers: 4096,
			MaxIndexBuffers:  4096,
			MaxTextures:      1024,
			StagingPoolSize:  4,
			TargetWidth:      1280,
			TargetHeight:     720,
		},
		Assets: AssetsConfig{Root: "assets"},
		Bake: BakeConfig{
			Workers:     4,
			ToolTimeout: Duration(300 * time.Second),
		},
	}
}

// LoadConfig reads path on top of the defaults. A missing file yields the defaults.
func LoadConfig(path string) (*EngineConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			LogDebug("config file %s not found, using defaults", path)
			return cfg, cfg.finalize()
		}
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, cfg.finalize()
}

func (c *EngineConfig) finalize() error {
	root, err := homedir.Expand(c.Assets.Root)
	if err != nil {
		return errors.Wrapf(err, "expanding asset root %q", c.Assets.Root)
	}
	c.Assets.Root = root
	for _, shader := range []*string{&c.Renderer.VertexShader, &c.Renderer.FragmentShader} {
		if *shader != "" && !filepath.IsAbs(*shader) {
			*shader = filepath.Join(root, *shader)
		}
	}
	return c.Validate()
}

func (c *EngineConfig) Validate() error {
	switch c.Renderer.Backend {
	case "headless", "vulkan":
	default:
		return InvalidArgumentf("unknown renderer backend %q", c.Renderer.Backend)
	}
	if c.Renderer.MaxVertexBuffers == 0 || c.Renderer.MaxIndexBuffers == 0 || c.Renderer.MaxTextures == 0 {
		return InvalidArgumentf("renderer resource capacities must be > 0")
	}
	if c.Bake.Workers < 1 {
		return InvalidArgumentf("bake.workers must be >= 1, got %d", c.Bake.Workers)
	}
	if c.Bake.ToolTimeout <= 0 {
		return InvalidArgumentf("bake.tool_timeout must be positive")
	}
	return nil
}

func (c *EngineConfig) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
