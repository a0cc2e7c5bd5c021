package loaders

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/resources"
)

// MaterialLoader reads .kmt files: "key = value" lines, # comments.
type MaterialLoader struct{}

func (ml *MaterialLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening material %s", path)
	}
	defer file.Close()

	cfg, err := ParseMaterial(file)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing material %s", path)
	}
	return &resources.Resource{
		Type:     resources.ResourceTypeMaterial,
		Name:     cfg.Material.Name,
		FullPath: path,
		Data:     cfg,
	}, nil
}

func (ml *MaterialLoader) Unload(*resources.Resource) error {
	return nil
}

// ParseMaterial reads a material definition. Materials without a "guid" key
// get a random one.
func ParseMaterial(r io.Reader) (*resources.MaterialConfig, error) {
	scanner := bufio.NewScanner(r)
	cfg := &resources.MaterialConfig{
		Material: metadata.Material{
			DiffuseColour:  math.NewVec4One(),
			Cull:           metadata.FaceCullModeBack,
			DiffuseTexture: metadata.InvalidHandle,
		},
	}

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())

		// Skip comments and empty lines
		if strings.HasPrefix(text, "#") || text == "" {
			continue
		}

		// Split key-value pairs by the first "=" sign
		parts := strings.SplitN(text, "=", 2)
		if len(parts) != 2 {
			core.LogWarn("line %d: skipping invalid line: %s", line, text)
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		var err error
		switch key {
		case "guid":
			cfg.Material.Guid = value
		case "name":
			cfg.Material.Name = value
		case "diffuse_colour":
			cfg.Material.DiffuseColour, err = parseVec4(value)
		case "diffuse_map_name":
			cfg.DiffuseMapName = value
		case "lighting":
			cfg.Material.Lighting, err = parseEnum(value, map[string]metadata.LightingMode{
				"lit":   metadata.LightingModeLit,
				"unlit": metadata.LightingModeUnlit,
			})
		case "blend":
			cfg.Material.Blend, err = parseEnum(value, map[string]metadata.BlendMode{
				"opaque":   metadata.BlendModeOpaque,
				"alpha":    metadata.BlendModeAlpha,
				"additive": metadata.BlendModeAdditive,
			})
		case "cull":
			cfg.Material.Cull, err = parseEnum(value, map[string]metadata.FaceCullMode{
				"none":  metadata.FaceCullModeNone,
				"front": metadata.FaceCullModeFront,
				"back":  metadata.FaceCullModeBack,
				"both":  metadata.FaceCullModeFrontAndBack,
			})
		case "depth":
			cfg.Material.Depth, err = parseEnum(value, map[string]metadata.DepthMode{
				"test_write": metadata.DepthModeTestWrite,
				"test":       metadata.DepthModeTest,
				"off":        metadata.DepthModeOff,
			})
		default:
			core.LogWarn("Unknown key '%s' found in material. Skipping...", key)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d (%s)", line, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := validateMaterial(cfg); err != nil {
		return nil, err
	}
	if cfg.Material.Guid == "" {
		cfg.Material.Guid = metadata.GenerateGuid()
	}
	return cfg, nil
}

func parseVec4(value string) (math.Vec4, error) {
	fields := strings.Fields(value)
	if len(fields) != 4 {
		return math.Vec4{}, core.InvalidArgumentf("expected 4 values, got %d", len(fields))
	}
	var out [4]float32
	for i, v := range fields {
		f, err := strconv.ParseFloat(v, 32)
		if err != nil {
			return math.Vec4{}, core.InvalidArgumentf("invalid value %q", v)
		}
		out[i] = float32(f)
	}
	return math.NewVec4(out[0], out[1], out[2], out[3]), nil
}

func parseEnum[T any](value string, options map[string]T) (T, error) {
	if v, ok := options[strings.ToLower(value)]; ok {
		return v, nil
	}
	var zero T
	return zero, core.InvalidArgumentf("unknown value %q", value)
}

func validateMaterial(cfg *resources.MaterialConfig) error {
	if cfg.Material.Name == "" {
		return core.InvalidArgumentf("material name is required")
	}
	// DiffuseColour values must be within [0.0, 1.0]
	c := cfg.Material.DiffuseColour
	for _, v := range [4]float32{c.X, c.Y, c.Z, c.W} {
		if v < 0 || v > 1 {
			return core.InvalidArgumentf("diffuse_colour values must be between 0.0 and 1.0")
		}
	}
	return nil
}
