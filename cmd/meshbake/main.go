// meshbake imports the OBJ meshes and textures named by a manifest, completes
// missing vertex data and uploads everything through the headless renderer to
// prove it is drawable. A YAML summary is written next to the manifest.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer"

	_ "github.com/spaghettifunk/lumen/engine/renderer/headless"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", core.DefaultConfigFile, "engine config file")
	manifestPath := flag.String("manifest", "bake.yaml", "bake manifest")
	workers := flag.Int("workers", 0, "parallel imports (0 uses bake.workers from the config)")
	quiet := flag.Bool("quiet", false, "hide the progress bar")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal("loading config: %s", err)
	}
	core.SetLogLevel(core.ParseLogLevel(cfg.Log.Level))

	manifest, err := LoadManifest(*manifestPath)
	if err != nil {
		core.LogFatal("%s", err)
	}

	// Bakes always prove data on the headless backend, whatever the config renders with.
	rendererConfig := cfg.Renderer
	rendererConfig.Backend = "headless"
	r, err := renderer.New(&rendererConfig, nil)
	if err != nil {
		core.LogFatal("creating renderer: %s", err)
	}
	defer func() {
		if err := r.Shutdown(); err != nil {
			core.LogError("renderer shutdown: %s", err)
		}
	}()

	n := cfg.Bake.Workers
	if *workers > 0 {
		n = *workers
	}
	baker := NewBaker(r, n, cfg.Bake.ToolTimeout.Duration())
	if !*quiet {
		baker.Progress = os.Stderr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	summary, err := baker.Bake(ctx, manifest)
	if err != nil {
		core.LogError("%s", err)
		return 1
	}

	out := manifest.Output
	if !filepath.IsAbs(out) {
		out = filepath.Join(manifest.Root, out)
	}
	if err := WriteSummary(out, summary); err != nil {
		core.LogError("%s", err)
		return 1
	}
	core.LogInfo("baked %d assets, %d failed, in %s; summary at %s", summary.Baked, summary.Failed, summary.Duration, out)
	if summary.Failed > 0 {
		return 2
	}
	return 0
}
