/*
Testbed application driving the engine: it fills a scene with generated
meshes and renders it with the backend named in the config file.
*/
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/testbed"
)

func main() {
	configPath := flag.String("config", core.DefaultConfigFile, "engine config file")
	frames := flag.Uint64("frames", 0, "stop after this many frames (0 runs until interrupted)")
	flag.Parse()

	tb := testbed.NewTestGame(*configPath, *frames)

	e, err := engine.New(tb.Game)
	if err != nil {
		core.LogFatal("booting engine: %s", err)
	}
	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("initializing engine: %s", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		e.Quit()
	}()

	runErr := e.Run()
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogFatal("run: %s", runErr)
	}
}
