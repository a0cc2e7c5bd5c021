package platform

import (
	"runtime"
	"sync"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/lumen/engine/core"
)

func init() {
	// GLFW must be driven from the main OS thread
	runtime.LockOSThread()
}

/**
 * @brief The windowing layer, reduced to what an offscreen renderer needs:
 * GLFW initialization, the Vulkan loader entry point and a monotonic clock.
 * No window is ever created.
 */
type Platform struct {
	mu      sync.Mutex
	started bool
	start   float64
}

var shared = &Platform{}

// Shared returns the process-wide platform. GLFW can only be initialized once.
func Shared() *Platform {
	return shared
}

// Startup initializes GLFW. Calling it again is a no-op.
func (p *Platform) Startup() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "initializing glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.Mark(errors.New("no Vulkan loader found"), core.ErrUnsupported)
	}
	p.start = glfw.GetTime()
	p.started = true
	core.LogDebug("platform started, glfw %s", glfw.GetVersionString())
	return nil
}

// VulkanProcAddr returns vkGetInstanceProcAddr as resolved by GLFW.
func (p *Platform) VulkanProcAddr() (unsafe.Pointer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil, core.InvalidOperationf("platform not started")
	}
	addr := glfw.GetVulkanGetInstanceProcAddress()
	if addr == nil {
		return nil, errors.Mark(errors.New("vkGetInstanceProcAddr is nil"), core.ErrUnsupported)
	}
	return addr, nil
}

// Time returns seconds since Startup.
func (p *Platform) Time() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return 0
	}
	return glfw.GetTime() - p.start
}

func (p *Platform) Shutdown() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return nil
	}
	glfw.Terminate()
	p.started = false
	return nil
}
