package engine

type ApplicationConfig struct {
	// The application name, passed to the renderer backend.
	Name string
	// Path of the engine config file. Empty means core.DefaultConfigFile.
	ConfigPath string
	// Overrides the log level from the config file when set.
	LogLevel string
	// Stop after this many frames. Zero runs until Quit.
	MaxFrames uint64
	// Frames per second the loop is limited to. Zero does not limit.
	TargetFrameRate uint32
}
