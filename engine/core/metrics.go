package core

const AvgCount uint8 = 30

// RenderCounters are reset at the start of every frame by the render systems.
type RenderCounters struct {
	DrawCalls       uint32
	InstancedDraws  uint32
	Instances       uint32
	Triangles       uint64
	DiscardedGroups uint32
	SkippedEntities uint32
}

type Metrics struct {
	frameAvgCounter    uint8
	msTimes            [AvgCount]float64
	msAvg              float64
	frames             int32
	accumulatedFrameMS float64
	fps                float64

	Render RenderCounters
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

// Update takes the frame time in seconds.
func (m *Metrics) Update(frameElapsedTime float64) {
	// Calculate frame ms average
	frameMS := frameElapsedTime * 1000.0
	m.msTimes[m.frameAvgCounter] = frameMS
	if m.frameAvgCounter == AvgCount-1 {
		m.msAvg = 0
		for i := uint8(0); i < AvgCount; i++ {
			m.msAvg += m.msTimes[i]
		}
		m.msAvg /= float64(AvgCount)
	}
	m.frameAvgCounter++
	m.frameAvgCounter %= AvgCount

	// Calculate frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	m.frames++
}

func (m *Metrics) ResetRenderCounters() {
	m.Render = RenderCounters{}
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}

func (m *Metrics) Frame() (float64, float64) {
	return m.fps, m.msAvg
}
