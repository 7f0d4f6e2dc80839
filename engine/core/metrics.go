package core

import "sync"

const DefaultFPSSampleCount = 100

// FPSCounter keeps a rolling window of frame timestamps and derives the
// average frame rate and frame time from it.
type FPSCounter struct {
	mu          sync.Mutex
	sampleCount int
	samples     []float64
	next        int
	filled      int
	frames      uint64
}

func NewFPSCounter(sampleCount int) *FPSCounter {
	if sampleCount < 2 {
		sampleCount = 2
	}
	return &FPSCounter{
		sampleCount: sampleCount,
		samples:     make([]float64, sampleCount),
	}
}

// NewFrame records a frame presented at time seconds.
func (c *FPSCounter) NewFrame(time float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples[c.next] = time
	c.next = (c.next + 1) % c.sampleCount
	if c.filled < c.sampleCount {
		c.filled++
	}
	c.frames++
}

func (c *FPSCounter) span() float64 {
	newest := c.samples[(c.next-1+c.sampleCount)%c.sampleCount]
	oldest := c.samples[0]
	if c.filled == c.sampleCount {
		oldest = c.samples[c.next]
	}
	return newest - oldest
}

// FPS returns 0 until at least two frames were recorded.
func (c *FPSCounter) FPS() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filled < 2 {
		return 0
	}
	span := c.span()
	if span <= 0 {
		return 0
	}
	return float64(c.filled-1) / span
}

// FrameTime returns the average frame time in milliseconds.
func (c *FPSCounter) FrameTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filled < 2 {
		return 0
	}
	return c.span() * 1000.0 / float64(c.filled-1)
}

func (c *FPSCounter) Frames() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames
}
