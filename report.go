package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/livewall/engine/renderer"
	"github.com/spaghettifunk/livewall/engine/renderer/headless"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// frameReport summarizes the command buffers recorded by a headless render.
type frameReport struct {
	Frames     int
	Presented  int
	Failed     int
	Draws      int
	Dispatches int
	Pipelines  map[string]int
	// Elapsed time written into the uniforms of the first and last frame.
	FirstTime float32
	LastTime  float32
	Stats     renderer.Stats
}

func newFrameReport(frames []headless.Frame, stats renderer.Stats) frameReport {
	r := frameReport{
		Frames:    len(frames),
		Pipelines: make(map[string]int),
		Stats:     stats,
	}
	for i, f := range frames {
		if f.Presented {
			r.Presented++
		}
		if f.Status == metadata.CommandBufferStatusError {
			r.Failed++
		}
		r.Draws += len(f.Draws)
		r.Dispatches += len(f.Dispatches)
		for _, d := range f.Draws {
			r.Pipelines[d.Pipeline]++
		}
		t := uniformTime(f.Uniforms)
		if i == 0 {
			r.FirstTime = t
		}
		r.LastTime = t
	}
	return r
}

// uniformTime reads the elapsed seconds stored at the start of the frame
// uniforms. NaN marks a frame without uniforms.
func uniformTime(uniforms []byte) float32 {
	if len(uniforms) < 4 {
		return math32.NaN()
	}
	return math32.Float32frombits(binary.LittleEndian.Uint32(uniforms[:4]))
}

func (r frameReport) write(out io.Writer) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "frames\t%d\n", r.Frames)
	fmt.Fprintf(w, "presented\t%d\n", r.Presented)
	fmt.Fprintf(w, "failed\t%d\n", r.Failed)
	fmt.Fprintf(w, "draw calls\t%d\n", r.Draws)
	fmt.Fprintf(w, "compute dispatches\t%d\n", r.Dispatches)
	fmt.Fprintf(w, "uniform time\t%.3fs .. %.3fs\n", r.FirstTime, r.LastTime)
	fmt.Fprintf(w, "fps\t%.1f (%.2fms)\n", r.Stats.FPS, r.Stats.FrameTime)
	for _, name := range slices.Sorted(maps.Keys(r.Pipelines)) {
		fmt.Fprintf(w, "pipeline %s\t%d draws\n", name, r.Pipelines[name])
	}
	return w.Flush()
}
