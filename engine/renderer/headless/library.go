package headless

import (
	"fmt"
	"slices"
	"sync"

	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// FunctionSpec declares a program entry point. Inputs lists the vertex
// attribute formats a vertex function reads, by attribute location.
type FunctionSpec struct {
	Name   string
	Stage  metadata.ShaderStage
	Inputs []metadata.VertexFormat
}

type Function struct {
	spec FunctionSpec
}

func (f *Function) Name() string {
	return f.spec.Name
}

func (f *Function) Stage() metadata.ShaderStage {
	return f.spec.Stage
}

func (f *Function) Inputs() []metadata.VertexFormat {
	return f.spec.Inputs
}

// StandardInputs is the attribute list of the packed vertex.
func StandardInputs() []metadata.VertexFormat {
	return []metadata.VertexFormat{
		metadata.VertexFormatFloat3,
		metadata.VertexFormatFloat3,
		metadata.VertexFormatFloat4,
		metadata.VertexFormatFloat2,
	}
}

// DefaultFunctions mirrors the programs shipped in assets/shaders.
func DefaultFunctions() []FunctionSpec {
	return []FunctionSpec{
		{Name: "basic_vertex", Stage: metadata.ShaderStageVertex, Inputs: StandardInputs()},
		{Name: "vortex_fragment", Stage: metadata.ShaderStageFragment},
		{Name: "texture_fragment", Stage: metadata.ShaderStageFragment},
		{Name: "color_fragment", Stage: metadata.ShaderStageFragment},
		{Name: "waterEffect", Stage: metadata.ShaderStageKernel},
	}
}

type Library struct {
	mu        sync.RWMutex
	functions map[string]*Function
}

func NewLibrary(specs ...FunctionSpec) *Library {
	l := &Library{functions: make(map[string]*Function)}
	for _, s := range specs {
		l.Register(s)
	}
	return l
}

// Register adds or replaces a function.
func (l *Library) Register(spec FunctionSpec) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.functions[spec.Name] = &Function{spec: spec}
}

func (l *Library) Function(name string) (metadata.Function, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn, ok := l.functions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrFunctionNotFound, name)
	}
	return fn, nil
}

func (l *Library) FunctionNames() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.functions))
	for name := range l.functions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
