package vulkan

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/livewall/engine/core"
	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

// ShaderSource provides compiled SPIR-V programs by name.
type ShaderSource interface {
	LoadShader(name string) ([]byte, error)
	ShaderNames() []string
}

const shaderEntryPoint = "main"

// stageFromName infers the stage from the program naming convention:
// "<effect>_vertex", "<effect>_fragment", anything else is a kernel.
func stageFromName(name string) metadata.ShaderStage {
	switch {
	case strings.HasSuffix(name, "_vertex"):
		return metadata.ShaderStageVertex
	case strings.HasSuffix(name, "_fragment"):
		return metadata.ShaderStageFragment
	}
	return metadata.ShaderStageKernel
}

type Function struct {
	name       string
	stage      metadata.ShaderStage
	entryPoint string
	module     vk.ShaderModule
}

func (f *Function) Name() string {
	return f.name
}

func (f *Function) Stage() metadata.ShaderStage {
	return f.stage
}

// Library creates shader modules lazily and keeps them until Destroy.
type Library struct {
	context *VulkanContext
	source  ShaderSource

	mu        sync.Mutex
	functions map[string]*Function
}

func newLibrary(context *VulkanContext, source ShaderSource) *Library {
	return &Library{
		context:   context,
		source:    source,
		functions: map[string]*Function{},
	}
}

func (l *Library) Function(name string) (metadata.Function, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if fn, ok := l.functions[name]; ok {
		return fn, nil
	}
	code, err := l.source.LoadShader(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", core.ErrFunctionNotFound, name, err)
	}
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: %s: invalid SPIR-V size %d", core.ErrPipelineCompile, name, len(code))
	}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}
	var module vk.ShaderModule
	if err := checkResult(vk.CreateShaderModule(l.context.Device.LogicalDevice, &createInfo, l.context.Allocator, &module), "vkCreateShaderModule"); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", core.ErrPipelineCompile, name, err)
	}
	fn := &Function{
		name:       name,
		stage:      stageFromName(name),
		entryPoint: shaderEntryPoint,
		module:     module,
	}
	l.functions[name] = fn
	core.LogDebug("Shader module %s (%s) loaded.", name, fn.stage)
	return fn, nil
}

func (l *Library) FunctionNames() []string {
	names := l.source.ShaderNames()
	sort.Strings(names)
	return names
}

func (l *Library) Destroy() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, fn := range l.functions {
		if fn.module != vk.NullShaderModule {
			vk.DestroyShaderModule(l.context.Device.LogicalDevice, fn.module, l.context.Allocator)
		}
		delete(l.functions, name)
	}
}
