package metadata

type ResourceType int

// Resource types indexed by the asset manager.
const (
	ResourceTypeNone ResourceType = iota
	// Compiled SPIR-V program.
	ResourceTypeShader
	// Any image format the image loader can decode.
	ResourceTypeImage
	// Raw bytes.
	ResourceTypeBinary
	// TOML or YAML configuration file.
	ResourceTypeConfig
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeShader:
		return "shader"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeBinary:
		return "binary"
	case ResourceTypeConfig:
		return "config"
	}
	return "none"
}

// Resource is what every loader produces. Data holds the loader specific
// payload: []byte for shaders and binaries, *ImageResourceData for images.
type Resource struct {
	Name     string
	FullPath string
	Type     ResourceType
	DataSize uint64
	Data     interface{}
}
