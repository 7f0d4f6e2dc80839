package loaders

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

const spirvMagic uint32 = 0x07230203

var ErrInvalidSPIRV = errors.New("invalid SPIR-V module")

// ShaderLoader reads compiled SPIR-V and checks its header.
type ShaderLoader struct {
	binary BinaryLoader
}

func (sl *ShaderLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	res, err := sl.binary.Load(path, params)
	if err != nil {
		return nil, err
	}
	code := res.Data.([]byte)
	if err := ValidateSPIRV(code); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Type = metadata.ResourceTypeShader
	return res, nil
}

func (sl *ShaderLoader) Unload(res *metadata.Resource) error {
	return sl.binary.Unload(res)
}

// ValidateSPIRV checks the word alignment and the little endian magic number.
func ValidateSPIRV(code []byte) error {
	if len(code) < 20 || len(code)%4 != 0 {
		return fmt.Errorf("%w: size %d", ErrInvalidSPIRV, len(code))
	}
	if magic := binary.LittleEndian.Uint32(code); magic != spirvMagic {
		return fmt.Errorf("%w: magic %#08x", ErrInvalidSPIRV, magic)
	}
	return nil
}
