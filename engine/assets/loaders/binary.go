package loaders

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/livewall/engine/renderer/metadata"
)

type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, params interface{}) (*metadata.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &metadata.Resource{
		Name:     resourceName(path),
		FullPath: path,
		Type:     metadata.ResourceTypeBinary,
		DataSize: uint64(len(data)),
		Data:     data,
	}, nil
}

func (bl *BinaryLoader) Unload(res *metadata.Resource) error {
	if res == nil {
		return fmt.Errorf("nil resource")
	}
	res.Data = nil
	res.DataSize = 0
	return nil
}

// resourceName is the file name without directory and extension.
func resourceName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
