package assets

import "github.com/spaghettifunk/livewall/engine/renderer/metadata"

// Loader turns a file into a Resource. params is loader specific, for
// example *metadata.ImageResourceParams for images.
type Loader interface {
	Load(path string, params interface{}) (*metadata.Resource, error)
	Unload(*metadata.Resource) error
}
