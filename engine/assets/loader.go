package assets

import "github.com/spaghettifunk/lumen/engine/resources"

// Loader reads one kind of asset from disk. params is loader specific and may be nil.
type Loader interface {
	Load(path string, params interface{}) (*resources.Resource, error)
	Unload(*resources.Resource) error
}
