package loaders

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spaghettifunk/lumen/engine/resources"
)

// BinaryLoader returns the raw file contents.
type BinaryLoader struct{}

func (bl *BinaryLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return &resources.Resource{
		Type:     resources.ResourceTypeBinary,
		Name:     path,
		FullPath: path,
		DataSize: uint64(len(buf)),
		Data:     buf,
	}, nil
}

func (bl *BinaryLoader) Unload(res *resources.Resource) error {
	res.Data = nil
	return nil
}

// TextLoader returns the file contents as a string.
type TextLoader struct{}

func (tl *TextLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	return &resources.Resource{
		Type:     resources.ResourceTypeText,
		Name:     path,
		FullPath: path,
		DataSize: uint64(len(buf)),
		Data:     string(buf),
	}, nil
}

func (tl *TextLoader) Unload(res *resources.Resource) error {
	res.Data = nil
	return nil
}
