package utils

import (
	"os"
	"path/filepath"

	"emperror.dev/errors"
	"github.com/c2h5oh/datasize"
)

// DirSize returns the total size of the regular files under path.
func DirSize(path string) (datasize.ByteSize, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	if !info.IsDir() {
		return 0, errors.Errorf("%s is not a directory", path)
	}

	var size int64
	err = filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			// Files may disappear while walking; skip them.
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return datasize.ByteSize(size), errors.WithStack(err)
}
