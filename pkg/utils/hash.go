package utils

import (
	"strconv"

	"github.com/mitchellh/hashstructure/v2"
)

// Fingerprint returns a stable hash of v.
func Fingerprint(v interface{}) (string, error) {
	hash, err := hashstructure.Hash(v, hashstructure.FormatV2, &hashstructure.HashOptions{
		ZeroNil: true,
	})
	return strconv.FormatUint(hash, 10), err
}
