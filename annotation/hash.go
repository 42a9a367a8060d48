package annotation

import (
	"crypto/sha256"
	"fmt"
	"io"
)

// HashFile returns the hex sha256 of everything left in r. It is used as the
// ETag of served images.
func HashFile(r io.Reader) (string, error) {
	hasher := sha256.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
