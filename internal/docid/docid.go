// Package docid derives stable checkpoint keys for documents.
package docid

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
)

const (
	contentPrefix = "doc-"
	pathPrefix    = "file-"
	hashLen       = 16
)

// FromText returns a key derived from the document text. The same text always yields the same key,
// so a rerun on an unchanged document resumes its checkpoint.
func FromText(text string) string {
	hash := sha256.Sum256([]byte(text))
	return contentPrefix + hex.EncodeToString(hash[:])[:hashLen]
}

// FromPath returns a key derived from the cleaned absolute path.
func FromPath(absolutePath string) string {
	hash := sha256.Sum256([]byte(filepath.Clean(absolutePath)))
	return pathPrefix + hex.EncodeToString(hash[:])[:hashLen]
}

// Valid reports whether key is safe to use as a file name and store key.
func Valid(key string) bool {
	if key == "" || len(key) > 128 {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return key != "." && key != ".."
}
