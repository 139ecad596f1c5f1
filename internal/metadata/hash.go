package metadata

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// HashDirectory returns a content hash of a definition directory. Renaming
// a file, editing it, or adding a nested directory all change the hash.
// Hidden entries are ignored.
func HashDirectory(path string) (string, error) {
	name := filepath.Base(filepath.Clean(path))
	if path == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("hash %q: no directory name", path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", fmt.Errorf("hash %q: %w", path, err)
	}

	var sb strings.Builder
	sb.WriteString(sha1Hex([]byte(name)))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			continue
		}
		full := filepath.Join(path, e.Name())
		if e.IsDir() {
			sub, err := HashDirectory(full)
			if err != nil {
				return "", err
			}
			sb.WriteString(sub)
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			return "", fmt.Errorf("hash %q: %w", full, err)
		}
		sb.WriteString(sha1Hex([]byte(e.Name())))
		sb.WriteString(sha1Hex(data))
	}
	return sha1Hex([]byte(sb.String())), nil
}

func sha1Hex(b []byte) string {
	sum := sha1.Sum(b)
	return hex.EncodeToString(sum[:])
}
