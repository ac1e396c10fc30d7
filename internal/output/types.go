// internal/output/types.go - Output handling types
package output

import (
	"io"
	"strings"
)

// Destination represents an output destination (file, stdout, etc.)
type Destination interface {
	io.WriteCloser
	Name() string
	Size() int64
}

// Source represents an opened input file, transparently decompressed
type Source interface {
	io.ReadCloser
	Name() string
	Compressed() bool
}

// Options controls how destinations are created
type Options struct {
	// Compression gzips the output; a .gz suffix is added when missing
	Compression bool
	// Overwrite allows replacing an existing file
	Overwrite bool
}

// StdoutPath is the destination name that selects standard output
const StdoutPath = "-"

// IsCompressedPath determines if a file is compressed based on its extension
func IsCompressedPath(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".gz")
}

// TrimCompression strips a trailing .gz so the inner extension can be inspected
func TrimCompression(path string) string {
	if IsCompressedPath(path) {
		return path[:len(path)-len(".gz")]
	}
	return path
}
