// internal/output/reader.go - Opening local input files
package output

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"

	"github.com/valpere/wgs_correction/internal"
)

type fileSource struct {
	file       *os.File
	gz         *gzip.Reader
	reader     io.Reader
	name       string
	compressed bool
}

// OpenSource opens a local file for reading, decompressing .gz files
func OpenSource(path string) (Source, error) {
	if err := CheckRegularFile(path); err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to open file: %s", path), err)
	}

	s := &fileSource{
		file:   file,
		reader: bufio.NewReader(file),
		name:   path,
	}

	// Handle compressed files
	if IsCompressedPath(path) {
		gz, err := gzip.NewReader(s.reader)
		if err != nil {
			file.Close()
			return nil, internal.NewError(internal.ErrorCodeProcessing, fmt.Sprintf("failed to create gzip reader for: %s", path), err)
		}
		s.gz = gz
		s.reader = gz
		s.compressed = true
	}

	return s, nil
}

// CheckRegularFile verifies that path exists and is a regular file
func CheckRegularFile(path string) error {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return internal.NewError(internal.ErrorCodeNotFound, fmt.Sprintf("file not found: %s", path), err)
		}
		return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("cannot access file: %s", path), err)
	}

	if !fileInfo.Mode().IsRegular() {
		return internal.NewError(internal.ErrorCodeValidation, fmt.Sprintf("path is not a regular file: %s", path), nil)
	}
	return nil
}

func (s *fileSource) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *fileSource) Close() error {
	if s.gz != nil {
		s.gz.Close()
	}
	return s.file.Close()
}

func (s *fileSource) Name() string { return s.name }

func (s *fileSource) Compressed() bool { return s.compressed }
