// internal/output/writer.go - File destinations with optional compression
package output

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/valpere/wgs_correction/internal"
)

// fileDestination implements the Destination interface for file output
type fileDestination struct {
	file     *os.File
	buffered *bufio.Writer
	gz       *gzip.Writer
	writer   io.Writer
	name     string
	size     int64
}

// NewDestination creates a destination for path. "-" writes to stdout.
func NewDestination(path string, opts Options) (Destination, error) {
	if path == StdoutPath {
		return newStdoutDestination(opts.Compression), nil
	}
	return newFileDestination(path, opts)
}

// newFileDestination creates a new file destination with optional compression
func newFileDestination(path string, opts Options) (*fileDestination, error) {
	compression := opts.Compression || IsCompressedPath(path)
	if compression && !IsCompressedPath(path) {
		path += ".gz"
	}

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem, "failed to create directory", err)
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Overwrite {
		flags |= os.O_EXCL
	}

	file, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("output already exists: %s", path), err)
		}
		return nil, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to create file: %s", path), err)
	}

	d := &fileDestination{
		file:     file,
		buffered: bufio.NewWriter(file),
		name:     path,
	}
	d.writer = d.buffered
	if compression {
		d.gz = gzip.NewWriter(d.buffered)
		d.writer = d.gz
	}
	return d, nil
}

// Write implements io.Writer
func (d *fileDestination) Write(p []byte) (n int, err error) {
	n, err = d.writer.Write(p)
	d.size += int64(n)
	return n, err
}

// Close flushes compression and buffering, then closes the file
func (d *fileDestination) Close() error {
	var firstErr error
	if d.gz != nil {
		firstErr = d.gz.Close()
	}
	if err := d.buffered.Flush(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := d.file.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Name returns the destination file path
func (d *fileDestination) Name() string {
	return d.name
}

// Size returns the number of uncompressed bytes written
func (d *fileDestination) Size() int64 {
	return d.size
}

// stdoutDestination writes to standard output and never closes it
type stdoutDestination struct {
	buffered *bufio.Writer
	gz       *gzip.Writer
	writer   io.Writer
	size     int64
}

func newStdoutDestination(compression bool) *stdoutDestination {
	d := &stdoutDestination{buffered: bufio.NewWriter(os.Stdout)}
	d.writer = d.buffered
	if compression {
		d.gz = gzip.NewWriter(d.buffered)
		d.writer = d.gz
	}
	return d
}

func (d *stdoutDestination) Write(p []byte) (int, error) {
	n, err := d.writer.Write(p)
	d.size += int64(n)
	return n, err
}

func (d *stdoutDestination) Close() error {
	if d.gz != nil {
		if err := d.gz.Close(); err != nil {
			return err
		}
	}
	return d.buffered.Flush()
}

func (d *stdoutDestination) Name() string { return StdoutPath }

func (d *stdoutDestination) Size() int64 { return d.size }
