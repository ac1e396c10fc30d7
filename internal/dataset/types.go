// internal/dataset/types.go - Dataset reading and writing abstractions
package dataset

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/valpere/wgs_correction/internal"
	"github.com/valpere/wgs_correction/internal/output"
	"github.com/valpere/wgs_correction/pkg/geom"
)

// Driver names a supported file format
type Driver string

const (
	DriverShapefile Driver = "ESRI Shapefile"
	DriverGeoJSON   Driver = "GeoJSON"
)

var (
	// ErrUnsupportedDriver is returned for paths whose extension maps to no driver
	ErrUnsupportedDriver = errors.New("unsupported dataset format")

	// ErrDriverMismatch is returned when the output format differs from the input
	ErrDriverMismatch = errors.New("output format must match input format")

	// ErrNoTemplate is returned when a writer cannot rebuild a geometry type
	// from the coordinate tree alone
	ErrNoTemplate = errors.New("feature has no source geometry to rebuild from")
)

// Field describes one attribute column
type Field struct {
	Name      string
	Type      string
	Size      int
	Precision int
}

// Schema describes the geometry type and attribute columns of a dataset
type Schema struct {
	GeometryType string
	Fields       []Field
}

// CRS describes the coordinate reference system label of a dataset. It is
// copied to the output unchanged; coordinates are corrected, the label is not.
type CRS struct {
	Name      string
	WKT       string
	Projected bool
}

// Metadata holds everything about a dataset except its features
type Metadata struct {
	Driver  Driver
	CRS     CRS
	Schema  Schema
	Options map[string]string

	// driver specific metadata copied verbatim to the output
	native interface{}
}

// Feature is one record of a dataset
type Feature struct {
	Index      int
	ID         interface{}
	Geometry   geom.Tree
	Attributes map[string]interface{}

	// source geometry used to rebuild the native type, layout and ring ends
	template interface{}
}

// WithGeometry returns a shallow copy of f holding t
func (f *Feature) WithGeometry(t geom.Tree) *Feature {
	out := *f
	out.Geometry = t
	return &out
}

// Reader iterates over the features of a dataset
type Reader interface {
	Metadata() *Metadata
	// Next returns io.EOF after the last feature
	Next() (*Feature, error)
	Close() error
}

// Writer stores features into a new dataset
type Writer interface {
	Write(f *Feature) error
	Close() error
}

// Opener opens dataset readers and creates dataset writers
type Opener interface {
	Open(path string) (Reader, error)
	Create(path string, meta *Metadata) (Writer, error)
}

// Options controls reading and writing of dataset files
type Options struct {
	// Encoding is the shapefile attribute encoding used when no .cpg exists
	Encoding    string
	Pretty      bool
	Compression bool
	Overwrite   bool
}

// FileOpener dispatches to the driver chosen by the file extension
type FileOpener struct {
	options Options
}

// NewOpener creates a file opener with the given options
func NewOpener(opts Options) *FileOpener {
	if opts.Encoding == "" {
		opts.Encoding = "UTF-8"
	}
	return &FileOpener{options: opts}
}

// DefaultOpener reads UTF-8 attributes and overwrites existing outputs
var DefaultOpener Opener = NewOpener(Options{Overwrite: true})

// Open opens the dataset at path for reading
func (o *FileOpener) Open(path string) (Reader, error) {
	driver, err := DriverFor(path)
	if err != nil {
		return nil, err
	}

	switch driver {
	case DriverShapefile:
		return openShapefile(path, o.options)
	default:
		return openGeoJSON(path)
	}
}

// Create creates a dataset at path with the metadata of the source dataset
func (o *FileOpener) Create(path string, meta *Metadata) (Writer, error) {
	driver, err := DriverFor(path)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, internal.NewError(internal.ErrorCodeValidation, "dataset metadata is required", nil)
	}
	if meta.Driver != driver {
		return nil, internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("cannot write %s data to %s", meta.Driver, path),
			fmt.Errorf("%w: %s != %s", ErrDriverMismatch, meta.Driver, driver))
	}

	switch driver {
	case DriverShapefile:
		return createShapefile(path, meta, o.options)
	default:
		return createGeoJSON(path, meta, o.options)
	}
}

// DriverFor picks the driver from the file extension. GeoJSON may be gzipped.
func DriverFor(path string) (Driver, error) {
	lower := strings.ToLower(path)
	compressed := output.IsCompressedPath(lower)

	switch filepath.Ext(output.TrimCompression(lower)) {
	case ".shp":
		if compressed {
			break
		}
		return DriverShapefile, nil
	case ".geojson", ".json":
		return DriverGeoJSON, nil
	}

	return "", internal.NewError(internal.ErrorCodeValidation,
		fmt.Sprintf("cannot determine format of %s", path),
		ErrUnsupportedDriver)
}

// IsDataset reports whether path has a supported extension
func IsDataset(path string) bool {
	_, err := DriverFor(path)
	return err == nil
}
