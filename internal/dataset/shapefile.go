// internal/dataset/shapefile.go - ESRI Shapefile driver
package dataset

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/pkg/errors"

	"github.com/valpere/wgs_correction/internal"
	"github.com/valpere/wgs_correction/internal/output"
)

// shapefileMeta is the part of a shapefile copied verbatim to the output
type shapefileMeta struct {
	shapeType shp.ShapeType
	fields    []shp.Field
	prj       []byte
	cpg       []byte
}

type shapefileReader struct {
	path   string
	reader *shp.Reader
	meta   *Metadata
	names  []string
	codec  *Codec
}

func openShapefile(path string, opts Options) (*shapefileReader, error) {
	if err := output.CheckRegularFile(path); err != nil {
		return nil, err
	}

	prj, err := readSidecar(path, ".prj")
	if err != nil {
		return nil, datasetError(path, "failed to read projection", err)
	}
	cpg, err := readSidecar(path, ".cpg")
	if err != nil {
		return nil, datasetError(path, "failed to read code page", err)
	}

	label := opts.Encoding
	if len(cpg) > 0 {
		label = string(cpg)
	}
	codec, err := LookupEncoding(label)
	if err != nil {
		return nil, err
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, datasetError(path, "failed to open shapefile", errors.Wrap(err, "shp.Open"))
	}

	fields := reader.Fields()
	names := make([]string, len(fields))
	schema := Schema{
		GeometryType: shapeTypeName(reader.GeometryType),
		Fields:       make([]Field, len(fields)),
	}
	for i, f := range fields {
		name, err := codec.Decode(f.String())
		if err != nil {
			reader.Close()
			return nil, datasetError(path, "failed to decode field name", errors.Wrapf(err, "field %d", i))
		}
		names[i] = name
		schema.Fields[i] = Field{
			Name:      name,
			Type:      string(f.Fieldtype),
			Size:      int(f.Size),
			Precision: int(f.Precision),
		}
	}

	meta := &Metadata{
		Driver:  DriverShapefile,
		CRS:     ParseWKT(string(prj)),
		Schema:  schema,
		Options: map[string]string{"encoding": codec.Name()},
		native: &shapefileMeta{
			shapeType: reader.GeometryType,
			fields:    fields,
			prj:       prj,
			cpg:       cpg,
		},
	}

	return &shapefileReader{
		path:   path,
		reader: reader,
		meta:   meta,
		names:  names,
		codec:  codec,
	}, nil
}

// Metadata returns the dataset metadata
func (r *shapefileReader) Metadata() *Metadata {
	return r.meta
}

// Next reads the next record
func (r *shapefileReader) Next() (*Feature, error) {
	if !r.reader.Next() {
		if err := r.reader.Err(); err != nil {
			return nil, datasetError(r.path, "failed to read shape", errors.Wrap(err, "shp.Reader"))
		}
		return nil, io.EOF
	}

	n, shape := r.reader.Shape()
	tree, err := shapeToTree(shape)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeGeometry,
			fmt.Sprintf("invalid geometry in record %d of %s", n, r.path), err)
	}

	attrs := make(map[string]interface{}, len(r.names))
	for i, name := range r.names {
		value, err := r.codec.Decode(strings.Trim(r.reader.ReadAttribute(n, i), " \x00"))
		if err != nil {
			return nil, datasetError(r.path, "failed to decode attribute",
				errors.Wrapf(err, "record %d field %s", n, name))
		}
		attrs[name] = value
	}

	return &Feature{
		Index:      n,
		ID:         n,
		Geometry:   tree,
		Attributes: attrs,
		template:   shape,
	}, nil
}

// Close releases the underlying files
func (r *shapefileReader) Close() error {
	return r.reader.Close()
}

type shapefileWriter struct {
	path      string
	writer    *shp.Writer
	shapeType shp.ShapeType
	fields    []shp.Field
	names     []string
	codec     *Codec
	closed    bool
}

func createShapefile(path string, meta *Metadata, opts Options) (*shapefileWriter, error) {
	native, _ := meta.native.(*shapefileMeta)
	if native == nil {
		var err error
		if native, err = shapefileMetaFromSchema(meta); err != nil {
			return nil, err
		}
	}

	label := meta.Options["encoding"]
	if label == "" {
		label = "UTF-8"
	}
	codec, err := LookupEncoding(label)
	if err != nil {
		return nil, err
	}

	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil, internal.NewError(internal.ErrorCodeFileSystem,
				fmt.Sprintf("output already exists: %s", path), os.ErrExist)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem, "failed to create directory", err)
	}

	writer, err := shp.Create(path, native.shapeType)
	if err != nil {
		return nil, datasetError(path, "failed to create shapefile", errors.Wrap(err, "shp.Create"))
	}
	if err := writer.SetFields(native.fields); err != nil {
		writer.Close()
		return nil, datasetError(path, "failed to write attribute table", errors.Wrap(err, "SetFields"))
	}

	if err := writeSidecars(path, native, meta); err != nil {
		writer.Close()
		moveAttributeTable(path)
		return nil, err
	}

	names := make([]string, len(meta.Schema.Fields))
	for i, f := range meta.Schema.Fields {
		names[i] = f.Name
	}

	return &shapefileWriter{
		path:      path,
		writer:    writer,
		shapeType: native.shapeType,
		fields:    native.fields,
		names:     names,
		codec:     codec,
	}, nil
}

// Write appends one record. The row returned by the shape write addresses
// the attribute row.
func (w *shapefileWriter) Write(f *Feature) error {
	if w.closed {
		return datasetError(w.path, "write after close", nil)
	}
	if f.Geometry == nil {
		return internal.NewError(internal.ErrorCodeGeometry,
			fmt.Sprintf("feature %d has no geometry", f.Index), nil)
	}

	template, _ := f.template.(shp.Shape)
	shape, err := treeToShape(f.Geometry, w.shapeType, template)
	if err != nil {
		return internal.NewError(internal.ErrorCodeGeometry,
			fmt.Sprintf("cannot rebuild feature %d", f.Index), err)
	}

	row := w.writer.Write(shape)
	for i := range w.fields {
		if i >= len(w.names) {
			break
		}
		text, err := w.codec.Encode(formatAttribute(f.Attributes[w.names[i]]))
		if err != nil {
			return datasetError(w.path, "failed to encode attribute",
				errors.Wrapf(err, "feature %d field %s", f.Index, w.names[i]))
		}
		if err := w.writer.WriteAttribute(int(row), i, text); err != nil {
			return datasetError(w.path, "failed to write attribute",
				errors.Wrapf(err, "feature %d field %s", f.Index, w.names[i]))
		}
	}
	return nil
}

// Close finalizes the headers of the written files
func (w *shapefileWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.writer.Close()
	return moveAttributeTable(w.path)
}

// moveAttributeTable renames the attribute table go-shp v0.1.1 creates at
// <base>dbf, without the dot, to <base>.dbf next to the .shp and .shx
func moveAttributeTable(path string) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil && !os.IsNotExist(err) {
		return internal.NewError(internal.ErrorCodeFileSystem,
			fmt.Sprintf("failed to place attribute table of %s", path), err)
	}
	return nil
}

// shapefileMetaFromSchema builds native metadata for datasets that were not
// read from a shapefile
func shapefileMetaFromSchema(meta *Metadata) (*shapefileMeta, error) {
	shapeType, ok := parseShapeType(meta.Schema.GeometryType)
	if !ok {
		return nil, internal.NewError(internal.ErrorCodeValidation,
			fmt.Sprintf("unsupported shapefile geometry type %q", meta.Schema.GeometryType), ErrNoTemplate)
	}

	fields := make([]shp.Field, len(meta.Schema.Fields))
	for i, f := range meta.Schema.Fields {
		field := shp.Field{Fieldtype: 'C', Size: 254}
		copy(field.Name[:10], f.Name)
		if f.Type != "" {
			field.Fieldtype = f.Type[0]
		}
		if f.Size > 0 && f.Size <= 254 {
			field.Size = uint8(f.Size)
		}
		field.Precision = uint8(f.Precision)
		fields[i] = field
	}

	var prj []byte
	if meta.CRS.WKT != "" {
		prj = []byte(meta.CRS.WKT)
	}
	return &shapefileMeta{shapeType: shapeType, fields: fields, prj: prj}, nil
}

// writeSidecars copies the .prj and .cpg files of the source
func writeSidecars(path string, native *shapefileMeta, meta *Metadata) error {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	if native.prj != nil {
		if err := os.WriteFile(base+".prj", native.prj, 0644); err != nil {
			return internal.NewError(internal.ErrorCodeFileSystem, "failed to write projection", err)
		}
	}

	cpg := native.cpg
	if cpg == nil && meta.Options["encoding"] != "" {
		cpg = []byte(strings.ToUpper(meta.Options["encoding"]))
	}
	if cpg != nil {
		if err := os.WriteFile(base+".cpg", cpg, 0644); err != nil {
			return internal.NewError(internal.ErrorCodeFileSystem, "failed to write code page", err)
		}
	}
	return nil
}

// readSidecar reads base.ext or base.EXT, returning nil when neither exists
func readSidecar(path, ext string) ([]byte, error) {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	for _, candidate := range []string{base + ext, base + strings.ToUpper(ext)} {
		data, err := os.ReadFile(candidate)
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return nil, nil
}

func formatAttribute(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		if v {
			return "T"
		}
		return "F"
	default:
		return fmt.Sprint(v)
	}
}

func datasetError(path, message string, cause error) error {
	return internal.NewError(internal.ErrorCodeDataset, fmt.Sprintf("%s: %s", message, path), cause)
}
