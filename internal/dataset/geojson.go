// internal/dataset/geojson.go - GeoJSON driver
package dataset

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"sort"

	jsoniter "github.com/json-iterator/go"
	"github.com/paulmach/orb"
	gogeom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/valpere/wgs_correction/internal"
	"github.com/valpere/wgs_correction/internal/output"
	"github.com/valpere/wgs_correction/pkg/geom"
)

var json = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

// geojsonMeta holds the top-level members of the source document
type geojsonMeta struct {
	// foreign members such as name or crs, copied verbatim
	members map[string]jsoniter.RawMessage
	// bbox of the source collection, nil when absent
	bbox []float64
}

type geojsonFeatureIn struct {
	Type       string                 `json:"type"`
	ID         interface{}            `json:"id"`
	BBox       []float64              `json:"bbox"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

type geojsonFeatureOut struct {
	Type       string                 `json:"type"`
	ID         interface{}            `json:"id,omitempty"`
	BBox       []float64              `json:"bbox,omitempty"`
	Geometry   jsoniter.RawMessage    `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

// geojsonTemplate remembers what a feature looked like on input
type geojsonTemplate struct {
	geometry gogeom.T
	bbox     []float64
	// foreign members of the feature, copied verbatim
	members map[string]jsoniter.RawMessage
}

type legacyCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string      `json:"name"`
		Code interface{} `json:"code"`
	} `json:"properties"`
}

type geojsonReader struct {
	path     string
	meta     *Metadata
	features []jsoniter.RawMessage
	next     int
}

func openGeoJSON(path string) (*geojsonReader, error) {
	src, err := output.OpenSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to read file: %s", path), err)
	}

	var members map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, datasetError(path, "invalid GeoJSON document", err)
	}

	var kind string
	if raw, ok := members["type"]; ok {
		if err := json.Unmarshal(raw, &kind); err != nil {
			return nil, datasetError(path, "invalid GeoJSON type member", err)
		}
	}

	native := &geojsonMeta{members: make(map[string]jsoniter.RawMessage)}
	var features []jsoniter.RawMessage

	switch kind {
	case "FeatureCollection":
		if raw, ok := members["features"]; ok {
			if err := json.Unmarshal(raw, &features); err != nil {
				return nil, datasetError(path, "invalid features member", err)
			}
		}
		if raw, ok := members["bbox"]; ok {
			if err := json.Unmarshal(raw, &native.bbox); err != nil {
				return nil, datasetError(path, "invalid bbox member", err)
			}
		}
		for key, raw := range members {
			switch key {
			case "type", "features", "bbox":
			default:
				native.members[key] = raw
			}
		}
	case "Feature":
		features = []jsoniter.RawMessage{data}
	default:
		return nil, datasetError(path, "unsupported GeoJSON root",
			fmt.Errorf("%w: type %q", ErrUnsupportedDriver, kind))
	}

	crs, err := parseLegacyCRS(native.members["crs"])
	if err != nil {
		return nil, datasetError(path, "invalid crs member", err)
	}

	return &geojsonReader{
		path:     path,
		features: features,
		meta: &Metadata{
			Driver:  DriverGeoJSON,
			CRS:     crs,
			Options: map[string]string{},
			native:  native,
		},
	}, nil
}

// parseLegacyCRS reads the pre RFC 7946 crs member. Without one the data is
// lon/lat WGS 84.
func parseLegacyCRS(raw jsoniter.RawMessage) (CRS, error) {
	if len(raw) == 0 {
		return CRS{}, nil
	}

	var c legacyCRS
	if err := json.Unmarshal(raw, &c); err != nil {
		return CRS{}, err
	}

	name := c.Properties.Name
	if name == "" && c.Properties.Code != nil {
		name = fmt.Sprintf("EPSG:%v", c.Properties.Code)
	}
	return ParseCRSName(name), nil
}

// Metadata returns the dataset metadata
func (r *geojsonReader) Metadata() *Metadata {
	return r.meta
}

// Next decodes the next feature
func (r *geojsonReader) Next() (*Feature, error) {
	if r.next >= len(r.features) {
		return nil, io.EOF
	}
	index := r.next
	r.next++

	var in geojsonFeatureIn
	if err := json.Unmarshal(r.features[index], &in); err != nil {
		return nil, datasetError(r.path, fmt.Sprintf("invalid feature %d", index), err)
	}
	members, err := featureMembers(r.features[index])
	if err != nil {
		return nil, datasetError(r.path, fmt.Sprintf("invalid feature %d", index), err)
	}

	f := &Feature{
		Index:      index,
		ID:         in.ID,
		Attributes: in.Properties,
	}
	if in.Geometry == nil {
		f.template = &geojsonTemplate{bbox: in.BBox, members: members}
		return f, nil
	}

	g, err := in.Geometry.Decode()
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeGeometry,
			fmt.Sprintf("invalid geometry in feature %d of %s", index, r.path), err)
	}

	tree, err := geometryToTree(g)
	if err != nil {
		return nil, internal.NewError(internal.ErrorCodeGeometry,
			fmt.Sprintf("invalid geometry in feature %d of %s", index, r.path), err)
	}

	f.Geometry = tree
	f.template = &geojsonTemplate{geometry: g, bbox: in.BBox, members: members}
	return f, nil
}

// featureMembers returns the members of a feature object other than type, id,
// bbox, geometry and properties, or nil when there are none
func featureMembers(data []byte) (map[string]jsoniter.RawMessage, error) {
	var all map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var members map[string]jsoniter.RawMessage
	for key, raw := range all {
		switch key {
		case "type", "id", "bbox", "geometry", "properties":
		default:
			if members == nil {
				members = make(map[string]jsoniter.RawMessage)
			}
			members[key] = raw
		}
	}
	return members, nil
}

// Close releases the decoded document
func (r *geojsonReader) Close() error {
	r.features = nil
	return nil
}

type geojsonWriter struct {
	dest   output.Destination
	native *geojsonMeta
	pretty bool
	count  int
	extent orb.Bound
	closed bool
}

func createGeoJSON(path string, meta *Metadata, opts Options) (*geojsonWriter, error) {
	native, _ := meta.native.(*geojsonMeta)
	if native == nil {
		native = &geojsonMeta{members: make(map[string]jsoniter.RawMessage)}
		if meta.CRS.Name != "" {
			crs, err := json.Marshal(map[string]interface{}{
				"type":       "name",
				"properties": map[string]string{"name": meta.CRS.Name},
			})
			if err != nil {
				return nil, datasetError(path, "failed to encode crs", err)
			}
			native.members["crs"] = crs
		}
	}

	dest, err := output.NewDestination(path, output.Options{
		Compression: opts.Compression,
		Overwrite:   opts.Overwrite,
	})
	if err != nil {
		return nil, err
	}

	w := &geojsonWriter{
		dest:   dest,
		native: native,
		pretty: opts.Pretty,
		extent: emptyBound(),
	}
	if err := w.writeHeader(); err != nil {
		dest.Close()
		return nil, err
	}
	return w, nil
}

func (w *geojsonWriter) writeHeader() error {
	if _, err := io.WriteString(w.dest, `{"type":"FeatureCollection"`); err != nil {
		return w.writeError(err)
	}

	keys := make([]string, 0, len(w.native.members))
	for key := range w.native.members {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		name, _ := json.Marshal(key)
		if _, err := fmt.Fprintf(w.dest, ",%s:%s", name, w.native.members[key]); err != nil {
			return w.writeError(err)
		}
	}

	if _, err := io.WriteString(w.dest, `,"features":[`); err != nil {
		return w.writeError(err)
	}
	return nil
}

// Write appends one feature to the collection
func (w *geojsonWriter) Write(f *Feature) error {
	if w.closed {
		return datasetError(w.dest.Name(), "write after close", nil)
	}

	tmpl, _ := f.template.(*geojsonTemplate)
	out := geojsonFeatureOut{
		Type:       "Feature",
		ID:         f.ID,
		Geometry:   jsoniter.RawMessage("null"),
		Properties: f.Attributes,
	}

	if f.Geometry != nil {
		var source gogeom.T
		if tmpl != nil {
			source = tmpl.geometry
		}
		g, err := treeToGeometry(f.Geometry, source)
		if err != nil {
			return internal.NewError(internal.ErrorCodeGeometry,
				fmt.Sprintf("cannot rebuild feature %d", f.Index), err)
		}
		encoded, err := geojson.Encode(g)
		if err != nil {
			return internal.NewError(internal.ErrorCodeGeometry,
				fmt.Sprintf("cannot encode feature %d", f.Index), err)
		}
		if out.Geometry, err = json.Marshal(encoded); err != nil {
			return internal.NewError(internal.ErrorCodeGeometry,
				fmt.Sprintf("cannot encode feature %d", f.Index), err)
		}

		bound := geom.Bound(f.Geometry)
		w.extent = w.extent.Union(bound)
		if tmpl != nil && tmpl.bbox != nil {
			out.BBox = recomputeBBox(tmpl.bbox, bound)
		}
	}

	var data []byte
	var err error
	if w.pretty {
		data, err = json.MarshalIndent(out, "", "  ")
	} else {
		data, err = json.Marshal(out)
	}
	if err == nil && tmpl != nil {
		data = appendMembers(data, tmpl.members, w.pretty)
	}
	if err == nil && w.pretty {
		// nested one level inside the features array
		data = bytes.ReplaceAll(data, []byte("\n"), []byte("\n  "))
	}
	if err != nil {
		return datasetError(w.dest.Name(), fmt.Sprintf("cannot encode feature %d", f.Index), err)
	}

	separator := ","
	if w.count == 0 {
		separator = ""
	}
	if w.pretty {
		separator += "\n  "
	}
	if _, err := io.WriteString(w.dest, separator); err != nil {
		return w.writeError(err)
	}
	if _, err := w.dest.Write(data); err != nil {
		return w.writeError(err)
	}
	w.count++
	return nil
}

// Close terminates the collection, adding the recomputed bbox when the
// source collection had one
func (w *geojsonWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	tail := "]"
	if w.pretty && w.count > 0 {
		tail = "\n]"
	}
	if w.native.bbox != nil && !geom.IsEmptyBound(w.extent) {
		bbox, err := json.Marshal(recomputeBBox(w.native.bbox, w.extent))
		if err != nil {
			w.dest.Close()
			return datasetError(w.dest.Name(), "cannot encode bbox", err)
		}
		tail += `,"bbox":` + string(bbox)
	}
	tail += "}\n"

	if _, err := io.WriteString(w.dest, tail); err != nil {
		w.dest.Close()
		return w.writeError(err)
	}
	if err := w.dest.Close(); err != nil {
		return w.writeError(err)
	}
	return nil
}

func (w *geojsonWriter) writeError(err error) error {
	return internal.NewError(internal.ErrorCodeFileSystem, fmt.Sprintf("failed to write %s", w.dest.Name()), err)
}

// appendMembers adds foreign members, sorted by name, before the closing
// brace of an encoded feature
func appendMembers(data []byte, members map[string]jsoniter.RawMessage, pretty bool) []byte {
	if len(members) == 0 {
		return data
	}

	keys := make([]string, 0, len(members))
	for key := range members {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	end := bytes.LastIndexByte(data, '}')
	var buf bytes.Buffer
	buf.Write(bytes.TrimRight(data[:end], " \n"))
	for _, key := range keys {
		name, _ := json.Marshal(key)
		if pretty {
			fmt.Fprintf(&buf, ",\n  %s: %s", name, members[key])
		} else {
			fmt.Fprintf(&buf, ",%s:%s", name, members[key])
		}
	}
	if pretty {
		buf.WriteByte('\n')
	}
	buf.WriteByte('}')
	return buf.Bytes()
}

// recomputeBBox replaces the x/y extent of a bbox, keeping any z range
func recomputeBBox(original []float64, b orb.Bound) []float64 {
	if len(original) == 6 {
		return []float64{b.Min[0], b.Min[1], original[2], b.Max[0], b.Max[1], original[5]}
	}
	return []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

func emptyBound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{math.Inf(1), math.Inf(1)},
		Max: orb.Point{math.Inf(-1), math.Inf(-1)},
	}
}
