// pkg/correction/pipeline_test.go - Tests for the correction pipeline
package correction

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/valpere/wgs_correction/internal/dataset"
	"github.com/valpere/wgs_correction/pkg/datum"
	"github.com/valpere/wgs_correction/pkg/geom"
)

// memoryReader serves a fixed list of features
type memoryReader struct {
	meta     *dataset.Metadata
	features []*dataset.Feature
	next     int
	failAt   int
	closed   bool
}

func (r *memoryReader) Metadata() *dataset.Metadata { return r.meta }

func (r *memoryReader) Next() (*dataset.Feature, error) {
	if r.failAt > 0 && r.next == r.failAt {
		return nil, errors.New("corrupt record")
	}
	if r.next >= len(r.features) {
		return nil, io.EOF
	}
	f := r.features[r.next]
	r.next++
	return f, nil
}

func (r *memoryReader) Close() error {
	r.closed = true
	return nil
}

// memoryWriter records written features
type memoryWriter struct {
	written  []*dataset.Feature
	closed   bool
	closeErr error
}

func (w *memoryWriter) Write(f *dataset.Feature) error {
	w.written = append(w.written, f)
	return nil
}

func (w *memoryWriter) Close() error {
	w.closed = true
	return w.closeErr
}

// memoryOpener counts how often datasets are opened
type memoryOpener struct {
	reader  *memoryReader
	writer  *memoryWriter
	opened  int
	created int
}

func (o *memoryOpener) Open(path string) (dataset.Reader, error) {
	o.opened++
	return o.reader, nil
}

func (o *memoryOpener) Create(path string, meta *dataset.Metadata) (dataset.Writer, error) {
	o.created++
	return o.writer, nil
}

func newMemoryOpener(meta *dataset.Metadata, features ...*dataset.Feature) *memoryOpener {
	if meta == nil {
		meta = &dataset.Metadata{Driver: dataset.DriverGeoJSON}
	}
	return &memoryOpener{
		reader: &memoryReader{meta: meta, features: features},
		writer: &memoryWriter{},
	}
}

func TestNewRejectsNilTransform(t *testing.T) {
	_, err := New(nil)
	require.ErrorIs(t, err, ErrInvalidTransform)

	opener := newMemoryOpener(nil)
	err = CorrectWithTransform("in.geojson", "out/out.geojson", nil, WithOpener(opener))
	require.ErrorIs(t, err, ErrInvalidTransform)
	require.Zero(t, opener.opened)
	require.Zero(t, opener.created)
}

func TestCorrectRejectsUnknownKind(t *testing.T) {
	opener := newMemoryOpener(nil)
	err := Correct("in.geojson", "out/out.geojson", "wgs", WithOpener(opener))
	require.ErrorIs(t, err, datum.ErrUnsupportedKind)
	require.Zero(t, opener.opened)
}

func TestRunSkipsNullGeometry(t *testing.T) {
	opener := newMemoryOpener(nil,
		&dataset.Feature{Index: 0, Geometry: geom.Point{116.404, 39.915}, Attributes: map[string]interface{}{"name": "a"}},
		&dataset.Feature{Index: 1, Attributes: map[string]interface{}{"name": "b"}},
		&dataset.Feature{Index: 2, Geometry: geom.SinglePart{{116.0, 39.0, 50}, {116.1, 39.1, 60}}},
	)

	p, err := New(datum.GCJ02ToWGS84Func, WithOpener(opener), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	summary, err := p.Run("in.geojson", filepath.Join(t.TempDir(), "out.geojson"))
	require.NoError(t, err)
	require.Equal(t, 3, summary.Read)
	require.Equal(t, 2, summary.Written)
	require.Equal(t, 1, summary.SkippedNull)
	require.Equal(t, 3, summary.Coordinates)
	require.False(t, summary.Projected)

	written := opener.writer.written
	require.Len(t, written, 2)
	require.Equal(t, "a", written[0].Attributes["name"])

	point := written[0].Geometry.(geom.Point)
	require.InDelta(t, 116.39775550083061, point[0], 1e-9)
	require.InDelta(t, 39.91359571849836, point[1], 1e-9)

	line := written[1].Geometry.(geom.SinglePart)
	require.Equal(t, 50.0, line[0][2])
	require.Equal(t, 60.0, line[1][2])

	// the source feature keeps its original coordinates
	require.Equal(t, geom.Point{116.404, 39.915}, opener.reader.features[0].Geometry)

	require.True(t, opener.reader.closed)
	require.True(t, opener.writer.closed)
	require.InDelta(t, point[0], summary.Extent.Max[0], 1e-9)
}

func TestRunWarnsOnProjectedInput(t *testing.T) {
	meta := &dataset.Metadata{
		Driver: dataset.DriverGeoJSON,
		CRS:    dataset.ParseCRSName("EPSG:3857"),
	}
	opener := newMemoryOpener(meta, &dataset.Feature{Geometry: geom.Point{1, 2}})

	var buf bytes.Buffer
	p, err := New(datum.GCJ02ToWGS84Func, WithOpener(opener), WithLogger(zerolog.New(&buf)))
	require.NoError(t, err)

	summary, err := p.Run("in.geojson", filepath.Join(t.TempDir(), "out.geojson"))
	require.NoError(t, err)
	require.True(t, summary.Projected)
	require.Equal(t, 1, summary.Written)
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), "EPSG:3857")
}

func TestRunFailureKeepsPartialOutputAndCloses(t *testing.T) {
	opener := newMemoryOpener(nil,
		&dataset.Feature{Index: 0, Geometry: geom.Point{1, 2}},
		&dataset.Feature{Index: 1, Geometry: geom.Point{3, 4}},
	)
	opener.reader.failAt = 1
	opener.writer.closeErr = errors.New("disk full")

	p, err := New(datum.GCJ02ToWGS84Func, WithOpener(opener), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	summary, err := p.Run("in.geojson", filepath.Join(t.TempDir(), "out.geojson"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "corrupt record")
	require.Contains(t, err.Error(), "disk full")
	require.Equal(t, 1, summary.Written)
	require.Len(t, opener.writer.written, 1)
	require.True(t, opener.reader.closed)
	require.True(t, opener.writer.closed)
}

func TestRunReportsCloseError(t *testing.T) {
	opener := newMemoryOpener(nil, &dataset.Feature{Geometry: geom.Point{1, 2}})
	opener.writer.closeErr = errors.New("disk full")

	p, err := New(datum.GCJ02ToWGS84Func, WithOpener(opener), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	_, err = p.Run("in.geojson", filepath.Join(t.TempDir(), "out.geojson"))
	require.EqualError(t, err, "disk full")
}

func TestRunMalformedGeometry(t *testing.T) {
	opener := newMemoryOpener(nil, &dataset.Feature{Geometry: geom.SinglePart{{1}}})

	p, err := New(datum.GCJ02ToWGS84Func, WithOpener(opener), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	_, err = p.Run("in.geojson", filepath.Join(t.TempDir(), "out.geojson"))
	require.ErrorIs(t, err, geom.ErrUnrecognizedShape)
}

func TestRunContextCancelled(t *testing.T) {
	opener := newMemoryOpener(nil, &dataset.Feature{Geometry: geom.Point{1, 2}})
	p, err := New(datum.GCJ02ToWGS84Func, WithOpener(opener), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.RunContext(ctx, "in.geojson", filepath.Join(t.TempDir(), "out.geojson"))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, opener.writer.written)
}

// writePointShapefile writes two named points with an attribute table
func writePointShapefile(t *testing.T, path string) {
	t.Helper()

	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 16), shp.NumberField("RANK", 4)}))
	for i, name := range []string{"tiananmen", "gate"} {
		row := w.Write(&shp.Point{X: 116.404, Y: 39.915})
		require.NoError(t, w.WriteAttribute(int(row), 0, name))
		require.NoError(t, w.WriteAttribute(int(row), 1, i+1))
	}
	w.Close()

	// go-shp v0.1.1 names the table <base>dbf
	base := path[:len(path)-len(".shp")]
	require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
}

func TestCorrectShapefile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "poi.shp")
	output := filepath.Join(dir, "nested", "out", "poi.shp")
	writePointShapefile(t, input)

	err := Correct(input, output, "bd", WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "nested", "out", "poi.dbf"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "nested", "out", "poidbf"))
	require.True(t, os.IsNotExist(err))

	out, err := shp.Open(output)
	require.NoError(t, err)
	defer out.Close()

	fields := out.Fields()
	require.Len(t, fields, 2)
	require.Equal(t, "NAME", fields[0].String())
	require.Equal(t, "RANK", fields[1].String())

	var names, ranks []string
	for out.Next() {
		n, shape := out.Shape()
		p := shape.(*shp.Point)
		require.InDelta(t, 116.3913836995125, p.X, 1e-9)
		require.InDelta(t, 39.907253214522164, p.Y, 1e-9)
		names = append(names, out.ReadAttribute(n, 0))
		ranks = append(ranks, out.ReadAttribute(n, 1))
	}
	require.Equal(t, []string{"tiananmen", "gate"}, names)
	require.Equal(t, []string{"1", "2"}, ranks)
}

func TestCorrectRejectsSameDataset(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "poi.shp")
	writePointShapefile(t, input)

	before, err := os.ReadFile(input)
	require.NoError(t, err)

	err = Correct(input, input, "gd", WithLogger(zerolog.Nop()))
	require.ErrorIs(t, err, ErrSameDataset)

	err = Correct(input, filepath.Join(dir, ".", "poi.shp"), "gd", WithLogger(zerolog.Nop()))
	require.ErrorIs(t, err, ErrSameDataset)

	after, err := os.ReadFile(input)
	require.NoError(t, err)
	require.Equal(t, before, after)

	r, err := dataset.DefaultOpener.Open(input)
	require.NoError(t, err)
	defer r.Close()
	var count int
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		count++
	}
	require.Equal(t, 2, count)
}

func TestCorrectGeoJSON(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "poi.geojson")
	output := filepath.Join(dir, "poi.wgs84.geojson")
	require.NoError(t, os.WriteFile(input, []byte(`{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":{"type":"Point","coordinates":[116.404,39.915]},"properties":{"name":"tiananmen"}},
		{"type":"Feature","geometry":null,"properties":{"name":"nowhere"}}
	]}`), 0644))

	p, err := New(datum.GCJ02ToWGS84Func, WithOptions(dataset.Options{Overwrite: true}), WithLogger(zerolog.Nop()))
	require.NoError(t, err)

	summary, err := p.Run(input, output)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Written)
	require.Equal(t, 1, summary.SkippedNull)

	r, err := dataset.DefaultOpener.Open(output)
	require.NoError(t, err)
	defer r.Close()

	f, err := r.Next()
	require.NoError(t, err)
	point := f.Geometry.(geom.Point)
	require.InDelta(t, 116.39775550083061, point[0], 1e-9)
	require.InDelta(t, 39.91359571849836, point[1], 1e-9)
	require.False(t, math.IsNaN(point[0]))
	require.Equal(t, "tiananmen", f.Attributes["name"])

	_, err = r.Next()
	require.ErrorIs(t, err, io.EOF)
}
