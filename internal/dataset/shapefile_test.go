// internal/dataset/shapefile_test.go - Tests for the ESRI Shapefile driver
package dataset

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/simplifiedchinese"

	"github.com/valpere/wgs_correction/pkg/geom"
)

const wgs84WKT = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]]`

const mercatorWKT = `PROJCS["WGS_1984_Web_Mercator_Auxiliary_Sphere",GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137.0,298.257223563]]],PROJECTION["Mercator_Auxiliary_Sphere"],UNIT["Meter",1.0]]`

// shiftBy returns a transform adding fixed offsets
func shiftBy(dx, dy float64) func(xs, ys []float64) ([]float64, []float64) {
	return func(xs, ys []float64) ([]float64, []float64) {
		outX := make([]float64, len(xs))
		outY := make([]float64, len(ys))
		for i := range xs {
			outX[i] = xs[i] + dx
			outY[i] = ys[i] + dy
		}
		return outX, outY
	}
}

func trimValue(s string) string {
	return strings.Trim(s, " \x00")
}

// writePolygonZFixture creates a two-record PolygonZ shapefile with a .prj
func writePolygonZFixture(t *testing.T, path string) {
	t.Helper()

	w, err := shp.Create(path, shp.POLYGONZ)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("NAME", 20),
		shp.NumberField("POP", 10),
	}))

	outer := []shp.Point{{X: 116.0, Y: 39.0}, {X: 117.0, Y: 39.0}, {X: 117.0, Y: 40.0}, {X: 116.0, Y: 39.0}}
	hole := []shp.Point{{X: 116.4, Y: 39.4}, {X: 116.6, Y: 39.4}, {X: 116.6, Y: 39.6}, {X: 116.4, Y: 39.4}}
	points := append(append([]shp.Point{}, outer...), hole...)
	z := []float64{10, 20, 30, 10, 5, 6, 7, 5}
	m := make([]float64, len(points))

	row := w.Write(&shp.PolygonZ{
		Box:       shp.BBoxFromPoints(points),
		NumParts:  2,
		NumPoints: int32(len(points)),
		Parts:     []int32{0, 4},
		Points:    points,
		ZRange:    [2]float64{5, 30},
		ZArray:    z,
		MRange:    [2]float64{0, 0},
		MArray:    m,
	})
	require.NoError(t, w.WriteAttribute(int(row), 0, "Beijing"))
	require.NoError(t, w.WriteAttribute(int(row), 1, "21540000"))

	single := []shp.Point{{X: 121.4, Y: 31.2}, {X: 121.5, Y: 31.2}, {X: 121.5, Y: 31.3}, {X: 121.4, Y: 31.2}}
	row = w.Write(&shp.PolygonZ{
		Box:       shp.BBoxFromPoints(single),
		NumParts:  1,
		NumPoints: 4,
		Parts:     []int32{0},
		Points:    single,
		ZRange:    [2]float64{1, 1},
		ZArray:    []float64{1, 1, 1, 1},
		MArray:    []float64{0, 0, 0, 0},
	})
	require.NoError(t, w.WriteAttribute(int(row), 0, "Shanghai"))
	require.NoError(t, w.WriteAttribute(int(row), 1, "24870000"))
	w.Close()
	require.NoError(t, moveAttributeTable(path))

	require.NoError(t, os.WriteFile(strings.TrimSuffix(path, ".shp")+".prj", []byte(wgs84WKT), 0644))
}

func readAll(t *testing.T, r Reader) []*Feature {
	t.Helper()
	var features []*Feature
	for {
		f, err := r.Next()
		if errors.Is(err, io.EOF) {
			return features
		}
		require.NoError(t, err)
		features = append(features, f)
	}
}

func TestShapefileRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cities.shp")
	writePolygonZFixture(t, path)

	r, err := NewOpener(Options{}).Open(path)
	require.NoError(t, err)
	defer r.Close()

	meta := r.Metadata()
	require.Equal(t, DriverShapefile, meta.Driver)
	require.Equal(t, "PolygonZ", meta.Schema.GeometryType)
	require.Len(t, meta.Schema.Fields, 2)
	require.Equal(t, "NAME", meta.Schema.Fields[0].Name)
	require.Equal(t, "C", meta.Schema.Fields[0].Type)
	require.False(t, meta.CRS.Projected)
	require.Equal(t, "GCS_WGS_1984", meta.CRS.Name)
	require.Equal(t, "utf-8", meta.Options["encoding"])

	features := readAll(t, r)
	require.Len(t, features, 2)

	first := features[0]
	require.Equal(t, "Beijing", first.Attributes["NAME"])
	require.Equal(t, "21540000", first.Attributes["POP"])

	multi, ok := first.Geometry.(geom.MultiPart)
	require.True(t, ok)
	require.Len(t, multi, 2)
	hole := multi[1].(geom.SinglePart)
	require.Len(t, hole, 4)
	require.Equal(t, geom.Coordinate{116.4, 39.4, 5, 0}, hole[0])
}

func TestShapefileRoundTripPreservesZAndAttributes(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "in", "cities.shp")
	require.NoError(t, os.MkdirAll(filepath.Dir(input), 0755))
	writePolygonZFixture(t, input)
	output := filepath.Join(dir, "out", "cities.shp")

	opener := NewOpener(Options{Overwrite: true})
	r, err := opener.Open(input)
	require.NoError(t, err)
	defer r.Close()

	w, err := opener.Create(output, r.Metadata())
	require.NoError(t, err)
	for _, f := range readAll(t, r) {
		shifted, err := geom.Rewrite(f.Geometry, shiftBy(1, -1))
		require.NoError(t, err)
		require.NoError(t, w.Write(f.WithGeometry(shifted)))
	}
	require.NoError(t, w.Close())

	prj, err := os.ReadFile(filepath.Join(dir, "out", "cities.prj"))
	require.NoError(t, err)
	require.Equal(t, wgs84WKT, string(prj))

	out, err := shp.Open(output)
	require.NoError(t, err)
	defer out.Close()
	require.Equal(t, shp.ShapeType(shp.POLYGONZ), out.GeometryType)

	var rows int
	for out.Next() {
		n, shape := out.Shape()
		polygon, ok := shape.(*shp.PolygonZ)
		require.True(t, ok)
		if n == 0 {
			require.Equal(t, []int32{0, 4}, polygon.Parts)
			require.Equal(t, 117.0, polygon.Points[0].X)
			require.Equal(t, 38.0, polygon.Points[0].Y)
			require.Equal(t, []float64{10, 20, 30, 10, 5, 6, 7, 5}, polygon.ZArray)
			require.Equal(t, 117.0, polygon.Box.MinX)
			require.Equal(t, 41.0-2.0, polygon.Box.MaxY)
			require.Equal(t, "Beijing", trimValue(out.ReadAttribute(n, 0)))
		} else {
			require.Equal(t, "Shanghai", trimValue(out.ReadAttribute(n, 0)))
			require.Equal(t, "24870000", trimValue(out.ReadAttribute(n, 1)))
		}
		rows++
	}
	require.Equal(t, 2, rows)
}

func TestShapefileProjectedCRS(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mercator.shp")
	writePolygonZFixture(t, path)
	require.NoError(t, os.WriteFile(strings.TrimSuffix(path, ".shp")+".prj", []byte(mercatorWKT), 0644))

	r, err := NewOpener(Options{}).Open(path)
	require.NoError(t, err)
	defer r.Close()

	require.True(t, r.Metadata().CRS.Projected)
	require.Equal(t, "WGS_1984_Web_Mercator_Auxiliary_Sphere", r.Metadata().CRS.Name)
}

func TestShapefileLegacyEncoding(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "gbk.shp")
	output := filepath.Join(dir, "out", "gbk.shp")

	gbkName, err := simplifiedchinese.GBK.NewEncoder().String("北京")
	require.NoError(t, err)

	w, err := shp.Create(input, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 20)}))
	row := w.Write(&shp.Point{X: 116.404, Y: 39.915})
	require.NoError(t, w.WriteAttribute(int(row), 0, gbkName))
	w.Close()
	require.NoError(t, moveAttributeTable(input))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gbk.cpg"), []byte("GBK"), 0644))

	opener := NewOpener(Options{Overwrite: true})
	r, err := opener.Open(input)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, "gbk", r.Metadata().Options["encoding"])

	features := readAll(t, r)
	require.Len(t, features, 1)
	require.Equal(t, "北京", features[0].Attributes["NAME"])
	require.Equal(t, geom.Point{116.404, 39.915}, features[0].Geometry)

	cw, err := opener.Create(output, r.Metadata())
	require.NoError(t, err)
	require.NoError(t, cw.Write(features[0]))
	require.NoError(t, cw.Close())

	cpg, err := os.ReadFile(filepath.Join(dir, "out", "gbk.cpg"))
	require.NoError(t, err)
	require.Equal(t, "GBK", string(cpg))

	out, err := shp.Open(output)
	require.NoError(t, err)
	defer out.Close()
	require.True(t, out.Next())
	n, _ := out.Shape()
	require.Equal(t, gbkName, trimValue(out.ReadAttribute(n, 0)))
}

func TestShapefileFallbackEncoding(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "nocpg.shp")

	gbkName, err := simplifiedchinese.GBK.NewEncoder().String("上海")
	require.NoError(t, err)

	w, err := shp.Create(input, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("NAME", 20)}))
	row := w.Write(&shp.Point{X: 121.47, Y: 31.23})
	require.NoError(t, w.WriteAttribute(int(row), 0, gbkName))
	w.Close()
	require.NoError(t, moveAttributeTable(input))

	r, err := NewOpener(Options{Encoding: "CP936"}).Open(input)
	require.NoError(t, err)
	defer r.Close()

	features := readAll(t, r)
	require.Len(t, features, 1)
	require.Equal(t, "上海", features[0].Attributes["NAME"])
}

func TestShapeTreeConversion(t *testing.T) {
	tests := []struct {
		name  string
		shape shp.Shape
		typ   shp.ShapeType
		want  geom.Tree
	}{
		{
			name:  "point",
			shape: &shp.Point{X: 1, Y: 2},
			typ:   shp.POINT,
			want:  geom.Point{1, 2},
		},
		{
			name:  "point z",
			shape: &shp.PointZ{X: 1, Y: 2, Z: 3, M: 4},
			typ:   shp.POINTZ,
			want:  geom.Point{1, 2, 3, 4},
		},
		{
			name:  "point m",
			shape: &shp.PointM{X: 1, Y: 2, M: 9},
			typ:   shp.POINTM,
			want:  geom.Point{1, 2, 9},
		},
		{
			name: "multipoint",
			shape: &shp.MultiPoint{
				Box:       shp.Box{MinX: 1, MinY: 2, MaxX: 3, MaxY: 4},
				NumPoints: 2,
				Points:    []shp.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
			},
			typ:  shp.MULTIPOINT,
			want: geom.SinglePart{{1, 2}, {3, 4}},
		},
		{
			name: "polyline",
			shape: &shp.PolyLine{
				Box:       shp.Box{MinX: 0, MinY: 0, MaxX: 5, MaxY: 5},
				NumParts:  2,
				NumPoints: 5,
				Parts:     []int32{0, 2},
				Points:    []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}, {X: 3, Y: 3}, {X: 4, Y: 4}, {X: 5, Y: 5}},
			},
			typ:  shp.POLYLINE,
			want: geom.MultiPart{geom.SinglePart{{0, 0}, {1, 1}}, geom.SinglePart{{3, 3}, {4, 4}, {5, 5}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := shapeToTree(tt.shape)
			require.NoError(t, err)
			require.Equal(t, tt.want, tree)

			rebuilt, err := treeToShape(tree, tt.typ, tt.shape)
			require.NoError(t, err)
			require.Equal(t, tt.shape, rebuilt)
		})
	}
}

func TestShapeTreeInvalid(t *testing.T) {
	_, err := shapeToTree(&shp.PolyLine{
		NumParts:  2,
		NumPoints: 2,
		Parts:     []int32{0, 5},
		Points:    []shp.Point{{X: 0, Y: 0}, {X: 1, Y: 1}},
	})
	require.ErrorIs(t, err, geom.ErrUnrecognizedShape)

	_, err = treeToShape(geom.SinglePart{{1, 2}}, shp.POINT, nil)
	require.ErrorIs(t, err, geom.ErrUnrecognizedShape)

	tree, err := shapeToTree(&shp.Null{})
	require.NoError(t, err)
	require.Nil(t, tree)
}
