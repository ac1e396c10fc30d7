// internal/dataset/types_test.go - Tests for driver selection, encodings and CRS labels
package dataset

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/valpere/wgs_correction/internal"
	"github.com/valpere/wgs_correction/pkg/geom"
)

func TestDriverFor(t *testing.T) {
	tests := []struct {
		path    string
		want    Driver
		wantErr bool
	}{
		{"roads.shp", DriverShapefile, false},
		{"/data/ROADS.SHP", DriverShapefile, false},
		{"roads.geojson", DriverGeoJSON, false},
		{"roads.json", DriverGeoJSON, false},
		{"roads.geojson.gz", DriverGeoJSON, false},
		{"roads.shp.gz", "", true},
		{"roads.gpkg", "", true},
		{"roads", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := DriverFor(tt.path)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedDriver)
				require.False(t, IsDataset(tt.path))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.True(t, IsDataset(tt.path))
		})
	}
}

func TestCreateDriverMismatch(t *testing.T) {
	dir := t.TempDir()
	meta := &Metadata{Driver: DriverShapefile}

	_, err := DefaultOpener.Create(filepath.Join(dir, "out.geojson"), meta)
	require.ErrorIs(t, err, ErrDriverMismatch)

	var coded *internal.Error
	require.True(t, errors.As(err, &coded))
	require.Equal(t, internal.ErrorCodeValidation, coded.Code)

	_, err = DefaultOpener.Create(filepath.Join(dir, "out.geojson"), nil)
	require.Error(t, err)
}

func TestCreateFromSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.shp")
	meta := &Metadata{
		Driver: DriverShapefile,
		Schema: Schema{
			GeometryType: "Point",
			Fields:       []Field{{Name: "NAME", Type: "C", Size: 16}},
		},
		CRS: ParseWKT(wgs84WKT),
	}

	w, err := DefaultOpener.Create(path, meta)
	require.NoError(t, err)
	require.NoError(t, w.Write(&Feature{
		Geometry:   geom.Point{1, 2},
		Attributes: map[string]interface{}{"NAME": "a"},
	}))
	require.NoError(t, w.Close())

	r, err := DefaultOpener.Open(path)
	require.NoError(t, err)
	defer r.Close()
	require.Equal(t, "GCS_WGS_1984", r.Metadata().CRS.Name)

	features := readAll(t, r)
	require.Len(t, features, 1)
	require.Equal(t, "a", features[0].Attributes["NAME"])
}

func TestLookupEncoding(t *testing.T) {
	tests := []struct {
		label string
		want  string
		utf8  bool
	}{
		{"UTF-8", "utf-8", true},
		{"utf8", "utf-8", true},
		{"65001", "utf-8", true},
		{"GBK", "gbk", false},
		{"CP936", "gbk", false},
		{"936", "gbk", false},
		{"GB18030", "gb18030", false},
		{"Big5", "big5", false},
		{"ANSI 1252", "windows-1252", false},
		{"1251", "windows-1251", false},
		{"Shift_JIS", "shift_jis", false},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			codec, err := LookupEncoding(tt.label)
			require.NoError(t, err)
			require.Equal(t, tt.want, codec.Name())
			require.Equal(t, tt.utf8, codec.IsUTF8())
		})
	}

	_, err := LookupEncoding("klingon")
	require.Error(t, err)
	_, err = LookupEncoding("  ")
	require.Error(t, err)
}

func TestCodecRoundTrip(t *testing.T) {
	codec, err := LookupEncoding("GBK")
	require.NoError(t, err)

	encoded, err := codec.Encode("测试")
	require.NoError(t, err)
	require.NotEqual(t, "测试", encoded)

	decoded, err := codec.Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, "测试", decoded)
}

func TestParseWKT(t *testing.T) {
	tests := []struct {
		name      string
		wkt       string
		crsName   string
		projected bool
	}{
		{"empty", "", "", false},
		{"geographic", wgs84WKT, "GCS_WGS_1984", false},
		{"projected", mercatorWKT, "WGS_1984_Web_Mercator_Auxiliary_Sphere", true},
		{"bom", "\ufeff" + wgs84WKT + "\n", "GCS_WGS_1984", false},
		{"wkt2 geographic", `GEOGCRS["WGS 84",DATUM["World Geodetic System 1984"]]`, "WGS 84", false},
		{"wkt2 projected", `PROJCRS["CGCS2000 / 3-degree Gauss-Kruger CM 117E",BASEGEOGCRS["China Geodetic Coordinate System 2000"]]`, "CGCS2000 / 3-degree Gauss-Kruger CM 117E", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			crs := ParseWKT(tt.wkt)
			require.Equal(t, tt.crsName, crs.Name)
			require.Equal(t, tt.projected, crs.Projected)
		})
	}
}

func TestParseCRSName(t *testing.T) {
	tests := []struct {
		name      string
		projected bool
	}{
		{"", false},
		{"EPSG:4326", false},
		{"EPSG:4490", false},
		{"urn:ogc:def:crs:OGC:1.3:CRS84", false},
		{"urn:ogc:def:crs:EPSG::4326", false},
		{"http://www.opengis.net/def/crs/EPSG/0/4326", false},
		{"EPSG:3857", true},
		{"urn:ogc:def:crs:EPSG::32650", true},
		{"local", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.projected, ParseCRSName(tt.name).Projected)
		})
	}
}
