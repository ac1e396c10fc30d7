// internal/dataset/crs.go - Coordinate reference system labels
package dataset

import (
	"strconv"
	"strings"
)

// geographic EPSG codes commonly attached to lon/lat data
var geographicCodes = map[int]bool{
	4326: true, // WGS 84
	4490: true, // CGCS2000
	4214: true, // Beijing 1954
	4610: true, // Xian 1980
	4555: true, // New Beijing
	4258: true, // ETRS89
	4269: true, // NAD83
}

// ParseWKT builds a CRS from the contents of a .prj file. Both WKT1 and WKT2
// roots are recognized.
func ParseWKT(wkt string) CRS {
	wkt = strings.TrimSpace(strings.TrimPrefix(wkt, "\ufeff"))
	crs := CRS{WKT: wkt}
	if wkt == "" {
		return crs
	}

	root := wkt
	if i := strings.IndexAny(root, "[("); i >= 0 {
		root = root[:i]
	}
	switch strings.ToUpper(strings.TrimSpace(root)) {
	case "PROJCS", "PROJCRS", "PROJECTEDCRS":
		crs.Projected = true
	}

	if start := strings.IndexByte(wkt, '"'); start >= 0 {
		if end := strings.IndexByte(wkt[start+1:], '"'); end >= 0 {
			crs.Name = wkt[start+1 : start+1+end]
		}
	}
	return crs
}

// ParseCRSName builds a CRS from a legacy GeoJSON crs name such as
// "EPSG:4326", "urn:ogc:def:crs:EPSG::3857" or "urn:ogc:def:crs:OGC:1.3:CRS84".
// Only codes known to be geographic are treated as lon/lat.
func ParseCRSName(name string) CRS {
	crs := CRS{Name: name}
	if name == "" {
		return crs
	}

	upper := strings.ToUpper(name)
	if strings.HasSuffix(upper, "CRS84") || strings.HasSuffix(upper, "CRS:84") {
		return crs
	}

	code, ok := trailingCode(upper)
	crs.Projected = !ok || !geographicCodes[code]
	return crs
}

// trailingCode extracts the number after the last ':' or '/'
func trailingCode(name string) (int, bool) {
	i := strings.LastIndexAny(name, ":/")
	code, err := strconv.Atoi(name[i+1:])
	if err != nil {
		return 0, false
	}
	return code, true
}
