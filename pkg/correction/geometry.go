// pkg/correction/geometry.go - Correction of single WKT geometries
package correction

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/valpere/wgs_correction/pkg/datum"
	"github.com/valpere/wgs_correction/pkg/geom"
)

// CorrectGeometry applies fn to every coordinate of g and returns a geometry
// of the same type
func CorrectGeometry(g orb.Geometry, fn datum.Func) (orb.Geometry, error) {
	if fn == nil {
		return nil, ErrInvalidTransform
	}
	return geom.RewriteOrb(g, fn)
}

// CorrectWKT parses a WKT geometry, corrects it with fn and formats the result
// as WKT again
func CorrectWKT(text string, fn datum.Func) (string, error) {
	g, err := wkt.Unmarshal(text)
	if err != nil {
		return "", fmt.Errorf("invalid geometry %q: %w", text, err)
	}
	corrected, err := CorrectGeometry(g, fn)
	if err != nil {
		return "", err
	}
	return wkt.MarshalString(corrected), nil
}
