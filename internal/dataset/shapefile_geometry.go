// internal/dataset/shapefile_geometry.go - Shape and coordinate tree conversion
package dataset

import (
	"fmt"
	"math"

	"github.com/jonas-p/go-shp"

	"github.com/valpere/wgs_correction/pkg/geom"
)

var shapeTypeNames = map[shp.ShapeType]string{
	shp.NULL:        "Null",
	shp.POINT:       "Point",
	shp.POLYLINE:    "PolyLine",
	shp.POLYGON:     "Polygon",
	shp.MULTIPOINT:  "MultiPoint",
	shp.POINTZ:      "PointZ",
	shp.POLYLINEZ:   "PolyLineZ",
	shp.POLYGONZ:    "PolygonZ",
	shp.MULTIPOINTZ: "MultiPointZ",
	shp.POINTM:      "PointM",
	shp.POLYLINEM:   "PolyLineM",
	shp.POLYGONM:    "PolygonM",
	shp.MULTIPOINTM: "MultiPointM",
	shp.MULTIPATCH:  "MultiPatch",
}

// multipatch ring part type
const partTypeRing int32 = 5

func shapeTypeName(t shp.ShapeType) string {
	if name, ok := shapeTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ShapeType(%d)", int32(t))
}

func parseShapeType(name string) (shp.ShapeType, bool) {
	for t, n := range shapeTypeNames {
		if n == name && t != shp.NULL {
			return t, true
		}
	}
	return 0, false
}

// shapeToTree converts a shape into a coordinate tree. Z and M values become
// ordinates 2 and 3 (or 2 alone for measured types).
func shapeToTree(s shp.Shape) (geom.Tree, error) {
	switch s := s.(type) {
	case nil, *shp.Null:
		return nil, nil
	case *shp.Point:
		return geom.Point{s.X, s.Y}, nil
	case *shp.PointZ:
		return geom.Point{s.X, s.Y, s.Z, s.M}, nil
	case *shp.PointM:
		return geom.Point{s.X, s.Y, s.M}, nil
	case *shp.MultiPoint:
		return pointsToPart(s.Points, 0), nil
	case *shp.MultiPointZ:
		return pointsToPart(s.Points, 0, ordinates(len(s.Points), s.ZArray, s.MArray)...), nil
	case *shp.MultiPointM:
		return pointsToPart(s.Points, 0, ordinates(len(s.Points), s.MArray)...), nil
	case *shp.PolyLine:
		return partsToTree(s.Points, s.Parts)
	case *shp.Polygon:
		return partsToTree(s.Points, s.Parts)
	case *shp.PolyLineZ:
		return partsToTree(s.Points, s.Parts, ordinates(len(s.Points), s.ZArray, s.MArray)...)
	case *shp.PolygonZ:
		return partsToTree(s.Points, s.Parts, ordinates(len(s.Points), s.ZArray, s.MArray)...)
	case *shp.PolyLineM:
		return partsToTree(s.Points, s.Parts, ordinates(len(s.Points), s.MArray)...)
	case *shp.PolygonM:
		return partsToTree(s.Points, s.Parts, ordinates(len(s.Points), s.MArray)...)
	case *shp.MultiPatch:
		return partsToTree(s.Points, s.Parts, ordinates(len(s.Points), s.ZArray, s.MArray)...)
	default:
		return nil, fmt.Errorf("%w: shape %T", geom.ErrUnrecognizedShape, s)
	}
}

// ordinates keeps the leading arrays that hold one value per point
func ordinates(n int, arrays ...[]float64) [][]float64 {
	var out [][]float64
	for _, a := range arrays {
		if len(a) != n {
			break
		}
		out = append(out, a)
	}
	return out
}

func pointsToPart(points []shp.Point, offset int, extra ...[]float64) geom.SinglePart {
	part := make(geom.SinglePart, len(points))
	for i, p := range points {
		c := make(geom.Coordinate, 2, 2+len(extra))
		c[0], c[1] = p.X, p.Y
		for _, values := range extra {
			c = append(c, values[offset+i])
		}
		part[i] = c
	}
	return part
}

func partsToTree(points []shp.Point, parts []int32, extra ...[]float64) (geom.Tree, error) {
	result := make(geom.MultiPart, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			return nil, fmt.Errorf("%w: part %d spans [%d, %d) of %d points",
				geom.ErrUnrecognizedShape, i, start, end, len(points))
		}
		result[i] = pointsToPart(points[start:end], int(start), extra...)
	}
	return result, nil
}

// treeToShape rebuilds a shape of type t. Only multipatches need the source
// shape, for their part types.
func treeToShape(tree geom.Tree, t shp.ShapeType, template shp.Shape) (shp.Shape, error) {
	switch t {
	case shp.POINT, shp.POINTZ, shp.POINTM:
		p, ok := tree.(geom.Point)
		if !ok || len(p) < 2 {
			return nil, mismatch(tree, t)
		}
		switch t {
		case shp.POINTZ:
			return &shp.PointZ{X: p[0], Y: p[1], Z: ordinate(p, 2), M: ordinate(p, 3)}, nil
		case shp.POINTM:
			return &shp.PointM{X: p[0], Y: p[1], M: ordinate(p, 2)}, nil
		default:
			return &shp.Point{X: p[0], Y: p[1]}, nil
		}

	case shp.MULTIPOINT, shp.MULTIPOINTZ, shp.MULTIPOINTM:
		part, ok := tree.(geom.SinglePart)
		if !ok {
			return nil, mismatch(tree, t)
		}
		c, err := buildColumns([]geom.SinglePart{part}, t)
		if err != nil {
			return nil, err
		}
		switch t {
		case shp.MULTIPOINTZ:
			return &shp.MultiPointZ{
				Box: c.box(), NumPoints: c.numPoints(), Points: c.points,
				ZRange: valueRange(c.z), ZArray: c.z,
				MRange: valueRange(c.m), MArray: c.m,
			}, nil
		case shp.MULTIPOINTM:
			return &shp.MultiPointM{
				Box: c.box(), NumPoints: c.numPoints(), Points: c.points,
				MRange: valueRange(c.m), MArray: c.m,
			}, nil
		default:
			return &shp.MultiPoint{Box: c.box(), NumPoints: c.numPoints(), Points: c.points}, nil
		}

	case shp.POLYLINE, shp.POLYGON, shp.POLYLINEZ, shp.POLYGONZ,
		shp.POLYLINEM, shp.POLYGONM, shp.MULTIPATCH:
		multi, ok := tree.(geom.MultiPart)
		if !ok {
			return nil, mismatch(tree, t)
		}
		parts := make([]geom.SinglePart, len(multi))
		for i, member := range multi {
			part, ok := member.(geom.SinglePart)
			if !ok {
				return nil, mismatch(tree, t)
			}
			parts[i] = part
		}
		c, err := buildColumns(parts, t)
		if err != nil {
			return nil, err
		}
		return c.polyShape(t, template), nil

	default:
		return nil, fmt.Errorf("%w: cannot write shape type %s", geom.ErrUnrecognizedShape, shapeTypeName(t))
	}
}

// columns are the flattened arrays of a shape record
type columns struct {
	points []shp.Point
	parts  []int32
	z      []float64
	m      []float64
}

func buildColumns(parts []geom.SinglePart, t shp.ShapeType) (*columns, error) {
	hasZ := t == shp.POINTZ || t == shp.MULTIPOINTZ || t == shp.POLYLINEZ || t == shp.POLYGONZ || t == shp.MULTIPATCH
	hasM := hasZ || t == shp.POINTM || t == shp.MULTIPOINTM || t == shp.POLYLINEM || t == shp.POLYGONM
	mIndex := 2
	if hasZ {
		mIndex = 3
	}

	n := 0
	for _, part := range parts {
		n += len(part)
	}

	c := &columns{
		points: make([]shp.Point, 0, n),
		parts:  make([]int32, len(parts)),
	}
	if hasZ {
		c.z = make([]float64, 0, n)
	}
	if hasM {
		c.m = make([]float64, 0, n)
	}

	for i, part := range parts {
		c.parts[i] = int32(len(c.points))
		for _, coord := range part {
			if len(coord) < 2 {
				return nil, fmt.Errorf("%w: coordinate has %d ordinates", geom.ErrUnrecognizedShape, len(coord))
			}
			c.points = append(c.points, shp.Point{X: coord[0], Y: coord[1]})
			if hasZ {
				c.z = append(c.z, ordinate(coord, 2))
			}
			if hasM {
				c.m = append(c.m, ordinate(coord, mIndex))
			}
		}
	}
	return c, nil
}

func (c *columns) box() shp.Box {
	return shp.BBoxFromPoints(c.points)
}

func (c *columns) numPoints() int32 {
	return int32(len(c.points))
}

func (c *columns) polyShape(t shp.ShapeType, template shp.Shape) shp.Shape {
	box := c.box()
	numParts := int32(len(c.parts))
	switch t {
	case shp.POLYGON:
		return &shp.Polygon{Box: box, NumParts: numParts, NumPoints: c.numPoints(), Parts: c.parts, Points: c.points}
	case shp.POLYLINEZ:
		return &shp.PolyLineZ{
			Box: box, NumParts: numParts, NumPoints: c.numPoints(), Parts: c.parts, Points: c.points,
			ZRange: valueRange(c.z), ZArray: c.z, MRange: valueRange(c.m), MArray: c.m,
		}
	case shp.POLYGONZ:
		return &shp.PolygonZ{
			Box: box, NumParts: numParts, NumPoints: c.numPoints(), Parts: c.parts, Points: c.points,
			ZRange: valueRange(c.z), ZArray: c.z, MRange: valueRange(c.m), MArray: c.m,
		}
	case shp.POLYLINEM:
		return &shp.PolyLineM{
			Box: box, NumParts: numParts, NumPoints: c.numPoints(), Parts: c.parts, Points: c.points,
			MRange: valueRange(c.m), MArray: c.m,
		}
	case shp.POLYGONM:
		return &shp.PolygonM{
			Box: box, NumParts: numParts, NumPoints: c.numPoints(), Parts: c.parts, Points: c.points,
			MRange: valueRange(c.m), MArray: c.m,
		}
	case shp.MULTIPATCH:
		partTypes := make([]int32, len(c.parts))
		if patch, ok := template.(*shp.MultiPatch); ok && len(patch.PartTypes) == len(c.parts) {
			copy(partTypes, patch.PartTypes)
		} else {
			for i := range partTypes {
				partTypes[i] = partTypeRing
			}
		}
		return &shp.MultiPatch{
			Box: box, NumParts: numParts, NumPoints: c.numPoints(), Parts: c.parts, PartTypes: partTypes,
			Points: c.points, ZRange: valueRange(c.z), ZArray: c.z, MRange: valueRange(c.m), MArray: c.m,
		}
	default:
		return &shp.PolyLine{Box: box, NumParts: numParts, NumPoints: c.numPoints(), Parts: c.parts, Points: c.points}
	}
}

func ordinate(c []float64, i int) float64 {
	if i < len(c) {
		return c[i]
	}
	return 0
}

func valueRange(values []float64) [2]float64 {
	if len(values) == 0 {
		return [2]float64{}
	}
	r := [2]float64{math.Inf(1), math.Inf(-1)}
	for _, v := range values {
		r[0] = math.Min(r[0], v)
		r[1] = math.Max(r[1], v)
	}
	return r
}

func mismatch(tree geom.Tree, t shp.ShapeType) error {
	return fmt.Errorf("%w: %T cannot be written as %s", geom.ErrUnrecognizedShape, tree, shapeTypeName(t))
}
