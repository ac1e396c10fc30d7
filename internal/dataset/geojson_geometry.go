// internal/dataset/geojson_geometry.go - go-geom and coordinate tree conversion
package dataset

import (
	"fmt"

	gogeom "github.com/twpayne/go-geom"

	"github.com/valpere/wgs_correction/pkg/geom"
)

// geometryToTree splits the flat coordinates of g into a tree using its
// stride, ends and endss. A GeometryCollection has no flat coordinates of its
// own and becomes a MultiPart of its members.
func geometryToTree(g gogeom.T) (geom.Tree, error) {
	if collection, ok := g.(*gogeom.GeometryCollection); ok {
		result := make(geom.MultiPart, 0, collection.NumGeoms())
		for _, member := range collection.Geoms() {
			tree, err := geometryToTree(member)
			if err != nil {
				return nil, err
			}
			result = append(result, tree)
		}
		return result, nil
	}

	stride := g.Stride()
	flat := g.FlatCoords()

	switch g := g.(type) {
	case *gogeom.Point:
		if len(flat) == 0 {
			return geom.SinglePart{}, nil
		}
		return geom.Point(append(geom.Coordinate(nil), flat...)), nil
	case *gogeom.LineString, *gogeom.MultiPoint:
		return flatToPart(flat, stride), nil
	case *gogeom.Polygon, *gogeom.MultiLineString:
		parts, _ := flatToParts(flat, 0, g.Ends(), stride)
		return parts, nil
	case *gogeom.MultiPolygon:
		result := make(geom.MultiPart, 0, len(g.Endss()))
		offset := 0
		for _, ends := range g.Endss() {
			var polygon geom.MultiPart
			polygon, offset = flatToParts(flat, offset, ends, stride)
			result = append(result, polygon)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: geometry %T", geom.ErrUnrecognizedShape, g)
	}
}

func flatToPart(flat []float64, stride int) geom.SinglePart {
	part := make(geom.SinglePart, len(flat)/stride)
	for i := range part {
		c := make(geom.Coordinate, stride)
		copy(c, flat[i*stride:(i+1)*stride])
		part[i] = c
	}
	return part
}

// flatToParts cuts flat[offset:] at the given ends and returns the offset of
// the next part
func flatToParts(flat []float64, offset int, ends []int, stride int) (geom.MultiPart, int) {
	parts := make(geom.MultiPart, len(ends))
	for i, end := range ends {
		parts[i] = flatToPart(flat[offset:end], stride)
		offset = end
	}
	return parts, offset
}

// treeToGeometry rebuilds a geometry with the type, layout and ring ends of
// source and the coordinates of tree
func treeToGeometry(tree geom.Tree, source gogeom.T) (gogeom.T, error) {
	if source == nil {
		return nil, ErrNoTemplate
	}

	if collection, ok := source.(*gogeom.GeometryCollection); ok {
		members, ok := tree.(geom.MultiPart)
		if !ok || len(members) != collection.NumGeoms() {
			return nil, fmt.Errorf("%w: tree does not match GeometryCollection", geom.ErrUnrecognizedShape)
		}
		result := gogeom.NewGeometryCollection()
		for i, member := range collection.Geoms() {
			g, err := treeToGeometry(members[i], member)
			if err != nil {
				return nil, err
			}
			if err := result.Push(g); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	if geom.Count(tree) == 0 {
		return source, nil
	}

	stride := source.Stride()
	flat := make([]float64, 0, len(source.FlatCoords()))
	for _, c := range geom.Flatten(nil, tree) {
		if len(c) != stride {
			return nil, fmt.Errorf("%w: coordinate has %d ordinates, layout needs %d",
				geom.ErrUnrecognizedShape, len(c), stride)
		}
		flat = append(flat, c...)
	}
	if len(flat) != len(source.FlatCoords()) {
		return nil, fmt.Errorf("%w: %d coordinates do not fit %T",
			geom.ErrUnrecognizedShape, len(flat)/stride, source)
	}

	layout := source.Layout()
	switch s := source.(type) {
	case *gogeom.Point:
		if _, ok := tree.(geom.Point); !ok {
			return nil, fmt.Errorf("%w: %T is not a point", geom.ErrUnrecognizedShape, tree)
		}
		return gogeom.NewPointFlat(layout, flat), nil
	case *gogeom.LineString:
		return gogeom.NewLineStringFlat(layout, flat), nil
	case *gogeom.MultiPoint:
		return gogeom.NewMultiPointFlat(layout, flat), nil
	case *gogeom.Polygon:
		return gogeom.NewPolygonFlat(layout, flat, s.Ends()), nil
	case *gogeom.MultiLineString:
		return gogeom.NewMultiLineStringFlat(layout, flat, s.Ends()), nil
	case *gogeom.MultiPolygon:
		return gogeom.NewMultiPolygonFlat(layout, flat, s.Endss()), nil
	default:
		return nil, fmt.Errorf("%w: geometry %T", geom.ErrUnrecognizedShape, source)
	}
}
