// pkg/geom/orb.go - Conversion between orb geometries and coordinate trees
package geom

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/valpere/wgs_correction/pkg/datum"
)

// FromOrb builds a coordinate tree from an orb geometry
func FromOrb(g orb.Geometry) (Tree, error) {
	switch g := g.(type) {
	case nil:
		return nil, nil
	case orb.Point:
		return Point{g[0], g[1]}, nil
	case orb.MultiPoint:
		return partFromPoints(g), nil
	case orb.LineString:
		return partFromPoints(g), nil
	case orb.Ring:
		return partFromPoints(g), nil
	case orb.MultiLineString:
		result := make(MultiPart, len(g))
		for i, ls := range g {
			result[i] = partFromPoints(ls)
		}
		return result, nil
	case orb.Polygon:
		result := make(MultiPart, len(g))
		for i, ring := range g {
			result[i] = partFromPoints(ring)
		}
		return result, nil
	case orb.MultiPolygon:
		result := make(MultiPart, len(g))
		for i, polygon := range g {
			tree, err := FromOrb(polygon)
			if err != nil {
				return nil, err
			}
			result[i] = tree
		}
		return result, nil
	case orb.Collection:
		result := make(MultiPart, len(g))
		for i, member := range g {
			tree, err := FromOrb(member)
			if err != nil {
				return nil, err
			}
			result[i] = tree
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: orb geometry %T", ErrUnrecognizedShape, g)
	}
}

// ToOrb rebuilds an orb geometry of the same type as like from a tree
// produced by FromOrb(like) or by rewriting it.
func ToOrb(t Tree, like orb.Geometry) (orb.Geometry, error) {
	switch l := like.(type) {
	case nil:
		return nil, nil
	case orb.Point:
		p, ok := t.(Point)
		if !ok || len(p) < 2 {
			return nil, shapeMismatch(t, like)
		}
		return orb.Point{p[0], p[1]}, nil
	case orb.MultiPoint:
		points, err := pointsFromTree(t, len(l), like)
		if err != nil {
			return nil, err
		}
		return orb.MultiPoint(points), nil
	case orb.LineString:
		points, err := pointsFromTree(t, len(l), like)
		if err != nil {
			return nil, err
		}
		return orb.LineString(points), nil
	case orb.Ring:
		points, err := pointsFromTree(t, len(l), like)
		if err != nil {
			return nil, err
		}
		return orb.Ring(points), nil
	case orb.MultiLineString:
		parts, err := partsFromTree(t, len(l), like)
		if err != nil {
			return nil, err
		}
		result := make(orb.MultiLineString, len(l))
		for i := range l {
			points, err := pointsFromTree(parts[i], len(l[i]), like)
			if err != nil {
				return nil, err
			}
			result[i] = orb.LineString(points)
		}
		return result, nil
	case orb.Polygon:
		parts, err := partsFromTree(t, len(l), like)
		if err != nil {
			return nil, err
		}
		result := make(orb.Polygon, len(l))
		for i := range l {
			points, err := pointsFromTree(parts[i], len(l[i]), like)
			if err != nil {
				return nil, err
			}
			result[i] = orb.Ring(points)
		}
		return result, nil
	case orb.MultiPolygon:
		parts, err := partsFromTree(t, len(l), like)
		if err != nil {
			return nil, err
		}
		result := make(orb.MultiPolygon, len(l))
		for i := range l {
			polygon, err := ToOrb(parts[i], l[i])
			if err != nil {
				return nil, err
			}
			result[i] = polygon.(orb.Polygon)
		}
		return result, nil
	case orb.Collection:
		parts, err := partsFromTree(t, len(l), like)
		if err != nil {
			return nil, err
		}
		result := make(orb.Collection, len(l))
		for i := range l {
			member, err := ToOrb(parts[i], l[i])
			if err != nil {
				return nil, err
			}
			result[i] = member
		}
		return result, nil
	default:
		return nil, fmt.Errorf("%w: orb geometry %T", ErrUnrecognizedShape, like)
	}
}

// RewriteOrb applies fn to every coordinate of an orb geometry and returns a
// new geometry of the same type.
func RewriteOrb(g orb.Geometry, fn datum.Func) (orb.Geometry, error) {
	tree, err := FromOrb(g)
	if err != nil {
		return nil, err
	}
	rewritten, err := Rewrite(tree, fn)
	if err != nil {
		return nil, err
	}
	return ToOrb(rewritten, g)
}

func partFromPoints(points []orb.Point) SinglePart {
	part := make(SinglePart, len(points))
	for i, p := range points {
		part[i] = Coordinate{p[0], p[1]}
	}
	return part
}

func pointsFromTree(t Tree, n int, like orb.Geometry) ([]orb.Point, error) {
	if t == nil && n == 0 {
		return []orb.Point{}, nil
	}
	part, ok := t.(SinglePart)
	if !ok || len(part) != n {
		return nil, shapeMismatch(t, like)
	}
	points := make([]orb.Point, n)
	for i, c := range part {
		if len(c) < 2 {
			return nil, shapeMismatch(t, like)
		}
		points[i] = orb.Point{c[0], c[1]}
	}
	return points, nil
}

func partsFromTree(t Tree, n int, like orb.Geometry) (MultiPart, error) {
	multi, ok := t.(MultiPart)
	if !ok || len(multi) != n {
		return nil, shapeMismatch(t, like)
	}
	return multi, nil
}

func shapeMismatch(t Tree, like orb.Geometry) error {
	return fmt.Errorf("%w: %T does not match %s", ErrUnrecognizedShape, t, like.GeoJSONType())
}
