// pkg/geom/tree.go - Geometry coordinate trees
package geom

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// Shape identifies the nesting level of a Tree
type Shape int

const (
	ShapePoint Shape = iota + 1
	ShapeSinglePart
	ShapeMultiPart
)

// String returns the name of the shape
func (s Shape) String() string {
	switch s {
	case ShapePoint:
		return "Point"
	case ShapeSinglePart:
		return "SinglePart"
	case ShapeMultiPart:
		return "MultiPart"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Coordinate is x (longitude), y (latitude) followed by any extra ordinates
// such as z or m. Only the first two values are ever rewritten.
type Coordinate []float64

// Tree holds the coordinates of one feature geometry.
// It is one of Point, SinglePart or MultiPart.
type Tree interface {
	Shape() Shape
}

// Point is a single coordinate
type Point Coordinate

// SinglePart is an ordered run of coordinates: a line, a ring or the members
// of a multipoint.
type SinglePart []Coordinate

// MultiPart is an ordered list of sub-trees: polygon rings, lines of a
// multiline, polygons of a multipolygon or members of a collection.
type MultiPart []Tree

func (Point) Shape() Shape      { return ShapePoint }
func (SinglePart) Shape() Shape { return ShapeSinglePart }
func (MultiPart) Shape() Shape  { return ShapeMultiPart }

// Count returns the number of coordinates in the tree
func Count(t Tree) int {
	switch g := t.(type) {
	case Point:
		return 1
	case SinglePart:
		return len(g)
	case MultiPart:
		n := 0
		for _, part := range g {
			n += Count(part)
		}
		return n
	default:
		return 0
	}
}

// Bound returns the x/y envelope of the tree. Empty trees produce an empty
// bound with inverted infinite corners, which extends correctly when unioned.
func Bound(t Tree) orb.Bound {
	b := orb.Bound{
		Min: orb.Point{math.Inf(1), math.Inf(1)},
		Max: orb.Point{math.Inf(-1), math.Inf(-1)},
	}
	walk(t, func(c Coordinate) {
		if len(c) < 2 {
			return
		}
		b = b.Extend(orb.Point{c[0], c[1]})
	})
	return b
}

// IsEmptyBound reports whether b was produced from a tree without coordinates
func IsEmptyBound(b orb.Bound) bool {
	return b.Min[0] > b.Max[0] || b.Min[1] > b.Max[1]
}

// walk visits every coordinate in order
func walk(t Tree, visit func(Coordinate)) {
	switch g := t.(type) {
	case Point:
		visit(Coordinate(g))
	case SinglePart:
		for _, c := range g {
			visit(c)
		}
	case MultiPart:
		for _, part := range g {
			walk(part, visit)
		}
	}
}

// Flatten appends every coordinate of the tree to dst in order
func Flatten(dst []Coordinate, t Tree) []Coordinate {
	walk(t, func(c Coordinate) {
		dst = append(dst, c)
	})
	return dst
}
