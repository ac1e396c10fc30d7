// pkg/geom/rewrite.go - Coordinate rewriting over geometry trees
package geom

import (
	"errors"
	"fmt"

	"github.com/valpere/wgs_correction/pkg/datum"
)

var (
	// ErrUnrecognizedShape is returned when a tree is neither a Point, a
	// SinglePart nor a MultiPart, or holds a coordinate without x and y.
	ErrUnrecognizedShape = errors.New("unrecognized geometry shape")

	// ErrTransformMismatch is returned when a transform does not return one
	// value per input coordinate.
	ErrTransformMismatch = errors.New("transform returned a mismatched number of coordinates")

	// ErrNilTransform is returned when Rewrite is called without a transform.
	ErrNilTransform = errors.New("transform function is nil")
)

// Rewrite returns a copy of t with every x/y pair mapped through fn.
//
// The shape is preserved exactly: a MultiPart yields a MultiPart with the same
// number of parts and the same number of coordinates per part. Ordinates past
// x and y are copied unchanged. fn is invoked once per SinglePart with the
// whole part as two columns, and once per Point with columns of length one.
// Empty trees are returned as they are. t is never modified.
func Rewrite(t Tree, fn datum.Func) (Tree, error) {
	if fn == nil {
		return nil, ErrNilTransform
	}
	return rewrite(t, fn, "")
}

func rewrite(t Tree, fn datum.Func, path string) (Tree, error) {
	if t == nil {
		return nil, nil
	}

	switch g := t.(type) {
	case MultiPart:
		if len(g) == 0 {
			return g, nil
		}
		result := make(MultiPart, len(g))
		for i, part := range g {
			partPath := fmt.Sprintf("%s[%d]", path, i)
			if part == nil {
				return nil, fmt.Errorf("%w: nil member at %s", ErrUnrecognizedShape, partPath)
			}
			rewritten, err := rewrite(part, fn, partPath)
			if err != nil {
				return nil, err
			}
			result[i] = rewritten
		}
		return result, nil

	case SinglePart:
		if len(g) == 0 {
			return g, nil
		}
		return rewritePart(g, fn, path)

	case Point:
		if len(g) < 2 {
			return nil, fmt.Errorf("%w: point%s has %d ordinates", ErrUnrecognizedShape, path, len(g))
		}
		xs, ys := fn([]float64{g[0]}, []float64{g[1]})
		if len(xs) != 1 || len(ys) != 1 {
			return nil, fmt.Errorf("%w: point%s got %d/%d values", ErrTransformMismatch, path, len(xs), len(ys))
		}
		result := make(Point, len(g))
		copy(result, g)
		result[0], result[1] = xs[0], ys[0]
		return result, nil

	default:
		return nil, fmt.Errorf("%w: %T at %q", ErrUnrecognizedShape, t, path)
	}
}

// rewritePart transforms a whole part with a single call to fn
func rewritePart(part SinglePart, fn datum.Func, path string) (SinglePart, error) {
	n := len(part)
	columns := make([]float64, 2*n)
	xs := columns[:n]
	ys := columns[n:]
	for i, c := range part {
		if len(c) < 2 {
			return nil, fmt.Errorf("%w: coordinate %s[%d] has %d ordinates", ErrUnrecognizedShape, path, i, len(c))
		}
		xs[i] = c[0]
		ys[i] = c[1]
	}

	newXs, newYs := fn(xs, ys)
	if len(newXs) != n || len(newYs) != n {
		return nil, fmt.Errorf("%w: part%s has %d coordinates, got %d/%d values",
			ErrTransformMismatch, path, n, len(newXs), len(newYs))
	}

	result := make(SinglePart, n)
	for i, c := range part {
		coord := make(Coordinate, len(c))
		copy(coord, c)
		coord[0] = newXs[i]
		coord[1] = newYs[i]
		result[i] = coord
	}
	return result, nil
}
