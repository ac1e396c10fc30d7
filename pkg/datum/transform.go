// pkg/datum/transform.go - Column transforms and correction kind selection
package datum

import (
	"errors"
	"fmt"
	"strings"
)

// Func maps parallel columns of longitudes and latitudes to corrected columns.
// Implementations must return two slices of the same length as the input.
type Func func(lons, lats []float64) ([]float64, []float64)

// ScalarFunc maps a single longitude/latitude pair.
type ScalarFunc func(lon, lat float64) (float64, float64)

// Vectorize lifts a scalar conversion into an elementwise column transform.
func Vectorize(fn ScalarFunc) Func {
	return func(lons, lats []float64) ([]float64, []float64) {
		n := min(len(lons), len(lats))
		outLons := make([]float64, n)
		outLats := make([]float64, n)
		for i := 0; i < n; i++ {
			outLons[i], outLats[i] = fn(lons[i], lats[i])
		}
		return outLons, outLats
	}
}

// Column forms of the datum conversions
var (
	BD09ToGCJ02Func  = Vectorize(BD09ToGCJ02)
	GCJ02ToWGS84Func = Vectorize(GCJ02ToWGS84)
	BD09ToWGS84Func  = Vectorize(BD09ToWGS84)
)

// ErrUnsupportedKind is returned for correction kinds other than bd and gd.
var ErrUnsupportedKind = errors.New("unsupported correction kind")

// Kind selects one of the built-in corrections
type Kind string

const (
	// KindBaidu corrects BD09 input to WGS84
	KindBaidu Kind = "bd"
	// KindGaode corrects GCJ02 (AMap/Gaode, Tencent, Google China) input to WGS84
	KindGaode Kind = "gd"
)

// ParseKind validates a correction kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindBaidu:
		return KindBaidu, nil
	case KindGaode:
		return KindGaode, nil
	default:
		return "", fmt.Errorf("%w: %q, must be '%s' or '%s'", ErrUnsupportedKind, s, KindBaidu, KindGaode)
	}
}

// Func returns the column transform for the kind, or nil for an unknown kind.
func (k Kind) Func() Func {
	switch k {
	case KindBaidu:
		return BD09ToWGS84Func
	case KindGaode:
		return GCJ02ToWGS84Func
	default:
		return nil
	}
}

// Scalar returns the single-point conversion for the kind, or nil for an unknown kind.
func (k Kind) Scalar() ScalarFunc {
	switch k {
	case KindBaidu:
		return BD09ToWGS84
	case KindGaode:
		return GCJ02ToWGS84
	default:
		return nil
	}
}

// Description returns a human readable name of the source datum
func (k Kind) Description() string {
	switch k {
	case KindBaidu:
		return "BD09 (Baidu) to WGS84"
	case KindGaode:
		return "GCJ02 (Mars/AMap) to WGS84"
	default:
		return "unknown"
	}
}

// String returns a string representation of the kind
func (k Kind) String() string {
	return string(k)
}
