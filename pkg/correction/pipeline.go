// pkg/correction/pipeline.go - Dataset datum correction pipeline
package correction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/valpere/wgs_correction/internal/dataset"
	"github.com/valpere/wgs_correction/pkg/datum"
	"github.com/valpere/wgs_correction/pkg/geom"
)

// ErrInvalidTransform is returned when a pipeline is built without a transform
var ErrInvalidTransform = errors.New("invalid transform: a function of longitude and latitude columns is required")

// ErrSameDataset is returned when the output would overwrite the input while
// it is still being read
var ErrSameDataset = errors.New("output must differ from input")

// Pipeline reads a dataset, corrects every coordinate and writes a dataset of
// the same format, schema and CRS label
type Pipeline struct {
	transform datum.Func
	logger    zerolog.Logger
	opener    dataset.Opener
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger used for warnings and progress
func WithLogger(logger zerolog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithOpener replaces the dataset reader and writer factory
func WithOpener(opener dataset.Opener) Option {
	return func(p *Pipeline) {
		if opener != nil {
			p.opener = opener
		}
	}
}

// WithOptions uses file datasets configured with opts
func WithOptions(opts dataset.Options) Option {
	return func(p *Pipeline) {
		p.opener = dataset.NewOpener(opts)
	}
}

// Summary describes a finished run
type Summary struct {
	Input       string        `json:"input"`
	Output      string        `json:"output"`
	Read        int           `json:"read"`
	Written     int           `json:"written"`
	SkippedNull int           `json:"skipped_null"`
	Coordinates int           `json:"coordinates"`
	Extent      orb.Bound     `json:"extent"`
	Duration    time.Duration `json:"duration"`
	Projected   bool          `json:"projected"`
}

// New creates a pipeline applying fn to every coordinate
func New(fn datum.Func, opts ...Option) (*Pipeline, error) {
	if fn == nil {
		return nil, ErrInvalidTransform
	}

	p := &Pipeline{
		transform: fn,
		logger:    log.Logger,
		opener:    dataset.DefaultOpener,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Correct corrects input into output with a built-in correction kind ("bd"
// or "gd"). The kind is validated before any file is opened.
func Correct(input, output, kind string, opts ...Option) error {
	k, err := datum.ParseKind(kind)
	if err != nil {
		return err
	}
	return CorrectWithTransform(input, output, k.Func(), opts...)
}

// CorrectWithTransform corrects input into output with a caller supplied
// transform
func CorrectWithTransform(input, output string, fn datum.Func, opts ...Option) error {
	p, err := New(fn, opts...)
	if err != nil {
		return err
	}
	_, err = p.Run(input, output)
	return err
}

// Run corrects input into output
func (p *Pipeline) Run(input, output string) (*Summary, error) {
	return p.RunContext(context.Background(), input, output)
}

// RunContext corrects input into output, stopping between features when ctx
// is done. Output written before a failure is left in place.
func (p *Pipeline) RunContext(ctx context.Context, input, output string) (summary *Summary, err error) {
	start := time.Now()
	summary = &Summary{
		Input:  input,
		Output: output,
		Extent: orb.Bound{
			Min: orb.Point{math.Inf(1), math.Inf(1)},
			Max: orb.Point{math.Inf(-1), math.Inf(-1)},
		},
	}
	logger := p.logger.With().Str("input", input).Str("output", output).Logger()

	if sameFile(input, output) {
		return nil, fmt.Errorf("%w: %s", ErrSameDataset, input)
	}

	reader, err := p.opener.Open(input)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	defer func() {
		err = multierr.Append(err, reader.Close())
	}()

	meta := reader.Metadata()
	if meta.CRS.Projected {
		summary.Projected = true
		logger.Warn().
			Str("crs", meta.CRS.Name).
			Msg("Input CRS is projected; coordinates are corrected as if they were longitude/latitude")
	}

	if dir := filepath.Dir(output); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	writer, err := p.opener.Create(output, meta)
	if err != nil {
		return nil, fmt.Errorf("failed to create output: %w", err)
	}
	defer func() {
		err = multierr.Append(err, writer.Close())
	}()

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		feature, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return summary, fmt.Errorf("failed to read feature %d: %w", summary.Read, err)
		}
		summary.Read++

		if feature.Geometry == nil {
			summary.SkippedNull++
			logger.Debug().Int("feature", feature.Index).Msg("Skipping feature without geometry")
			continue
		}

		corrected, err := geom.Rewrite(feature.Geometry, p.transform)
		if err != nil {
			return summary, fmt.Errorf("failed to correct feature %d: %w", feature.Index, err)
		}

		if err := writer.Write(feature.WithGeometry(corrected)); err != nil {
			return summary, fmt.Errorf("failed to write feature %d: %w", feature.Index, err)
		}
		summary.Written++
		summary.Coordinates += geom.Count(corrected)
		summary.Extent = summary.Extent.Union(geom.Bound(corrected))
	}

	if geom.IsEmptyBound(summary.Extent) {
		summary.Extent = orb.Bound{}
	}
	summary.Duration = time.Since(start)
	logger.Debug().
		Int("read", summary.Read).
		Int("written", summary.Written).
		Int("skipped_null", summary.SkippedNull).
		Dur("duration", summary.Duration).
		Msg("Correction finished")

	return summary, nil
}

// sameFile reports whether both paths name the same file
func sameFile(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ia, err := os.Stat(a)
	if err != nil {
		return false
	}
	ib, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(ia, ib)
}
