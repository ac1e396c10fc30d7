// cmd/correct.go - Single dataset correction command
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/wgs_correction/internal/output"
	"github.com/valpere/wgs_correction/pkg/correction"
	"github.com/valpere/wgs_correction/pkg/datum"
)

// correctCmd represents the correct command
var correctCmd = &cobra.Command{
	Use:   "correct [INPUT OUTPUT]",
	Short: "Correct one dataset to WGS84",
	Long: `Correct every coordinate of a Shapefile or GeoJSON dataset to WGS84.

The output uses the format of the input; attributes, Z/M values and the .prj
or crs label are copied unchanged. Features without geometry are dropped.
Shapefile attributes keep the code page of the source (its .cpg is copied) and
are not converted to UTF-8; sources without a .cpg are read and written with
the --encoding fallback.

Examples:
  # AMap (GCJ02) shapefile
  wgs-correction correct --kind gd roads.shp out/roads.shp

  # Baidu (BD09) GeoJSON with named flags
  wgs-correction correct --kind bd --input poi.geojson --output poi_wgs84.geojson

  # Pretty printed, gzip compressed output
  wgs-correction correct --pretty --compression poi.geojson poi_wgs84.geojson`,
	Args: cobra.MaximumNArgs(2),
	RunE: runCorrect,
}

func init() {
	rootCmd.AddCommand(correctCmd)

	correctCmd.Flags().StringP("input", "i", "", "input dataset (.shp, .geojson, .json)")
	correctCmd.Flags().StringP("output", "o", "", "output dataset of the same format")
	correctCmd.Flags().String("report", "", "write a JSON or YAML run summary to this file (- for stdout)")
}

func runCorrect(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	input, _ := cmd.Flags().GetString("input")
	outputPath, _ := cmd.Flags().GetString("output")
	if len(args) > 0 {
		input = args[0]
	}
	if len(args) > 1 {
		outputPath = args[1]
	}
	if input == "" || outputPath == "" {
		return fmt.Errorf("both an input and an output dataset must be specified")
	}

	kind, err := datum.ParseKind(cfg.Correction.Kind)
	if err != nil {
		return err
	}

	pipeline, err := correction.New(kind.Func(),
		correction.WithOptions(datasetOptions(cfg)),
		correction.WithLogger(log))
	if err != nil {
		return err
	}

	log.Debug().
		Str("input", input).
		Str("output", outputPath).
		Str("kind", kind.Description()).
		Msg("Starting correction")

	summary, err := pipeline.Run(input, outputPath)
	if err != nil {
		return fmt.Errorf("correction failed: %w", err)
	}

	reportPath, _ := cmd.Flags().GetString("report")
	if reportPath != "" {
		if err := output.WriteReport(reportPath, summary, cfg.Output.Pretty); err != nil {
			return err
		}
	}

	if cfg.Logging.Verbose {
		fmt.Fprintf(os.Stderr, "Corrected %s (%s) to %s\n", input, kind.Description(), outputPath)
		fmt.Fprintf(os.Stderr, "Features: %d written, %d without geometry dropped\n", summary.Written, summary.SkippedNull)
		fmt.Fprintf(os.Stderr, "Coordinates: %d, Duration: %v\n", summary.Coordinates, summary.Duration)
		if summary.Written > 0 {
			fmt.Fprintf(os.Stderr, "Extent: %.6f,%.6f,%.6f,%.6f\n",
				summary.Extent.Min[0], summary.Extent.Min[1], summary.Extent.Max[0], summary.Extent.Max[1])
		}
	}

	return nil
}
