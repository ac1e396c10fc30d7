// cmd/geometry.go - WKT geometry correction command
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valpere/wgs_correction/pkg/correction"
	"github.com/valpere/wgs_correction/pkg/datum"
)

// geometryCmd represents the geometry command
var geometryCmd = &cobra.Command{
	Use:   "geometry WKT",
	Short: "Correct a single WKT geometry to WGS84",
	Long: `Correct every coordinate of a WKT geometry and print the WGS84 result as WKT.

Points, line strings, polygons, their multi forms and geometry collections are
supported.

Examples:
  wgs-correction geometry --kind bd "POINT(116.404 39.915)"
  wgs-correction geometry --kind gd "LINESTRING(116.404 39.915,116.41 39.92)"`,
	Args: cobra.ExactArgs(1),
	RunE: runGeometry,
}

func init() {
	rootCmd.AddCommand(geometryCmd)
}

func runGeometry(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	kind, err := datum.ParseKind(cfg.Correction.Kind)
	if err != nil {
		return err
	}

	out, err := correction.CorrectWKT(args[0], kind.Func())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
