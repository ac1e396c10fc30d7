// cmd/point.go - Single coordinate correction command
package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/valpere/wgs_correction/pkg/datum"
)

// pointCmd represents the point command
var pointCmd = &cobra.Command{
	Use:   "point LON LAT",
	Short: "Correct a single coordinate to WGS84",
	Long: `Correct a single longitude/latitude pair and print the WGS84 result.

Examples:
  wgs-correction point --kind bd 116.404 39.915
  wgs-correction point --kind gd -- 116.404 39.915`,
	Args: cobra.ExactArgs(2),
	RunE: runPoint,
}

func init() {
	rootCmd.AddCommand(pointCmd)

	pointCmd.Flags().Int("precision", 8, "decimal places in the output")
}

func runPoint(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	lon, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("invalid longitude: %s", args[0])
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("invalid latitude: %s", args[1])
	}

	kind, err := datum.ParseKind(cfg.Correction.Kind)
	if err != nil {
		return err
	}

	precision, _ := cmd.Flags().GetInt("precision")
	x, y := kind.Scalar()(lon, lat)
	fmt.Fprintf(cmd.OutOrStdout(), "%.*f %.*f\n", precision, x, precision, y)
	return nil
}
