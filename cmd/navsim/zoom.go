package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samirrijal/pedalnav/internal/core/usecases"
)

var (
	zoomMaxKmh float64
	zoomStep   float64
)

var zoomCmd = &cobra.Command{
	Use:   "zoom",
	Short: "Print the speed to zoom table",
	RunE:  runZoom,
}

func init() {
	zoomCmd.Flags().Float64Var(&zoomMaxKmh, "max", 40, "Highest speed to print, km/h")
	zoomCmd.Flags().Float64Var(&zoomStep, "step", 2.5, "Speed increment, km/h")
}

func runZoom(cmd *cobra.Command, args []string) error {
	if zoomStep <= 0 {
		return fmt.Errorf("--step must be positive")
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KM/H\tZOOM")
	for kmh := 0.0; kmh <= zoomMaxKmh; kmh += zoomStep {
		fmt.Fprintf(w, "%.1f\t%.1f\n", kmh, usecases.ZoomForSpeed(usecases.DefaultZoomBands, kmh))
	}
	return w.Flush()
}
