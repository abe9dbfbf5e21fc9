package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/crop-cli/internal/dataset"
	"github.com/sells-group/crop-cli/internal/region"
)

var cropsCmd = &cobra.Command{
	Use:   "crops",
	Short: "List supported crops",
	Long: `Lists the crop keys accepted by predict, with their display names.

With --soil, lists the crop names present in the merged soil suitability
table instead; these are the names accepted by search crop and map.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		soil, _ := cmd.Flags().GetBool("soil")
		if !soil {
			formatCropCatalog(cmd.OutOrStdout())
			return nil
		}

		table, err := loadRegionTable(cmd.Context())
		if err != nil {
			return err
		}
		for _, c := range table.Crops() {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), c)
		}
		return nil
	},
}

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List available province and district pairs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		province, _ := cmd.Flags().GetString("province")

		table, err := loadRegionTable(cmd.Context())
		if err != nil {
			return err
		}

		places := table.Regions(province)
		if len(places) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No regions found.")
			return nil
		}
		formatPlaces(cmd.OutOrStdout(), places)
		return nil
	},
}

func init() {
	cropsCmd.Flags().Bool("soil", false, "list crops from the soil suitability table")
	regionsCmd.Flags().String("province", "", "only list districts of this province")

	rootCmd.AddCommand(cropsCmd)
	rootCmd.AddCommand(regionsCmd)
}

// formatCropCatalog writes the supported crop keys and names to out.
func formatCropCatalog(out io.Writer) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tNAME")
	_, _ = fmt.Fprintln(w, "---\t----")
	for _, key := range dataset.CropKeys() {
		name, _ := dataset.CropName(key)
		_, _ = fmt.Fprintf(w, "%s\t%s\n", key, name)
	}
	_ = w.Flush()
}

// formatPlaces writes a province/district table to out.
func formatPlaces(out io.Writer, places []region.Place) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "PROVINCE\tDISTRICT")
	_, _ = fmt.Fprintln(w, "--------\t--------")
	for _, p := range places {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", p.Province, p.District)
	}
	_ = w.Flush()
}
