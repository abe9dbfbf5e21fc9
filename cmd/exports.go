package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/crop-cli/internal/store"
)

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "Inspect recorded search and model exports",
	Long:  "Commands for listing and viewing results recorded with --export or store.path.",
}

// -- exports list --

var exportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded exports, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) (err error) {
		ctx := cmd.Context()

		st, err := openExportStore(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeWith(st, "export database", &err)

		kind, _ := cmd.Flags().GetString("kind")
		limit, _ := cmd.Flags().GetInt("limit")

		exports, err := st.ListExports(ctx, store.ExportFilter{Kind: store.Kind(kind), Limit: limit})
		if err != nil {
			return eris.Wrap(err, "exports list")
		}

		if len(exports) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No exports found.")
			return nil
		}

		formatExportsList(cmd.OutOrStdout(), exports)
		return nil
	},
}

// -- exports show --

var exportsShowCmd = &cobra.Command{
	Use:   "show <export-id>",
	Short: "Show an export and its region or model rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx := cmd.Context()

		st, err := openExportStore(ctx, cmd)
		if err != nil {
			return err
		}
		defer closeWith(st, "export database", &err)

		e, err := st.GetExport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "exports show")
		}
		detail := exportDetail{Export: *e}
		switch e.Kind {
		case store.KindCropSearch, store.KindRegionSearch:
			if detail.Regions, err = st.RegionRows(ctx, e.ID); err != nil {
				return eris.Wrap(err, "exports show")
			}
		case store.KindModelSummary, store.KindComparison:
			if detail.Models, err = st.ModelRows(ctx, e.ID); err != nil {
				return eris.Wrap(err, "exports show")
			}
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(detail)
	},
}

type exportDetail struct {
	store.Export
	Regions []store.RegionRow `json:"regions,omitempty"`
	Models  []store.ModelRow  `json:"models,omitempty"`
}

func init() {
	exportsCmd.PersistentFlags().String("db", "", "SQLite export file (default: store.path)")

	exportsListCmd.Flags().String("kind", "", "filter by kind (crop_search, region_search, model_summary, comparison)")
	exportsListCmd.Flags().Int("limit", 50, "max number of exports to display")

	exportsCmd.AddCommand(exportsListCmd)
	exportsCmd.AddCommand(exportsShowCmd)
	rootCmd.AddCommand(exportsCmd)
}

func openExportStore(ctx context.Context, cmd *cobra.Command) (store.Store, error) {
	path, _ := cmd.Flags().GetString("db")
	st, err := initStore(ctx, path)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("exports: no database; pass --db or set store.path")
	}
	return st, nil
}

// formatExportsList writes a tabular list of exports to out.
func formatExportsList(out io.Writer, exports []store.Export) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tQUERY\tROWS\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t-----\t----\t-------")

	for _, e := range exports {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			truncateID(e.ID),
			e.Kind,
			formatQuery(e.Query),
			e.Rows,
			e.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// formatQuery renders the query parameters in a fixed key order.
func formatQuery(q map[string]string) string {
	var s string
	for _, k := range []string{"crop", "province", "district", "top"} {
		v, ok := q[k]
		if !ok {
			continue
		}
		if s != "" {
			s += " "
		}
		s += k + "=" + v
	}
	if r := []rune(s); len(r) > 40 {
		s = string(r[:37]) + "..."
	}
	return s
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
