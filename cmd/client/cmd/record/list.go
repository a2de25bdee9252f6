package record

import (
	"fmt"
	"io"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/internal/app/client/storage"
	"fieldsync/internal/domain/record"

	"github.com/spf13/cobra"
)

var filter storage.Filter

var ListCmd = &cobra.Command{
	Use:   "list <collection>",
	Short: "List local records",
	Long: `list shows the records of a collection, newest first.

Filter by --site, --user or --status, page with --limit and --offset.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		d, err := record.ParseDomain(args[0])
		if err != nil {
			return err
		}
		if filter.Limit < 0 || filter.Offset < 0 {
			return fmt.Errorf("limit and offset must not be negative")
		}

		recs, err := app.Query(cmd.Context(), d, filter)
		if err != nil {
			return err
		}
		return types.Print(cmd, recs, func(w io.Writer) { printRecords(w, recs) })
	},
}

var PendingCmd = &cobra.Command{
	Use:   "pending [collection]",
	Short: "Show what is waiting to be uploaded",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		domains := record.SyncOrder
		if len(args) == 1 {
			d, err := record.ParseDomain(args[0])
			if err != nil {
				return err
			}
			domains = []record.Domain{d}
		}

		out := make(map[record.Domain][]*record.Record, len(domains))
		for _, d := range domains {
			recs, err := app.Pending(cmd.Context(), d)
			if err != nil {
				return err
			}
			out[d] = recs
		}

		return types.Print(cmd, out, func(w io.Writer) {
			for _, d := range domains {
				fmt.Fprintf(w, "%s: %d pending\n", types.Bold(d.DisplayName()), len(out[d]))
				for _, r := range out[d] {
					fmt.Fprintf(w, "  %s  v%d  %s\n", r.LocalID, r.Version, types.Dim(string(r.Payload)))
				}
			}
		})
	},
}

func init() {
	f := ListCmd.Flags()
	f.StringVar(&filter.SiteID, "site", "", "only records of this site")
	f.StringVar(&filter.UserID, "user", "", "only records of this user")
	f.StringVar(&filter.Status, "status", "", "only tickets with this status")
	f.BoolVar(&filter.Unsynced, "unsynced", false, "only records not yet uploaded")
	f.IntVar(&filter.Limit, "limit", 50, "maximum number of records, 0 for all")
	f.IntVar(&filter.Offset, "offset", 0, "records to skip")
}
