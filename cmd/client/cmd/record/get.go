package record

import (
	"io"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/internal/domain/record"

	"github.com/spf13/cobra"
)

var GetCmd = &cobra.Command{
	Use:   "get <collection> <local-id>",
	Short: "Show one local record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		d, err := record.ParseDomain(args[0])
		if err != nil {
			return err
		}
		rec, err := app.Get(cmd.Context(), d, args[1])
		if err != nil {
			return err
		}
		return types.Print(cmd, rec, func(w io.Writer) { printRecord(w, rec) })
	},
}
