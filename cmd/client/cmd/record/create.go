package record

import (
	"io"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/internal/app/client/syncer"
	"fieldsync/internal/domain/record"

	"github.com/spf13/cobra"
)

var syncNow bool

var CreateCmd = &cobra.Command{
	Use:   "create <collection>",
	Short: "Save a new record locally",
	Long: `create validates the payload and stores it as pending. Nothing is sent until a
sync pass runs, unless --sync asks for one in the background.

  fieldsync record create attendance -d '{"userId":"u-1","siteId":"s-1","punchInAt":"2024-05-20T07:30:00Z"}'`,
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
		raw, err := types.ReadPayload(cmd, payloadData, payloadFile)
		if err != nil {
			return err
		}

		rec, err := app.CreateLocal(cmd.Context(), d, raw)
		if err != nil {
			return err
		}
		if syncNow {
			if _, err := app.SyncNow(cmd.Context(), syncer.ReasonManual); err != nil {
				return err
			}
			if rec, err = app.Get(cmd.Context(), d, rec.LocalID); err != nil {
				return err
			}
		}
		return types.Print(cmd, rec, func(w io.Writer) { printRecord(w, rec) })
	},
}

var UpdateCmd = &cobra.Command{
	Use:   "update <collection> <local-id>",
	Short: "Replace a record's payload",
	Long: `update replaces the payload and marks the record pending again. Event times
such as punchInAt or recordedAt cannot change. Tickets are changed through the
ticket commands instead.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		d, err := record.ParseDomain(args[0])
		if err != nil {
			return err
		}
		raw, err := types.ReadPayload(cmd, payloadData, payloadFile)
		if err != nil {
			return err
		}
		rec, err := app.UpdateLocal(cmd.Context(), d, args[1], raw)
		if err != nil {
			return err
		}
		return types.Print(cmd, rec, func(w io.Writer) { printRecord(w, rec) })
	},
}

func init() {
	addPayloadFlags(CreateCmd)
	addPayloadFlags(UpdateCmd)
	CreateCmd.Flags().BoolVar(&syncNow, "sync", false, "run a sync pass after saving")
}
