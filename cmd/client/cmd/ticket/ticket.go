package ticket

import (
	"errors"
	"fmt"
	"io"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/internal/domain/record"

	"github.com/spf13/cobra"
)

// TicketCmd groups the queued ticket changes. Tickets themselves are read-only
// on the device; every change is queued as a ticket update and applied by the server.
var TicketCmd = &cobra.Command{
	Use:     "ticket",
	Aliases: []string{"tickets"},
	Short:   "Queue changes to server tickets",
	Long: `Tickets are pulled from the server (fieldsync sync pull tickets) and never edited
in place. Each command here queues an update that the next sync pass sends after
the ticket's own record is known to the server.`,
}

var requestedBy string

var (
	fromStatus string
	remarks    string
)

var StatusCmd = &cobra.Command{
	Use:   "status <ticket-local-id> <status>",
	Short: "Queue a status change",
	Long: `Statuses: open, in_progress, on_hold, resolved, closed, cancelled.
Cancelling requires --remarks.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return queue(cmd, args[0], record.StatusTransition{From: fromStatus, Status: args[1], Remarks: remarks})
	},
}

var (
	title       string
	description string
	category    string
	priority    string
)

var EditCmd = &cobra.Command{
	Use:   "edit <ticket-local-id>",
	Short: "Queue a change to the title, description, category or priority",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var edit record.DetailEdit
		f := cmd.Flags()
		if f.Changed("title") {
			edit.Title = &title
		}
		if f.Changed("description") {
			edit.Description = &description
		}
		if f.Changed("category") {
			edit.Category = &category
		}
		if f.Changed("priority") {
			edit.Priority = &priority
		}
		return queue(cmd, args[0], edit)
	},
}

var CommentCmd = &cobra.Command{
	Use:   "comment <ticket-local-id> <text>",
	Short: "Queue a comment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return queue(cmd, args[0], record.Comment{Comment: args[1], AuthorID: requestedBy})
	},
}

func queue(cmd *cobra.Command, ticketID string, data record.UpdateData) error {
	app, err := types.App(cmd)
	if err != nil {
		return err
	}
	if requestedBy == "" {
		return errors.New("--by is required")
	}

	rec, err := app.QueueTicketUpdate(cmd.Context(), ticketID, requestedBy, data)
	if err != nil {
		return err
	}
	return types.Print(cmd, rec, func(w io.Writer) {
		fmt.Fprintf(w, "%s queued %s update %s for ticket %s\n", types.OK("✓"), data.Type(), rec.LocalID, ticketID)
	})
}

func init() {
	TicketCmd.PersistentFlags().StringVar(&requestedBy, "by", "", "user id making the change")

	StatusCmd.Flags().StringVar(&fromStatus, "from", "", "status the change expects the ticket to have")
	StatusCmd.Flags().StringVar(&remarks, "remarks", "", "reason for the change")

	EditCmd.Flags().StringVar(&title, "title", "", "new title")
	EditCmd.Flags().StringVar(&description, "description", "", "new description")
	EditCmd.Flags().StringVar(&category, "category", "", "new category")
	EditCmd.Flags().StringVar(&priority, "priority", "", "new priority")
}
