package cmd

import (
	"errors"
	"fmt"

	"fieldsync/internal/domain/record"

	"github.com/spf13/cobra"
)

var seed record.Ticket

var seedTicketCmd = &cobra.Command{
	Use:   "seed-ticket",
	Short: "Create a ticket for field devices to pull",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.DB.DatabaseURI == "" {
			return errors.New("seed-ticket requires DATABASE_URI")
		}
		services, backend, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer backend.Close()

		item, err := services.Ingest.SeedTicket(cmd.Context(), &seed)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), item.ID)
		return nil
	},
}

func init() {
	f := seedTicketCmd.Flags()
	f.StringVar(&seed.Title, "title", "", "ticket title")
	f.StringVar(&seed.SiteID, "site", "", "site id")
	f.StringVar(&seed.Category, "category", "", "ticket category")
	f.StringVar(&seed.Priority, "priority", "", "priority")
	f.StringVar(&seed.AssigneeID, "assignee", "", "assignee user id")
	f.StringVar(&seed.Description, "description", "", "description")
	f.StringVar(&seed.Status, "status", "open", "initial status")
	_ = seedTicketCmd.MarkFlagRequired("title")
}
