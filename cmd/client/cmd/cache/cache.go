package cache

import (
	"errors"
	"fmt"
	"io"
	"time"

	"fieldsync/cmd/client/cmd/types"
	"fieldsync/internal/app/client/refcache"

	"github.com/spf13/cobra"
)

// CacheCmd groups the reference data commands.
var CacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Read and refresh cached reference data",
	Long: `Reference lists (sites, asset-areas, ticket-categories) are cached on the device
so forms work offline.`,
}

var background bool

var GetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a cached reference list without touching the network",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		get := app.GetCached
		if background {
			get = app.GetCachedAndRefresh
		}
		entry, err := get(cmd.Context(), args[0])
		if errors.Is(err, refcache.ErrMiss) {
			if background {
				return fmt.Errorf("%s is not cached yet, fetching it now", args[0])
			}
			return fmt.Errorf("%s is not cached yet, run fieldsync cache refresh %s", args[0], args[0])
		}
		if err != nil {
			return err
		}
		return printEntry(cmd, entry)
	},
}

var RefreshCmd = &cobra.Command{
	Use:   "refresh <key>...",
	Short: "Fetch reference lists from the server and cache them",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		for _, key := range args {
			entry, err := app.RefreshCache(cmd.Context(), key)
			if err != nil {
				return err
			}
			if err := printEntry(cmd, entry); err != nil {
				return err
			}
		}
		return nil
	},
}

var KeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List cached reference keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		keys, err := app.CachedKeys(cmd.Context())
		if err != nil {
			return err
		}
		return types.Print(cmd, keys, func(w io.Writer) {
			if len(keys) == 0 {
				fmt.Fprintln(w, types.Dim("nothing cached"))
			}
			for _, k := range keys {
				fmt.Fprintln(w, k)
			}
		})
	},
}

func printEntry(cmd *cobra.Command, e *refcache.Entry) error {
	return types.Print(cmd, e, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s\n", types.Bold(e.Key), types.Dim(fmt.Sprintf("cached %s ago", e.Age(time.Now()).Round(time.Second))))
		fmt.Fprintf(w, "%s\n", e.Value)
	})
}

func init() {
	GetCmd.Flags().BoolVar(&background, "refresh", false, "also refresh the entry from the server")
}
