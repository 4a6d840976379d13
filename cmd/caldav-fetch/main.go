package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/Truenya/caldav-daemon/config"
	"github.com/Truenya/caldav-daemon/internal/service"
)

var rootCmd = &cobra.Command{
	Use:   "caldav-fetch",
	Short: "Print every CalDAV event as a JSON array",
	Long: `caldav-fetch connects to https://$CALDAV_URL/$CALDAV_USERNAME/ with
$CALDAV_PASSWORD, reads every event of every calendar and prints them to
stdout as one JSON array. Cancelled events are skipped.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		return service.FetchAndRender(cmd.Context(), cfg, cmd.OutOrStdout())
	},
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "caldav-fetch: %v\n", err)
		os.Exit(1)
	}
}
