package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/quizrally/client/internal/api"
	"github.com/quizrally/client/internal/bus"
	"github.com/quizrally/client/internal/store"
)

func newRoomsCmd(cfg *config) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List active rooms.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(cfg.statePath(), clockwork.NewRealClock())
			if err != nil {
				return err
			}
			apiClient := api.New(cfg.apiBase(), bus.New(), st.Token)
			rooms, err := apiClient.ListRooms(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "CODE\tSTATUS\tPLAYERS")
			for _, r := range rooms {
				fmt.Fprintf(w, "%s\t%s\t%d\n", r.RoomCode, r.Status, len(r.Players))
			}
			return w.Flush()
		},
	}
}
