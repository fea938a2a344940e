package main

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
)

func newQRCmd(cfg *config) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "qr <room-code>",
		Short: "Write a QR code for a room's join link.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := fmt.Sprintf("%s/join/%s", cfg.serverURL, args[0])
			if err := qrcode.WriteFile(link, qrcode.Medium, 256, output); err != nil {
				return fmt.Errorf("write qr code: %w", err)
			}
			fmt.Printf("wrote %s -> %s\n", link, output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "join.png", "output png path")
	return cmd
}
