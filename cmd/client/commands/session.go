package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dappbridge/internal/client"
	"dappbridge/internal/protocol"
	"dappbridge/internal/utils"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage bridge sessions",
	}
	cmd.AddCommand(sessionNewCmd(), sessionCloseCmd())
	return cmd
}

func sessionNewCmd() *cobra.Command {
	var (
		id      string
		expires time.Duration
		noQR    bool
	)
	cmd := &cobra.Command{
		Use:   "new",
		Short: "Register a session and print its surface URL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := timeout(cmd)
			defer cancel()

			resp, err := api.CreateSession(ctx, protocol.CreateSessionRequest{SessionID: id, ExpiresIn: expires})
			if err != nil {
				return err
			}

			client.PrintBanner()
			client.PrintField("session", resp.SessionID, client.ColorCyan)
			client.PrintField("surface", resp.SurfaceURL, client.ColorYellow)
			client.PrintField("operator", resp.OperatorToken, client.ColorReset)
			client.PrintField("expires", utils.FormatDuration(resp.ExpiresIn), client.ColorReset)
			if !noQR {
				client.PrintSep()
				client.PrintQR(resp.SurfaceURL)
			}
			client.PrintSep()
			client.PrintHint(fmt.Sprintf("export DAPPBRIDGE_TOKEN=%s", resp.OperatorToken))
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "session id (default: random UUID)")
	cmd.Flags().DurationVar(&expires, "expires", 0, "session lifetime (default: host setting)")
	cmd.Flags().BoolVar(&noQR, "no-qr", false, "do not print a QR code")
	return cmd
}

func sessionCloseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "close <session>",
		Short: "Tear a session down and drop its pending requests",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(); err != nil {
				return err
			}
			ctx, cancel := timeout(cmd)
			defer cancel()

			if err := api.DeleteSession(ctx, args[0], token); err != nil {
				return err
			}
			fmt.Printf("  %s● closed%s %s\n", client.ColorRed, client.ColorReset, args[0])
			return nil
		},
	}
}
