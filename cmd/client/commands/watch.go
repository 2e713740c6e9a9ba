package commands

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"dappbridge/internal/client"
	"dappbridge/internal/utils"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <surface-url>",
		Short: "Connect as a surface, send calls typed on stdin and print responses",
		Long: `Connect as a surface, send calls typed on stdin and print responses.

Each input line is "<channel> <id> [arg...]". Arguments that are valid JSON
are sent as is, anything else as a string. "open <url>" sends a new-window
event and "log <text>" a console message.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			surface, err := api.DialSurface(ctx, args[0])
			if err != nil {
				return err
			}
			defer surface.Close()

			client.PrintBanner()
			fmt.Printf("  %s● connected%s\n", client.ColorGreen, client.ColorReset)
			client.PrintSep()

			go func() {
				sc := bufio.NewScanner(os.Stdin)
				for sc.Scan() {
					if err := sendLine(surface, sc.Text()); err != nil {
						fmt.Printf("  %s%v%s\n", client.ColorRed, err, client.ColorReset)
					}
				}
			}()

			err = surface.Receive(ctx, func(channel string, payload json.RawMessage) {
				fmt.Print(utils.FormatResponse(channel, string(payload)))
			})
			fmt.Printf("  %s● disconnected%s\n", client.ColorRed, client.ColorReset)
			return err
		},
	}
}

func sendLine(surface *client.SurfaceConn, line string) error {
	fields := strings.Fields(line)
	switch {
	case len(fields) == 0:
		return nil
	case fields[0] == "open" && len(fields) == 2:
		return surface.OpenWindow(fields[1])
	case fields[0] == "log":
		return surface.Console(0, strings.TrimSpace(strings.TrimPrefix(line, "log")))
	case len(fields) < 2:
		return fmt.Errorf("usage: <channel> <id> [arg...]")
	}

	callArgs := make([]any, 0, len(fields)-2)
	for _, f := range fields[2:] {
		callArgs = append(callArgs, parseArg(f))
	}
	return surface.Call(fields[0], fields[1], callArgs...)
}
