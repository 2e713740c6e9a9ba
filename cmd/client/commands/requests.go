package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dappbridge/internal/auth"
	"dappbridge/internal/client"
)

func loginCmd() *cobra.Command {
	var creds auth.Credentials
	cmd := &cobra.Command{
		Use:   "login <session>",
		Short: "Attach an account to a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(); err != nil {
				return err
			}
			ctx, cancel := timeout(cmd)
			defer cancel()

			resp, err := api.Login(ctx, args[0], token, creds)
			if err != nil {
				return err
			}
			client.PrintField("address", resp.Address, client.ColorGreen)
			if resp.PublicKey != "" {
				client.PrintField("public key", resp.PublicKey, client.ColorReset)
			}
			client.PrintField("kind", resp.Kind, client.ColorDim)
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.WIF, "wif", "", "private key (WIF or hex)")
	cmd.Flags().StringVar(&creds.Passphrase, "passphrase", "", "passphrase of the encrypted key")
	cmd.Flags().StringVar(&creds.EncryptedWIF, "encrypted", "", "NEP-2 encrypted key")
	cmd.Flags().StringVar(&creds.PublicKey, "public-key", "", "public key of an external signer")
	return cmd
}

func requestsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requests <session>",
		Short: "List pending requests in arrival order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(); err != nil {
				return err
			}
			ctx, cancel := timeout(cmd)
			defer cancel()

			pending, err := api.Requests(ctx, args[0], token)
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				client.PrintHint("no pending requests")
				return nil
			}
			for _, req := range pending {
				parts := make([]string, len(req.Args))
				for i, a := range req.Args {
					parts[i] = string(a)
				}
				fmt.Printf("  %s%-20s%s %s%s%s [%s]\n",
					client.ColorCyan, req.ID, client.ColorReset,
					client.ColorBold, req.Channel, client.ColorReset,
					strings.Join(parts, ", "))
			}
			return nil
		},
	}
}

func resolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <session> <id> [json-result]",
		Short: "Answer a request with a JSON result",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(); err != nil {
				return err
			}
			result := json.RawMessage("null")
			if len(args) == 3 {
				result = parseArg(args[2])
			}

			ctx, cancel := timeout(cmd)
			defer cancel()
			if err := api.Resolve(ctx, args[0], token, args[1], result); err != nil {
				return err
			}
			fmt.Printf("  ✅ %s resolved\n", args[1])
			return nil
		},
	}
}

func rejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <session> <id> [message]",
		Short: "Answer a request with an error message",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireToken(); err != nil {
				return err
			}
			message := ""
			if len(args) == 3 {
				message = args[2]
			}

			ctx, cancel := timeout(cmd)
			defer cancel()
			if err := api.Reject(ctx, args[0], token, args[1], message); err != nil {
				return err
			}
			fmt.Printf("  ❌ %s rejected\n", args[1])
			return nil
		},
	}
}

// parseArg keeps valid JSON as is and quotes anything else as a string.
func parseArg(s string) json.RawMessage {
	if json.Valid([]byte(s)) {
		return json.RawMessage(s)
	}
	b, _ := json.Marshal(s)
	return b
}
