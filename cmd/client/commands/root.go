package commands

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"dappbridge/internal/client"
	"dappbridge/internal/constants"
	"dappbridge/internal/utils"
)

var (
	serverURL string
	token     string
	api       *client.Client
)

func Execute() error {
	root := &cobra.Command{
		Use:           constants.AppName,
		Short:         "Operate dApp request bridge sessions",
		Version:       constants.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			api = client.New(serverURL)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&serverURL, "server", utils.GetEnv("DAPPBRIDGE_SERVER", constants.DefaultServerURL), "bridge host URL")
	root.PersistentFlags().StringVar(&token, "token", utils.GetEnv("DAPPBRIDGE_TOKEN", ""), "operator token of the session")

	root.AddCommand(sessionCmd(), loginCmd(), requestsCmd(), resolveCmd(), rejectCmd(), watchCmd(), keyCmd())
	return root.Execute()
}

func requireToken() error {
	if token == "" {
		return errors.New("operator token required (--token or DAPPBRIDGE_TOKEN)")
	}
	return nil
}

func timeout(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 30*time.Second)
}
