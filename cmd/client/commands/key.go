package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dappbridge/internal/auth"
	"dappbridge/internal/client"
	"dappbridge/internal/wallet"
)

func keyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Offline key tools",
	}
	cmd.AddCommand(keyAddressCmd(), keyEncryptCmd(), keyDecryptCmd())
	return cmd
}

func keyAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address <wif|hex|public-key>",
		Short: "Print the address of a private or public key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if k, err := wallet.ParseKey(args[0]); err == nil {
				defer k.Wipe()
				client.PrintField("address", k.Address(), client.ColorGreen)
				client.PrintField("public key", k.PublicKey().String(), client.ColorReset)
				return nil
			}
			p, err := wallet.ParsePublicKey(args[0])
			if err != nil {
				return errors.New("not a private key, WIF or public key")
			}
			client.PrintField("address", p.Address(), client.ColorGreen)
			client.PrintField("public key", p.String(), client.ColorReset)
			return nil
		},
	}
}

func keyEncryptCmd() *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "encrypt <wif|hex>",
		Short: "Encrypt a private key with a passphrase (NEP-2)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len([]rune(passphrase)) < auth.MinPassphraseLength {
				return auth.ErrPassphraseTooShort
			}
			k, err := wallet.ParseKey(args[0])
			if err != nil {
				return err
			}
			defer k.Wipe()

			enc, err := wallet.EncryptNEP2(k, passphrase)
			if err != nil {
				return err
			}
			client.PrintField("address", k.Address(), client.ColorGreen)
			client.PrintField("encrypted", enc, client.ColorYellow)
			return nil
		},
	}
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase")
	cmd.MarkFlagRequired("passphrase")
	return cmd
}

func keyDecryptCmd() *cobra.Command {
	var passphrase string
	cmd := &cobra.Command{
		Use:   "decrypt <nep2>",
		Short: "Check a passphrase against an encrypted key and print its address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			acct, err := auth.Authenticate(auth.Credentials{Passphrase: passphrase, EncryptedWIF: args[0]})
			if err != nil {
				return err
			}
			client.PrintField("address", acct.Address, client.ColorGreen)
			fmt.Printf("  %s%-12s%s %s\n", client.ColorDim, "wif", client.ColorReset, acct.WIF)
			return nil
		},
	}
	cmd.Flags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase")
	cmd.MarkFlagRequired("passphrase")
	return cmd
}
