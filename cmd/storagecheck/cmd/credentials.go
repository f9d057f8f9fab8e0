package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func WhoAmICmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show who the storage credentials belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := env.withTimeout(cmd.Context())
			defer cancel()

			creds, err := env.Credentials()
			if err != nil {
				return err
			}
			identity, err := creds.ValidateCredentials(ctx)
			if err != nil {
				return err
			}

			fmt.Fprintf(env.Out, "Account: %s\nARN:     %s\nUserID:  %s\n", identity.Account, identity.ARN, identity.UserID)
			return nil
		},
	}
}

func LoginCmd(env *Env) *cobra.Command {
	var accessKey, secretKey string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store storage keys in the OS keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if accessKey == "" || secretKey == "" {
				return errors.New("--access-key and --secret-key are required")
			}
			creds, err := env.Credentials()
			if err != nil {
				return err
			}
			if err := creds.StoreCredentials(accessKey, secretKey); err != nil {
				return err
			}
			fmt.Fprintln(env.Out, "Credentials stored")
			return nil
		},
	}

	cmd.Flags().StringVar(&accessKey, "access-key", "", "access key id")
	cmd.Flags().StringVar(&secretKey, "secret-key", "", "secret access key")
	return cmd
}

func LogoutCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove storage keys from the OS keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			creds, err := env.Credentials()
			if err != nil {
				return err
			}
			if err := creds.ClearCredentials(); err != nil {
				return err
			}
			fmt.Fprintln(env.Out, "Credentials removed")
			return nil
		},
	}
}
