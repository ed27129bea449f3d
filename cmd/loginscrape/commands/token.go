package commands

import (
	"fmt"

	"loginscraper/internal/scrapers/loginform"

	"github.com/spf13/cobra"
)

func (a *app) tokenCommand() *cobra.Command {
	var loginUrl string
	cmd := &cobra.Command{
		Use:   "token [--login-url <url>]",
		Short: "Fetches the login page once and prints its anti-forgery token.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("login-url") {
				cfg.LoginUrl = loginUrl
			}
			err := cfg.validate(false)
			if err != nil {
				return err
			}

			fetcher, err := loginform.NewFetcher(a.api, cfg.fetcherOptions())
			if err != nil {
				return err
			}
			token, err := fetcher.FetchToken(cmd.Context(), cfg.LoginUrl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&loginUrl, "login-url", "", "The page serving the login form.")
	return cmd
}
