package commands

import (
	"fmt"
	"io"
	"log/slog"

	"loginscraper/internal/scrapers/loginform"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type scrapeFlags struct {
	loginUrl      string
	targetUrl     string
	username      string
	password      string
	listingQuery  string
	loginMarker   string
	successMarker string
	strict        bool
	plain         bool
}

func (f scrapeFlags) apply(cmd *cobra.Command, cfg *Config) {
	changed := cmd.Flags().Changed
	if changed("login-url") {
		cfg.LoginUrl = f.loginUrl
	}
	if changed("target-url") {
		cfg.TargetUrl = f.targetUrl
	}
	if changed("username") {
		cfg.Username = f.username
	}
	if changed("password") {
		cfg.Password = f.password
	}
	if changed("listing-query") {
		cfg.ListingQuery = f.listingQuery
	}
	if changed("verify-login") {
		cfg.LoginMarker = f.loginMarker
	}
	if changed("require-marker") {
		cfg.SuccessMarker = f.successMarker
	}
	if changed("strict") {
		cfg.StrictStatus = f.strict
	}
}

func renderListing(out io.Writer, listing loginform.Listing, plain bool) {
	if plain {
		for _, item := range listing.Items {
			fmt.Fprintln(out, item)
		}
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"#", "Item"})
	for i, item := range listing.Items {
		t.AppendRow(table.Row{i + 1, item})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d items", len(listing.Items))})
	t.SetStyle(table.StyleRounded)
	t.Render()

	fmt.Fprintf(out, "ok: %t\n", listing.Ok)
	fmt.Fprintf(out, "status: %d\n", listing.StatusCode)
}

func (a *app) scrapeCommand() *cobra.Command {
	flags := scrapeFlags{}
	cmd := &cobra.Command{
		Use:   "scrape [--login-url <url>] [--target-url <url>] [--username <name>] [--password <pass>]",
		Short: "Logs in and prints the items listed on the target page.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			flags.apply(cmd, &cfg)
			err := cfg.validate(true)
			if err != nil {
				return err
			}

			fetcher, err := loginform.NewFetcher(a.api, cfg.fetcherOptions())
			if err != nil {
				return err
			}

			slog.Info("scraping using user", "username", cfg.Username, "target", cfg.TargetUrl)
			listing, err := fetcher.FetchAuthenticatedListing(
				cmd.Context(),
				cfg.LoginUrl,
				cfg.TargetUrl,
				cfg.credentials(),
			)
			if err != nil {
				return err
			}
			if len(listing.Items) == 0 {
				slog.Warn("no items found, the login may have been rejected", "status", listing.StatusCode, "url", listing.Url)
			}

			renderListing(cmd.OutOrStdout(), listing, flags.plain)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.loginUrl, "login-url", "", "The page serving the login form.")
	cmd.Flags().StringVar(&flags.targetUrl, "target-url", "", "The authenticated page to scrape.")
	cmd.Flags().StringVar(&flags.username, "username", "", "The username to login with.")
	cmd.Flags().StringVar(&flags.password, "password", "", "The password to login with.")
	cmd.Flags().StringVar(&flags.listingQuery, "listing-query", "", "The xpath selecting the listed items.")
	cmd.Flags().StringVar(&flags.loginMarker, "verify-login", "", "Fail when this css selector matches the target page.")
	cmd.Flags().StringVar(&flags.successMarker, "require-marker", "", "Fail unless this css selector matches the target page.")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "Fail on any non 2xx response.")
	cmd.Flags().BoolVar(&flags.plain, "plain", false, "Print one item per line instead of a table.")
	return cmd
}
