package commands

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"loginscraper/internal/components/telemetry"
	"loginscraper/internal/configutil"
	"loginscraper/internal/scrapers/loginform"
)

const defaultConfigName = "loginscrape.json5"

const (
	envUsername = "LOGINSCRAPE_USERNAME"
	envPassword = "LOGINSCRAPE_PASSWORD"
)

type Config struct {
	LoginUrl  string `json:"login_url"`
	TargetUrl string `json:"target_url"`
	Username  string `json:"username"`
	Password  string `json:"password"`

	Fields       loginform.FieldNames `json:"fields"`
	TokenQuery   string               `json:"token_query"`
	ListingQuery string               `json:"listing_query"`
	// LoginMarker is a css selector that only matches when the login form is shown,
	// finding it on the target page fails the run.
	LoginMarker string `json:"login_marker"`
	// SuccessMarker is a css selector that must match on the target page.
	SuccessMarker string `json:"success_marker"`
	StrictStatus  bool   `json:"strict_status"`

	UserAgent        string `json:"user_agent"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	CloudflareBypass bool   `json:"cloudflare_bypass"`

	Telemetry telemetry.Config `json:"telemetry"`
}

// loadConfig reads path when given explicitly, otherwise it looks for loginscrape.json5 in
// the working directory and its parents. A missing default config is not an error.
func loadConfig(path string) (Config, error) {
	if path != "" {
		cfg, err := configutil.ReadConfig[Config](path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		return cfg, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}
	cfg, err := configutil.ReadRecursively[Config](cwd, defaultConfigName)
	if errors.Is(err, os.ErrNotExist) {
		return Config{}, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(envUsername); ok {
		c.Username = v
	}
	if v, ok := os.LookupEnv(envPassword); ok {
		c.Password = v
	}
}

func validateUrl(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s: unsupported scheme %q", name, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s: missing host", name)
	}
	return nil
}

// validate only checks what is needed to make requests, credentials are passed through as is.
func (c Config) validate(needTarget bool) error {
	err := validateUrl("login_url", c.LoginUrl)
	if err != nil {
		return err
	}
	if !needTarget {
		return nil
	}
	return validateUrl("target_url", c.TargetUrl)
}

func (c Config) fetcherOptions() loginform.Options {
	checks := []loginform.LoginCheck{}
	if c.LoginMarker != "" {
		checks = append(checks, loginform.NoLoginForm(c.LoginMarker))
	}
	if c.SuccessMarker != "" {
		checks = append(checks, loginform.RequireMarker(c.SuccessMarker))
	}
	check := loginform.Permissive()
	if len(checks) > 0 {
		check = loginform.AllOf(checks...)
	}

	return loginform.Options{
		Fields:           c.Fields,
		TokenQuery:       c.TokenQuery,
		ListingQuery:     c.ListingQuery,
		LoginCheck:       check,
		StrictStatus:     c.StrictStatus,
		UserAgent:        c.UserAgent,
		Timeout:          time.Duration(c.TimeoutSeconds) * time.Second,
		CloudflareBypass: c.CloudflareBypass,
	}
}

func (c Config) credentials() loginform.Credentials {
	return loginform.Credentials{Username: c.Username, Password: c.Password}
}
