package commands

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const loginPage = `<form method="post"><input type="hidden" name="csrfmiddlewaretoken" value="TOK123"></form>`

func newSite(t testing.TB) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, loginPage)
			return
		}
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		if form.Get("csrfmiddlewaretoken") != "TOK123" || form.Get("password") != "secret" {
			fmt.Fprint(w, loginPage)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "ok", Path: "/"})
		fmt.Fprint(w, "welcome")
	})
	mux.HandleFunc("/repos", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sessionid"); err != nil || c.Value != "ok" {
			fmt.Fprint(w, loginPage)
			return
		}
		fmt.Fprint(w, `<div class="repo-list--repo"><a href="/r1">proj1</a></div><div class="repo-list--repo"><a href="/r2">proj2</a></div>`)
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeConfig(t testing.TB, server *httptest.Server, extra string) string {
	path := filepath.Join(t.TempDir(), "loginscrape.json5")
	contents := fmt.Sprintf(`{
		login_url: "%s/login",
		target_url: "%s/repos",
		username: "u",
		password: "secret",
		%s
	}`, server.URL, server.URL, extra)
	err := os.WriteFile(path, []byte(contents), 0600)
	if err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t testing.TB, args ...string) (string, error) {
	a := &app{}
	root := a.rootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	a.shutdown()
	return out.String(), err
}

func TestScrapePlain(t *testing.T) {
	server := newSite(t)
	config := writeConfig(t, server, "")

	out, err := run(t, "--config", config, "scrape", "--plain")
	require.NoError(t, err)
	require.Equal(t, "proj1\nproj2\n", out)
}

func TestScrapeTable(t *testing.T) {
	server := newSite(t)
	config := writeConfig(t, server, "")

	out, err := run(t, "--config", config, "scrape")
	require.NoError(t, err)
	require.Contains(t, out, "proj1")
	require.Contains(t, out, "proj2")
	// go-pretty upper cases footers
	require.Contains(t, strings.ToLower(out), "2 items")
	require.Contains(t, out, "ok: true")
	require.Contains(t, out, "status: 200")
}

func TestScrapeWrongPassword(t *testing.T) {
	server := newSite(t)
	config := writeConfig(t, server, "")

	out, err := run(t, "--config", config, "scrape", "--plain", "--password", "wrong")
	require.NoError(t, err)
	require.Equal(t, "", out)

	_, err = run(t, "--config", config, "scrape", "--password", "wrong", "--verify-login", "input[name=csrfmiddlewaretoken]")
	require.Error(t, err)
	require.Contains(t, err.Error(), "login failed")
}

func TestScrapeEnvCredentials(t *testing.T) {
	server := newSite(t)
	config := writeConfig(t, server, "")

	t.Setenv(envPassword, "wrong")
	out, err := run(t, "--config", config, "scrape", "--plain")
	require.NoError(t, err)
	require.Equal(t, "", out)

	t.Setenv(envPassword, "secret")
	out, err = run(t, "--config", config, "scrape", "--plain")
	require.NoError(t, err)
	require.Equal(t, "proj1\nproj2\n", out)
}

func TestScrapeLocalOverride(t *testing.T) {
	server := newSite(t)
	config := writeConfig(t, server, "")
	local := strings.TrimSuffix(config, ".json5") + ".local.json5"
	require.NoError(t, os.WriteFile(local, []byte(`{listing_query: "//div[@class='repo-list--repo'][2]/a"}`), 0600))

	out, err := run(t, "--config", config, "scrape", "--plain")
	require.NoError(t, err)
	require.Equal(t, "proj2\n", out)
}

func TestToken(t *testing.T) {
	server := newSite(t)
	config := writeConfig(t, server, "")

	out, err := run(t, "--config", config, "token")
	require.NoError(t, err)
	require.Equal(t, "TOK123\n", out)
}

func TestConfigValidation(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "missing.json5"), "scrape")
	require.ErrorIs(t, err, os.ErrNotExist)

	server := newSite(t)
	config := writeConfig(t, server, "")

	_, err = run(t, "--config", config, "scrape", "--target-url", "")
	require.Error(t, err)
	require.Contains(t, err.Error(), "target_url is required")

	_, err = run(t, "--config", config, "scrape", "--login-url", "ftp://example.com/login")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported scheme")

	_, err = run(t, "--config", config, "scrape", "--listing-query", "//div[")
	require.Error(t, err)
}

func TestFetcherOptions(t *testing.T) {
	cfg := Config{TimeoutSeconds: 5}
	opts := cfg.fetcherOptions()
	require.NotNil(t, opts.LoginCheck)
	require.Equal(t, "5s", opts.Timeout.String())
	require.False(t, opts.StrictStatus)
}
