package loginform

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

const (
	signinPath = "/account/signin/"
	reposPath  = "/dashboard/repositories"
)

type recordedRequest struct {
	Method  string
	Path    string
	Referer string
	Body    string
	Cookies map[string]string
}

// fakeSite imitates a django style login: the signin page sets a csrf cookie and renders a
// hidden token, the POST checks both and hands out a session cookie, the repositories page
// renders the listing for a valid session and the signin form otherwise.
type fakeSite struct {
	*httptest.Server

	mutex    sync.Mutex
	requests []recordedRequest
	issued   int

	// loginPage overrides the rendered signin page, %s is replaced with the issued token.
	loginPage string
	// rotateTokens issues a new token on every login page GET.
	rotateTokens bool
	// redirectAfterLogin answers a successful POST with a redirect to the repositories page.
	redirectAfterLogin bool
	loginStatus        int
	targetStatus       int
	repos              string

	username string
	password string
}

const defaultRepos = `<div class="repo-list--repo"><a href="/r1">proj1</a></div><div class="repo-list--repo"><a href="/r2">proj2</a></div>`

func newFakeSite(t testing.TB) *fakeSite {
	site := &fakeSite{
		loginPage: `<html><body><form method="post">
			<input type="hidden" name="csrfmiddlewaretoken" value="%s">
			<input type="text" name="username">
			<input type="password" name="password">
		</form></body></html>`,
		loginStatus:  http.StatusOK,
		targetStatus: http.StatusOK,
		repos:        defaultRepos,
		username:     "u",
		password:     "p",
	}

	mux := http.NewServeMux()
	mux.HandleFunc(signinPath, site.signin)
	mux.HandleFunc(reposPath, site.repositories)
	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site
}

func (s *fakeSite) LoginUrl() string {
	return s.URL + signinPath
}

func (s *fakeSite) TargetUrl() string {
	return s.URL + reposPath
}

func (s *fakeSite) record(r *http.Request) recordedRequest {
	body, _ := io.ReadAll(r.Body)
	cookies := map[string]string{}
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}
	req := recordedRequest{
		Method:  r.Method,
		Path:    r.URL.Path,
		Referer: r.Header.Get("Referer"),
		Body:    string(body),
		Cookies: cookies,
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.requests = append(s.requests, req)
	return req
}

func (s *fakeSite) Requests() []recordedRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]recordedRequest(nil), s.requests...)
}

func (s *fakeSite) currentToken() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.rotateTokens {
		return "TOK123"
	}
	return fmt.Sprintf("TOK%d", s.issued)
}

func (s *fakeSite) renderLogin(w http.ResponseWriter, status int) {
	s.mutex.Lock()
	s.issued++
	s.mutex.Unlock()

	token := s.currentToken()
	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "csrf-" + token, Path: "/"})
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	page := s.loginPage
	if strings.Contains(page, "%s") {
		page = strings.ReplaceAll(page, "%s", token)
	}
	fmt.Fprint(w, page)
}

func (s *fakeSite) signin(w http.ResponseWriter, r *http.Request) {
	req := s.record(r)

	if r.Method == http.MethodGet {
		s.renderLogin(w, s.loginStatus)
		return
	}

	form, err := url.ParseQuery(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	token := form.Get("csrfmiddlewaretoken")
	if token == "" || req.Cookies["csrftoken"] != "csrf-"+token || token != s.currentToken() {
		http.Error(w, "CSRF verification failed", http.StatusForbidden)
		return
	}
	if form.Get("username") != s.username || form.Get("password") != s.password {
		s.renderLogin(w, http.StatusOK)
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: "session-" + token, Path: "/"})
	if s.redirectAfterLogin {
		http.Redirect(w, r, reposPath, http.StatusFound)
		return
	}
	fmt.Fprint(w, "<html><body>welcome</body></html>")
}

func (s *fakeSite) repositories(w http.ResponseWriter, r *http.Request) {
	req := s.record(r)

	if !strings.HasPrefix(req.Cookies["sessionid"], "session-") {
		s.renderLogin(w, http.StatusOK)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(s.targetStatus)
	fmt.Fprintf(w, "<html><body>%s</body></html>", s.repos)
}
