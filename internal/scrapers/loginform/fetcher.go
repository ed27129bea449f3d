// fetcher.go contains the authenticate-then-scrape flow: fetch the login page, pull the
// anti-forgery token out of it, post the credentials with the token, then fetch and scrape the
// protected page with the same cookies.

package loginform

import (
	"context"
	"fmt"
	"time"

	"loginscraper/internal/components/assert"
	"loginscraper/internal/components/telemetry"
	"loginscraper/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("scrapers/loginform")

const (
	report_fetcher_open_session    = "fetcher.open-session"
	report_fetcher_get_login_page  = "fetcher.get-login-page"
	report_fetcher_extract_token   = "fetcher.extract-token"
	report_fetcher_submit_login    = "fetcher.submit-login"
	report_fetcher_get_target_page = "fetcher.get-target-page"
	report_fetcher_check_login     = "fetcher.check-login"
	report_fetcher_extract_listing = "fetcher.extract-listing"
	report_fetcher_items           = "fetcher.items"
)

type Options struct {
	Fields FieldNames
	// TokenQuery defaults to TokenQuery(Fields.Token).
	TokenQuery string
	// ListingQuery defaults to DefaultListingQuery.
	ListingQuery string
	// LoginCheck defaults to Permissive.
	LoginCheck LoginCheck
	// StrictStatus turns a non 2xx response on any request into an HttpStatusError.
	StrictStatus bool

	UserAgent        string
	Timeout          time.Duration
	CloudflareBypass bool
}

// Fetcher holds configuration only, every call opens and closes its own Session.
type Fetcher struct {
	opts Options
	tel  telemetry.API
}

func NewFetcher(tel telemetry.API, opts Options) (*Fetcher, error) {
	assert.NotNil(tel, "telemetry")

	opts.Fields = opts.Fields.withDefaults()
	if opts.TokenQuery == "" {
		opts.TokenQuery = TokenQuery(opts.Fields.Token)
	}
	if opts.ListingQuery == "" {
		opts.ListingQuery = DefaultListingQuery
	}
	if opts.LoginCheck == nil {
		opts.LoginCheck = Permissive()
	}

	for _, query := range []string{opts.TokenQuery, opts.ListingQuery} {
		err := compileQuery(query)
		if err != nil {
			return nil, err
		}
	}

	return &Fetcher{
		opts: opts,
		tel:  telemetry.NewScopedAPI("loginform", tel),
	}, nil
}

func (f *Fetcher) openSession() (*Session, error) {
	session, err := NewSession(f.tel, SessionOptions{
		UserAgent:        f.opts.UserAgent,
		Timeout:          f.opts.Timeout,
		CloudflareBypass: f.opts.CloudflareBypass,
	})
	if err != nil {
		f.tel.ReportBroken(report_fetcher_open_session, err)
		return nil, fmt.Errorf("open session: %w", err)
	}
	return session, nil
}

func fail(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

func (f *Fetcher) checkStatus(op string, page Page) error {
	if !f.opts.StrictStatus || page.Ok {
		return nil
	}
	return &HttpStatusError{Op: op, Url: page.Url, StatusCode: page.StatusCode}
}

func (f *Fetcher) fetchToken(ctx context.Context, session *Session, loginUrl string) (string, error) {
	ctx, span := tracer.Start(ctx, "fetcher:fetchToken")
	defer span.End()

	f.tel.ReportDebug("get login page", loginUrl)

	page, err := session.Get(ctx, loginUrl, "")
	if err != nil {
		fail(span, err, "failed to fetch login page")
		f.tel.ReportBroken(report_fetcher_get_login_page, err)
		return "", err
	}
	span.SetAttributes(attribute.Int("login_page.status_code", page.StatusCode))
	err = f.checkStatus("GET", page)
	if err != nil {
		fail(span, err, "login page status")
		f.tel.ReportBroken(report_fetcher_get_login_page, err)
		return "", err
	}

	doc, err := htmlutil.Parse(page.Body)
	if err != nil {
		fail(span, err, "failed to parse login page")
		f.tel.ReportBroken(report_fetcher_extract_token, fmt.Errorf("parse login page: %w", err))
		return "", &ParseError{Query: f.opts.TokenQuery, Err: err}
	}

	candidates, err := TokenCandidates(doc, f.opts.TokenQuery)
	if err != nil {
		fail(span, err, "token query")
		f.tel.ReportBroken(report_fetcher_extract_token, err)
		return "", err
	}
	if len(candidates) == 0 {
		err := &ParseError{Query: f.opts.TokenQuery, Err: ErrTokenNotFound}
		fail(span, err, "failed to find login token")
		f.tel.ReportBroken(report_fetcher_extract_token, err, loginUrl)
		return "", err
	}
	if len(candidates) > 1 {
		f.tel.ReportWarning(
			report_fetcher_extract_token,
			fmt.Errorf("found %d distinct tokens, using the first", len(candidates)),
			loginUrl,
		)
	}
	return candidates[0], nil
}

func (f *Fetcher) submitLogin(ctx context.Context, session *Session, loginUrl string, payload LoginPayload) error {
	ctx, span := tracer.Start(ctx, "fetcher:submitLogin")
	defer span.End()

	f.tel.ReportDebug("submit login", loginUrl, payload.Credentials.Username)

	page, err := session.PostForm(ctx, loginUrl, loginUrl, payload.Encode())
	if err != nil {
		fail(span, err, "failed to make login request")
		f.tel.ReportBroken(report_fetcher_submit_login, err)
		return err
	}
	span.SetAttributes(attribute.Int("login.status_code", page.StatusCode))
	err = f.checkStatus("POST", page)
	if err != nil {
		fail(span, err, "login status")
		f.tel.ReportBroken(report_fetcher_submit_login, err)
		return err
	}
	return nil
}

func (f *Fetcher) fetchTarget(ctx context.Context, session *Session, targetUrl string) (Page, *html.Node, error) {
	ctx, span := tracer.Start(ctx, "fetcher:fetchTarget")
	defer span.End()

	f.tel.ReportDebug("get target page", targetUrl)

	page, err := session.Get(ctx, targetUrl, targetUrl)
	if err != nil {
		fail(span, err, "failed to fetch target page")
		f.tel.ReportBroken(report_fetcher_get_target_page, err)
		return Page{}, nil, err
	}
	span.SetAttributes(attribute.Int("target.status_code", page.StatusCode))
	err = f.checkStatus("GET", page)
	if err != nil {
		fail(span, err, "target page status")
		f.tel.ReportBroken(report_fetcher_get_target_page, err)
		return Page{}, nil, err
	}

	doc, err := htmlutil.Parse(page.Body)
	if err != nil {
		fail(span, err, "failed to parse target page")
		f.tel.ReportBroken(report_fetcher_extract_listing, fmt.Errorf("parse target page: %w", err))
		return Page{}, nil, &ParseError{Query: f.opts.ListingQuery, Err: err}
	}
	return page, doc, nil
}

// FetchToken fetches the login page in a fresh session and returns its anti-forgery token.
func (f *Fetcher) FetchToken(ctx context.Context, loginUrl string) (string, error) {
	session, err := f.openSession()
	if err != nil {
		return "", err
	}
	defer session.Close()

	return f.fetchToken(ctx, session, loginUrl)
}

// FetchAuthenticatedListing logs into loginUrl with creds and scrapes targetUrl with the
// resulting session. The requests are strictly sequential: login page GET, login POST, target
// GET. Any failure aborts the rest of the sequence, nothing is retried.
//
// With the default Permissive check a rejected login is not detected, the listing of the
// unauthenticated target page is returned instead (usually empty).
func (f *Fetcher) FetchAuthenticatedListing(ctx context.Context, loginUrl, targetUrl string, creds Credentials) (Listing, error) {
	ctx, span := tracer.Start(ctx, "fetcher:FetchAuthenticatedListing", trace.WithAttributes(
		attribute.String("login_url", loginUrl),
		attribute.String("target_url", targetUrl),
	))
	defer span.End()

	session, err := f.openSession()
	if err != nil {
		fail(span, err, "open session")
		return Listing{}, err
	}
	defer session.Close()

	token, err := f.fetchToken(ctx, session, loginUrl)
	if err != nil {
		fail(span, err, "fetch token")
		return Listing{}, fmt.Errorf("login page: %w", err)
	}

	payload := NewLoginPayload(f.opts.Fields, creds, token)
	err = f.submitLogin(ctx, session, loginUrl, payload)
	if err != nil {
		fail(span, err, "submit login")
		return Listing{}, fmt.Errorf("submit login: %w", err)
	}

	page, doc, err := f.fetchTarget(ctx, session, targetUrl)
	if err != nil {
		fail(span, err, "fetch target")
		return Listing{}, fmt.Errorf("target page: %w", err)
	}

	err = f.opts.LoginCheck(goquery.NewDocumentFromNode(doc))
	if err != nil {
		fail(span, err, "login check")
		f.tel.ReportWarning(report_fetcher_check_login, err, targetUrl)
		return Listing{}, err
	}

	items, err := ExtractListing(doc, f.opts.ListingQuery)
	if err != nil {
		fail(span, err, "extract listing")
		f.tel.ReportBroken(report_fetcher_extract_listing, err)
		return Listing{}, fmt.Errorf("target page: %w", err)
	}
	f.tel.ReportCount(report_fetcher_items, int64(len(items)))
	span.SetAttributes(attribute.Int("items", len(items)))

	return Listing{
		Items:      items,
		Ok:         page.Ok,
		StatusCode: page.StatusCode,
		Url:        page.Url,
	}, nil
}
