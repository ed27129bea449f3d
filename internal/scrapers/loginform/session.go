package loginform

import (
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"loginscraper/internal/components/assert"
	"loginscraper/internal/components/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"
)

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

const DefaultTimeout = 30 * time.Second

type SessionOptions struct {
	UserAgent string
	Timeout   time.Duration
	// CloudflareBypass wraps the transport with browser-like TLS settings and headers.
	CloudflareBypass bool
}

// Session is a cookie preserving http client. Cookies set by any response are replayed on
// every later request made through the same session. A session belongs to a single flow
// and is not meant to be shared.
type Session struct {
	http *resty.Client
	jar  http.CookieJar
}

func NewSession(tel telemetry.API, opts SessionOptions) (*Session, error) {
	assert.NotNil(tel, "telemetry")

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetCookieJar(jar)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("user-agent", userAgent)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	client.SetTimeout(timeout)

	telemetry.InstrumentResty(client, tel)

	return &Session{http: client, jar: jar}, nil
}

func (s *Session) page(op, endpoint string, res *resty.Response, err error) (Page, error) {
	if err != nil {
		return Page{}, &NetworkError{Op: op, Url: endpoint, Err: err}
	}
	finalUrl := endpoint
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalUrl = res.RawResponse.Request.URL.String()
	}
	return Page{
		Url:        finalUrl,
		StatusCode: res.StatusCode(),
		Ok:         res.IsSuccess(),
		Body:       res.Body(),
	}, nil
}

// Get fetches endpoint, an empty referer sends no Referer header.
func (s *Session) Get(ctx context.Context, endpoint, referer string) (Page, error) {
	req := s.http.R().SetContext(ctx)
	if referer != "" {
		req.SetHeader("Referer", referer)
	}
	res, err := req.Get(endpoint)
	return s.page(http.MethodGet, endpoint, res, err)
}

// PostForm posts an already encoded form body to endpoint.
func (s *Session) PostForm(ctx context.Context, endpoint, referer, body string) (Page, error) {
	req := s.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(body)
	if referer != "" {
		req.SetHeader("Referer", referer)
	}
	res, err := req.Post(endpoint)
	return s.page(http.MethodPost, endpoint, res, err)
}

// Cookies returns the cookies the session would send to u.
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	return s.jar.Cookies(u)
}

// Close releases idle connections, the session must not be used afterwards.
func (s *Session) Close() {
	s.http.GetClient().CloseIdleConnections()
}
