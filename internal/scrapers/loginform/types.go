package loginform

import (
	"net/url"
	"strings"
)

// Credentials are passed through to the login form as is, no shape validation happens.
type Credentials struct {
	Username string
	Password string
}

// FieldNames are the form field names a site expects in its login POST.
type FieldNames struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Token    string `json:"token"`
}

// DefaultFieldNames matches a stock django login form.
var DefaultFieldNames = FieldNames{
	Username: "username",
	Password: "password",
	Token:    "csrfmiddlewaretoken",
}

func (f FieldNames) withDefaults() FieldNames {
	if f.Username == "" {
		f.Username = DefaultFieldNames.Username
	}
	if f.Password == "" {
		f.Password = DefaultFieldNames.Password
	}
	if f.Token == "" {
		f.Token = DefaultFieldNames.Token
	}
	return f
}

// LoginPayload is the body of exactly one login POST, the token must come from the login page
// fetched right before it.
type LoginPayload struct {
	Fields      FieldNames
	Credentials Credentials
	Token       string
}

func NewLoginPayload(fields FieldNames, creds Credentials, token string) LoginPayload {
	return LoginPayload{
		Fields:      fields.withDefaults(),
		Credentials: creds,
		Token:       token,
	}
}

// Encode renders the payload as a form body, fields are always in the order username,
// password, token.
func (p LoginPayload) Encode() string {
	pairs := [][2]string{
		{p.Fields.Username, p.Credentials.Username},
		{p.Fields.Password, p.Credentials.Password},
		{p.Fields.Token, p.Token},
	}

	var out strings.Builder
	for i, pair := range pairs {
		if i > 0 {
			out.WriteByte('&')
		}
		out.WriteString(url.QueryEscape(pair[0]))
		out.WriteByte('=')
		out.WriteString(url.QueryEscape(pair[1]))
	}
	return out.String()
}

// Page is a fetched response.
type Page struct {
	// Url is the url the response was served from, after redirects.
	Url        string
	StatusCode int
	Ok         bool
	Body       []byte
}

// Listing is the result of one authenticated scrape. Ok and StatusCode describe the last
// response (the target page) and are diagnostics only.
type Listing struct {
	Items      []string
	Ok         bool
	StatusCode int
	Url        string
}
