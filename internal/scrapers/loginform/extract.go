package loginform

import (
	"fmt"

	"loginscraper/pkg/htmlutil"

	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
)

const DefaultListingQuery = "//div[@class='repo-list--repo']/a/text()"

// TokenQuery is the xpath selecting the value of the hidden input named field.
func TokenQuery(field string) string {
	return fmt.Sprintf("//input[@name='%s']/@value", field)
}

func compileQuery(expr string) error {
	_, err := xpath.Compile(expr)
	if err != nil {
		return &ParseError{Query: expr, Err: err}
	}
	return nil
}

// TokenCandidates returns the distinct non-empty values matched by query, in document order.
func TokenCandidates(root *html.Node, query string) ([]string, error) {
	values, err := htmlutil.QueryValues(root, query)
	if err != nil {
		return nil, &ParseError{Query: query, Err: err}
	}
	candidates := []string{}
	for _, v := range htmlutil.Distinct(values) {
		if v != "" {
			candidates = append(candidates, v)
		}
	}
	return candidates, nil
}

// ExtractToken returns the anti-forgery token of a login page. The document may repeat the
// hidden input, the first distinct value is the representative.
func ExtractToken(root *html.Node, query string) (string, error) {
	candidates, err := TokenCandidates(root, query)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", &ParseError{Query: query, Err: ErrTokenNotFound}
	}
	return candidates[0], nil
}

// ExtractListing returns the normalized, non-empty text of every match of query in document
// order. No match is an empty listing, not an error.
func ExtractListing(root *html.Node, query string) ([]string, error) {
	values, err := htmlutil.QueryValues(root, query)
	if err != nil {
		return nil, &ParseError{Query: query, Err: err}
	}
	items := []string{}
	for _, v := range values {
		v = htmlutil.Normalize(v)
		if v == "" {
			continue
		}
		items = append(items, v)
	}
	return items, nil
}
