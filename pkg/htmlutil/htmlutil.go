package htmlutil

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"unicode"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Parse parses an html document, html.Parse only fails on reader errors so malformed markup
// still produces a tree.
func Parse(body []byte) (*html.Node, error) {
	return htmlquery.Parse(bytes.NewReader(body))
}

// ParseReader is Parse for a stream.
func ParseReader(r io.Reader) (*html.Node, error) {
	return htmlquery.Parse(r)
}

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

var innerWhitespace = regexp.MustCompile(`\s\s+`)

func removeNonPrintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, s)
}

// Normalize strips non printable characters, trims and collapses runs of whitespace.
func Normalize(s string) string {
	s = removeNonPrintable(s)
	s = strings.TrimSpace(s)
	return innerWhitespace.ReplaceAllString(s, " ")
}

// QueryValues evaluates an xpath expression against root and returns the string value of every
// match in document order. Attribute matches yield the attribute value, element and text
// matches yield their text content.
func QueryValues(root *html.Node, expr string) ([]string, error) {
	nodes, err := htmlquery.QueryAll(root, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath %q: %w", expr, err)
	}
	values := make([]string, 0, len(nodes))
	for _, n := range nodes {
		values = append(values, htmlquery.InnerText(n))
	}
	return values, nil
}

// Distinct removes repeated values, keeping the first occurrence of each.
func Distinct(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
