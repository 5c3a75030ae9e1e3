// Package dom adapts captured page HTML to fileinfo.Document.
package dom

import (
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/net/html"

	"github.com/dgnsrekt/codehost_agent/internal/fileinfo"
)

// Document is an immutable parsed page. Nodes handed out are *html.Node.
type Document struct {
	url *url.URL
	doc *goquery.Document
}

// Parse reads HTML from r and binds it to pageURL, which must be absolute.
func Parse(pageURL string, r io.Reader) (*Document, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return nil, fmt.Errorf("dom: parse page url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("dom: page url %q is not absolute", pageURL)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("dom: parse html: %w", err)
	}
	return &Document{url: u, doc: doc}, nil
}

// ParseString is Parse over an in-memory HTML string.
func ParseString(pageURL, body string) (*Document, error) {
	return Parse(pageURL, strings.NewReader(body))
}

var _ fileinfo.Document = (*Document)(nil)

// selectors caches compiled selectors across documents. Host profiles are
// small and fixed, so the same few strings are compiled on every capture.
var selectors, _ = lru.New[string, cascadia.Selector](256)

// matcher compiles selector, a comma-separated group, once. An invalid
// selector matches nothing.
func matcher(selector string) (cascadia.Selector, bool) {
	if sel, ok := selectors.Get(selector); ok {
		return sel, sel != nil
	}
	sel, err := cascadia.Compile(selector)
	if err != nil {
		slog.Debug("dom invalid selector", "selector", selector, "error", err)
		sel = nil
	}
	selectors.Add(selector, sel)
	return sel, sel != nil
}

func (d *Document) find(selector string, scope fileinfo.Node) *goquery.Selection {
	m, ok := matcher(selector)
	if !ok {
		return d.doc.FindNodes()
	}
	return d.scope(scope).FindMatcher(m)
}

// URL returns a copy of the page URL.
func (d *Document) URL() *url.URL {
	u := *d.url
	return &u
}

func (d *Document) scope(scope fileinfo.Node) *goquery.Selection {
	if n, ok := scope.(*html.Node); ok && n != nil {
		return d.doc.FindNodes(n)
	}
	return d.doc.Selection
}

// QueryElement returns the first descendant of scope matching selector.
func (d *Document) QueryElement(selector string, scope fileinfo.Node) (fileinfo.Node, bool) {
	sel := d.find(selector, scope)
	if sel.Length() == 0 {
		return nil, false
	}
	return sel.Get(0), true
}

// QueryAll returns every descendant of scope matching selector, in document order.
func (d *Document) QueryAll(selector string, scope fileinfo.Node) []fileinfo.Node {
	sel := d.find(selector, scope)
	out := make([]fileinfo.Node, 0, sel.Length())
	for _, n := range sel.Nodes {
		out = append(out, n)
	}
	return out
}

// Attribute returns the named attribute of node.
func (d *Document) Attribute(node fileinfo.Node, name string) (string, bool) {
	n, ok := node.(*html.Node)
	if !ok || n == nil {
		return "", false
	}
	return d.doc.FindNodes(n).Attr(name)
}

// Text returns the combined text content of node.
func (d *Document) Text(node fileinfo.Node) string {
	n, ok := node.(*html.Node)
	if !ok || n == nil {
		return ""
	}
	return d.doc.FindNodes(n).Text()
}

// Title returns the document title, trimmed.
func (d *Document) Title() string {
	return strings.TrimSpace(d.doc.Find("title").First().Text())
}
