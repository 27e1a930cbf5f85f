// ABOUTME: Minimal DOM query helpers for asserting on rendered HTML in tests.
// ABOUTME: Parses with golang.org/x/net/html and matches elements by tag, class, and attribute.
package domtest

import (
	"io"
	"slices"
	"strings"
	"testing"

	"golang.org/x/net/html"
)

// Matcher reports whether an element node matches.
type Matcher func(*html.Node) bool

// Tag matches elements by tag name.
func Tag(name string) Matcher {
	return func(n *html.Node) bool { return n.Data == name }
}

// Class matches elements carrying a CSS class.
func Class(class string) Matcher {
	return func(n *html.Node) bool {
		v, ok := Attr(n, "class")
		return ok && slices.Contains(strings.Fields(v), class)
	}
}

// HasAttr matches elements carrying an attribute, whatever its value.
func HasAttr(key string) Matcher {
	return func(n *html.Node) bool {
		_, ok := Attr(n, key)
		return ok
	}
}

// AttrIs matches elements whose attribute equals value.
func AttrIs(key, value string) Matcher {
	return func(n *html.Node) bool {
		v, ok := Attr(n, key)
		return ok && v == value
	}
}

// Doc is a parsed HTML document or fragment.
type Doc struct {
	t    testing.TB
	root *html.Node
}

// Parse parses markup, failing the test on error.
func Parse(t testing.TB, r io.Reader) *Doc {
	t.Helper()
	root, err := html.Parse(r)
	if err != nil {
		t.Fatalf("parse html: %v", err)
	}
	return &Doc{t: t, root: root}
}

// ParseString parses a markup string.
func ParseString(t testing.TB, s string) *Doc {
	t.Helper()
	return Parse(t, strings.NewReader(s))
}

// Root returns the document node.
func (d *Doc) Root() *html.Node { return d.root }

// Find returns every element under the document matching all matchers.
func (d *Doc) Find(ms ...Matcher) []*html.Node {
	return FindIn(d.root, ms...)
}

// One returns the single element matching all matchers, failing the test if
// there are zero or several.
func (d *Doc) One(ms ...Matcher) *html.Node {
	d.t.Helper()
	return OneIn(d.t, d.root, ms...)
}

// FindIn returns every element below n matching all matchers, in document order.
func FindIn(n *html.Node, ms ...Matcher) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && matches(c, ms) {
			out = append(out, c)
		}
		out = append(out, FindIn(c, ms...)...)
	}
	return out
}

// OneIn is One scoped to the subtree below n.
func OneIn(t testing.TB, n *html.Node, ms ...Matcher) *html.Node {
	t.Helper()
	found := FindIn(n, ms...)
	if len(found) != 1 {
		t.Fatalf("expected exactly one matching element, found %d", len(found))
	}
	return found[0]
}

// Children returns the element children of n matching all matchers.
func Children(n *html.Node, ms ...Matcher) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && matches(c, ms) {
			out = append(out, c)
		}
	}
	return out
}

func matches(n *html.Node, ms []Matcher) bool {
	for _, m := range ms {
		if !m(n) {
			return false
		}
	}
	return true
}

// Attr returns an attribute value.
func Attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Text returns the whitespace-trimmed text content of n.
func Text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}
