// Package extract pulls headline metadata out of a rendered HTML document.
package extract

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// MinParagraphLen is the shortest paragraph (in characters) accepted as the
// page's first meaningful paragraph. Shorter blocks are usually nav or badge
// fragments.
const MinParagraphLen = 20

// Fields holds the extracted metadata. Absent elements are nil.
type Fields struct {
	Title          *string `json:"title,omitempty"`
	H1             *string `json:"h1,omitempty"`
	FirstParagraph *string `json:"first_paragraph,omitempty"`
}

// Empty reports whether nothing was extracted.
func (f Fields) Empty() bool {
	return f.Title == nil && f.H1 == nil && f.FirstParagraph == nil
}

// Extract parses rendered HTML and returns the title, the first h1 in
// document order, and the first paragraph of at least MinParagraphLen
// characters. It never fails: unparseable input yields empty Fields.
func Extract(doc string) Fields {
	if strings.TrimSpace(doc) == "" {
		return Fields{}
	}
	root, err := html.Parse(strings.NewReader(doc))
	if err != nil {
		return Fields{}
	}

	var f Fields
	walk(root, &f)
	return f
}

func walk(n *html.Node, f *Fields) bool {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return false
		case atom.Title:
			// <title> inside inline SVG carries a namespace and is skipped.
			if f.Title == nil && n.Namespace == "" {
				f.Title = nonEmpty(textOf(n))
			}
			return false
		case atom.H1:
			if f.H1 == nil {
				f.H1 = nonEmpty(textOf(n))
			}
			return done(f)
		case atom.P:
			if f.FirstParagraph == nil {
				if text := textOf(n); utf8.RuneCountInString(text) >= MinParagraphLen {
					f.FirstParagraph = &text
				}
			}
			return done(f)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if walk(c, f) {
			return true
		}
	}
	return false
}

func done(f *Fields) bool {
	return f.Title != nil && f.H1 != nil && f.FirstParagraph != nil
}

// textOf returns the visible text under n with whitespace collapsed.
func textOf(n *html.Node) string {
	var sb strings.Builder
	collect(n, &sb)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func collect(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		case atom.Br:
			sb.WriteByte(' ')
			return
		}
	}
	block := n.Type == html.ElementNode && blockElements[n.DataAtom]
	if block {
		sb.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collect(c, sb)
	}
	if block {
		sb.WriteByte(' ')
	}
}

// blockElements separate words; inline elements such as <b> or <a> do not.
var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Figcaption: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Td: true, atom.Th: true, atom.Tr: true, atom.Ul: true,
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
