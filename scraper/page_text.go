// scraper/page_text.go
package scraper

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	horizontalSpaceRegex = regexp.MustCompile(`[ \t\x{00a0}]+`)
	blankLinesRegex      = regexp.MustCompile(`\n{2,}`)
)

// blockAtoms start a new line in the visible text. Everything else is inline
// and is concatenated, so "<b>18:30</b><i>ICN</i>" reads "18:30ICN".
var blockAtoms = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figure: true, atom.Footer: true, atom.Form: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Header: true, atom.Hr: true, atom.Li: true, atom.Main: true, atom.Nav: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Section: true, atom.Table: true,
	atom.Tbody: true, atom.Td: true, atom.Th: true, atom.Thead: true, atom.Tr: true, atom.Ul: true,
	atom.Button: true,
}

var hiddenAtoms = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
	atom.Head: true, atom.Svg: true,
}

// PageText returns the visible text of the first element matching selector,
// one line per block element. An empty selector or no match falls back to
// the document body.
func PageText(htmlStr, selector string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return "", fmt.Errorf("parse rendered HTML: %w", err)
	}

	root := doc.Selection
	if selector != "" {
		if sel := doc.Find(selector).First(); sel.Length() > 0 {
			root = sel
		}
	}
	if root == doc.Selection {
		if body := doc.Find("body").First(); body.Length() > 0 {
			root = body
		}
	}

	var b strings.Builder
	for _, n := range root.Nodes {
		writeVisible(&b, n)
	}
	return normalizeText(b.String()), nil
}

func writeVisible(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode:
		if hiddenAtoms[n.DataAtom] || hasAttr(n, "hidden") {
			return
		}
	case html.CommentNode, html.DoctypeNode:
		return
	}

	block := n.Type == html.ElementNode && blockAtoms[n.DataAtom]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeVisible(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(horizontalSpaceRegex.ReplaceAllString(l, " "))
	}
	text = blankLinesRegex.ReplaceAllString(strings.Join(lines, "\n"), "\n")
	return strings.TrimSpace(text)
}
