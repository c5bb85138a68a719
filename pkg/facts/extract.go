package facts

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Section is a heading with its extracted prose paragraphs.
type Section struct {
	Heading    string
	Paragraphs []string
}

// ExtractSections parses a Wikipedia HTML extract and returns the lead
// paragraphs plus each section's prose. Citation markers, styles and
// empty elements are stripped.
func ExtractSections(r io.Reader) (lead []string, sections []Section, err error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, nil, err
	}

	body := findBody(doc)
	if body == nil {
		body = doc
	}

	var current *Section
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.H2, atom.H3:
				heading := strings.TrimSpace(nodeText(n))
				if heading != "" {
					sections = append(sections, Section{Heading: heading})
					current = &sections[len(sections)-1]
				}
				return
			case atom.P:
				text := cleanParagraph(n)
				if text != "" {
					if current == nil {
						lead = append(lead, text)
					} else {
						current.Paragraphs = append(current.Paragraphs, text)
					}
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(body)

	return lead, sections, nil
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == atom.Body {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if res := findBody(c); res != nil {
			return res
		}
	}
	return nil
}

func cleanParagraph(p *html.Node) string {
	var b strings.Builder
	traverseParagraph(p, &b)
	return strings.TrimSpace(b.String())
}

func traverseParagraph(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}

	if n.Type == html.ElementNode {
		// Skip citation superscripts, styles and scripts inside paragraphs
		if n.DataAtom == atom.Sup || n.DataAtom == atom.Style || n.DataAtom == atom.Script {
			return
		}
		for _, a := range n.Attr {
			if a.Key == "class" && (strings.Contains(a.Val, "mw-empty-elt") || strings.Contains(a.Val, "reference")) {
				return
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		traverseParagraph(c, b)
	}
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	traverseParagraph(n, &b)
	return b.String()
}
