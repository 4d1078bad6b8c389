package reference

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

const maxLeadLength = 600

// Page is the part of a reference article shown next to a conflict
type Page struct {
	Title     string `json:"title"`
	Lead      string `json:"lead"`
	Canonical string `json:"canonical,omitempty"`
}

// ParsePage extracts the title, canonical link and lead paragraph of an HTML article.
// Wikipedia pages use the first paragraph of the parser output; other pages use the
// first paragraph with real text.
func ParsePage(body []byte) (*Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &Page{}

	if title := findFirst(doc, isElement("title")); title != nil {
		page.Title = cleanTitle(textOf(title))
	}
	if h1 := findFirst(doc, func(n *html.Node) bool {
		return isElement("h1")(n) && attr(n, "id") == "firstHeading"
	}); h1 != nil {
		page.Title = textOf(h1)
	}

	if link := findFirst(doc, func(n *html.Node) bool {
		return isElement("link")(n) && attr(n, "rel") == "canonical"
	}); link != nil {
		page.Canonical = attr(link, "href")
	}

	root := findFirst(doc, func(n *html.Node) bool {
		return isElement("div")(n) && hasClass(n, "mw-parser-output")
	})
	if root == nil {
		root = doc
	}

	for _, p := range findAll(root, isElement("p")) {
		if insideSkipped(p) {
			continue
		}
		text := textOf(p)
		if len(text) < 40 {
			continue
		}
		page.Lead = truncate(text, maxLeadLength)
		break
	}

	return page, nil
}

// cleanTitle drops the " - Wikipedia" style site suffix
func cleanTitle(title string) string {
	for _, sep := range []string{" - ", " | "} {
		if idx := strings.LastIndex(title, sep); idx > 0 {
			return strings.TrimSpace(title[:idx])
		}
	}
	return title
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndex(s[:n], " ")
	if cut <= 0 {
		cut = n
	}
	return s[:cut] + "..."
}

func insideSkipped(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type != html.ElementNode {
			continue
		}
		if p.Data == "table" || p.Data == "nav" || p.Data == "footer" {
			return true
		}
		if hasClass(p, "infobox") || hasClass(p, "navbox") || hasClass(p, "hatnote") {
			return true
		}
	}
	return false
}

func isElement(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == tag
	}
}

// textOf joins the text of n, skipping citation markers and styles
func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
			return
		}
		if node.Type == html.ElementNode {
			if node.Data == "style" || node.Data == "script" || (node.Data == "sup" && hasClass(node, "reference")) {
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if match(node) {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}
