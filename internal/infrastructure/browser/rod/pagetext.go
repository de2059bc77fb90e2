package rod

import (
	"strings"

	"golang.org/x/net/html"
)

const defaultTextLimit = 20000

// skippedTags carry no visible text worth showing to the model.
var skippedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
	"iframe":   true,
	"head":     true,
	"template": true,
}

// ExtractPageText turns raw page HTML into the compact text observation the
// model receives: visible text only, whitespace collapsed, links kept as
// "text (href)", truncated to maxSize.
func ExtractPageText(rawHTML string, maxSize int) string {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		// Fallback: better a raw observation than none.
		return truncateText(rawHTML, maxSize)
	}

	var sb strings.Builder
	walkText(doc, &sb)
	return truncateText(collapseWhitespace(sb.String()), maxSize)
}

func walkText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.CommentNode:
		return
	case html.ElementNode:
		if skippedTags[n.Data] {
			return
		}
		if n.Data == "a" {
			writeLink(n, sb)
			return
		}
		if isBlockTag(n.Data) {
			sb.WriteString("\n")
		}
	case html.TextNode:
		sb.WriteString(n.Data)
		sb.WriteString(" ")
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, sb)
	}
}

func writeLink(n *html.Node, sb *strings.Builder) {
	var text strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, &text)
	}
	label := strings.TrimSpace(text.String())
	if label == "" {
		return
	}
	sb.WriteString(label)
	for _, attr := range n.Attr {
		if attr.Key == "href" && attr.Val != "" && !strings.HasPrefix(attr.Val, "#") {
			sb.WriteString(" (")
			sb.WriteString(attr.Val)
			sb.WriteString(")")
			break
		}
	}
	sb.WriteString(" ")
}

func isBlockTag(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "li", "tr", "br",
		"h1", "h2", "h3", "h4", "h5", "h6", "table", "ul", "ol", "form":
		return true
	}
	return false
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

func truncateText(s string, maxSize int) string {
	if maxSize > 0 && len(s) > maxSize {
		return s[:maxSize] + "\n... (truncated)"
	}
	return s
}
