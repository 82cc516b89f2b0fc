// Package htmlutil extracts readable text from parsed html.
package htmlutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// GetText concatenates every text node below node in document order.
func GetText(node *html.Node) string {
	if node == nil {
		return ""
	}
	var out strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out.WriteString(n.Data)
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(node)
	return out.String()
}

// OwnText concatenates only the direct text children of node, so `<div>Label <span>+</span></div>`
// yields "Label ".
func OwnText(node *html.Node) string {
	if node == nil {
		return ""
	}
	var out strings.Builder
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			out.WriteString(child.Data)
		}
	}
	return out.String()
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanText drops control characters, trims s and collapses whitespace runs into one space.
func CleanText(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPrint(r) {
			return r
		}
		return -1
	}, s)
	return whitespaceRun.ReplaceAllString(strings.TrimSpace(s), " ")
}
