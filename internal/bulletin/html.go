package bulletin

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// lineMark stands in for a line break until source whitespace is collapsed.
const lineMark = "\uE000"

const (
	paragraphs  = "p, h1, h2, h3, h4, h5, h6, ul, ol, table"
	lineBreaker = "div, li, tr, dt, dd"
)

var (
	spaceRun   = regexp.MustCompile(`[\s\x{00A0}]+`)
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// HTMLToText renders bulletin HTML as plain text. Paragraph-level elements
// end with a blank line, list items become "- " lines and table cells are
// separated by spaces, which is the shape the parser's section rules expect.
func HTMLToText(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}

	doc.Find("script, style, noscript, head").Remove()
	doc.Find("br").ReplaceWithHtml(lineMark)
	doc.Find("li").PrependHtml("- ")
	doc.Find("td, th").AppendHtml(" ")
	doc.Find(lineBreaker).AppendHtml(lineMark)
	doc.Find(paragraphs).AppendHtml(lineMark + lineMark)

	text := doc.Text()
	text = spaceRun.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, lineMark, "\n")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text) + "\n", nil
}
