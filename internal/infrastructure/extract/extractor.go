// Package extract normalizes PDF, HTML, and plain-text payloads into a single
// whitespace-collapsed text stream suitable for summarization.
package extract

import (
	"bytes"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"CivicScanner/internal/domain"
	"CivicScanner/internal/ports"
)

// ContentType is the coarse classification used to pick an extraction path.
type ContentType string

const (
	PDF       ContentType = "application/pdf"
	HTML      ContentType = "text/html"
	PlainText ContentType = "text/plain"
)

// boilerplateSelectors lists elements dropped before reading visible text.
const boilerplateSelectors = "script, style, nav, header, footer, noscript"

// SniffContentType classifies a payload. A recognizable header wins, then the
// name or URL suffix, then plain text.
func SniffContentType(nameOrURL, header string) ContentType {
	h := strings.ToLower(header)
	switch {
	case strings.Contains(h, "pdf"):
		return PDF
	case strings.Contains(h, "html"):
		return HTML
	case strings.HasPrefix(strings.TrimSpace(h), "text/"):
		return PlainText
	}

	name := strings.ToLower(strings.TrimSpace(nameOrURL))
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	switch {
	case strings.HasSuffix(name, ".pdf"):
		return PDF
	case strings.HasSuffix(name, ".html"), strings.HasSuffix(name, ".htm"):
		return HTML
	default:
		return PlainText
	}
}

// Extract returns normalized text for data. It never fails; unreadable input
// yields an empty string.
func Extract(data []byte, ct ContentType) string {
	switch ct {
	case PDF:
		return extractPDF(data)
	case HTML:
		return extractHTML(data)
	default:
		return Normalize(strings.ToValidUTF8(string(data), "�"))
	}
}

// Normalize collapses whitespace runs to single spaces and trims.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func extractHTML(data []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return ""
	}
	doc.Find(boilerplateSelectors).Remove()
	return Normalize(VisibleText(doc.Selection))
}

// VisibleText concatenates the text nodes under sel separated by spaces, so
// adjacent block elements do not run together.
func VisibleText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String()
}

func extractPDF(data []byte) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		pages = append(pages, pageText(reader, i))
	}
	return strings.Join(pages, "\n")
}

// pageText reads one page; image-only or broken pages become "".
func pageText(reader *pdf.Reader, index int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	page := reader.Page(index)
	if page.V.IsNull() {
		return ""
	}
	content, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return content
}

// Extractor adapts the package functions to ports.TextExtractor.
type Extractor struct {
	logger *slog.Logger
}

var _ ports.TextExtractor = (*Extractor)(nil)

// NewExtractor builds an extractor; logger may be nil.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// ExtractDocument sniffs a fetched document by header and final URL. When
// the final URL says nothing, the requested URL's suffix still decides, so a
// ".pdf" link redirected to a suffix-less download is read as a PDF.
func (e *Extractor) ExtractDocument(doc domain.FetchedDocument) string {
	name := doc.FinalURL
	if name == "" {
		name = doc.URL
	}
	if name != doc.URL && SniffContentType(name, doc.ContentType) == PlainText &&
		SniffContentType(doc.URL, doc.ContentType) != PlainText {
		name = doc.URL
	}
	return e.ExtractBytes(doc.Body, name, doc.ContentType)
}

// ExtractBytes sniffs by name and header hint, then extracts.
func (e *Extractor) ExtractBytes(data []byte, name, contentType string) string {
	ct := SniffContentType(name, contentType)
	text := Extract(data, ct)
	if e.logger != nil {
		e.logger.Debug("extracted text",
			"source", name,
			"content_type", string(ct),
			"bytes", len(data),
			"chars", len(text),
		)
	}
	return text
}
