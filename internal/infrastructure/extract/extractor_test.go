package extract

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"CivicScanner/internal/domain"
)

func TestSniffContentType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		source string
		header string
		want   ContentType
	}{
		{"pdf header", "https://city.gov/page", "application/pdf", PDF},
		{"pdf header with charset", "", "application/pdf; charset=binary", PDF},
		{"octet stream recovered by suffix", "https://docs.city.gov/agenda.PDF", "application/octet-stream", PDF},
		{"suffix with query", "https://docs.city.gov/get/agenda.pdf?id=4", "", PDF},
		{"header wins over suffix", "https://city.gov/agenda.pdf", "text/html; charset=utf-8", HTML},
		{"html header", "https://city.gov/meetings", "text/html", HTML},
		{"html suffix", "minutes.htm", "", HTML},
		{"plain header", "notes.pdf", "text/plain", PlainText},
		{"unknown defaults to text", "upload.bin", "", PlainText},
		{"empty", "", "", PlainText},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := SniffContentType(tc.source, tc.header)
			if got != tc.want {
				t.Fatalf("SniffContentType(%q, %q) = %s, want %s", tc.source, tc.header, got, tc.want)
			}
			if again := SniffContentType(tc.source, tc.header); again != got {
				t.Fatalf("sniffing is not deterministic: %s then %s", got, again)
			}
		})
	}
}

func TestExtractHTMLStripsBoilerplate(t *testing.T) {
	t.Parallel()

	page := `<html><head><title>Council</title><style>p{color:red}</style></head>
	<body>
	  <header>Site Header</header>
	  <nav><a href="/">Home</a></nav>
	  <script>var tracking = 1;</script>
	  <noscript>Enable JS</noscript>
	  <main><h1>Regular   Meeting</h1><p>Item 1:
	  Zoning change</p><p>Item 2</p></main>
	  <footer>Copyright</footer>
	</body></html>`

	got := Extract([]byte(page), HTML)
	want := "Council Regular Meeting Item 1: Zoning change Item 2"
	if got != want {
		t.Fatalf("unexpected text:\n got %q\nwant %q", got, want)
	}
}

func TestExtractPlainTextReplacesInvalidBytes(t *testing.T) {
	t.Parallel()

	data := []byte("Public\t\thearing \xff\xfe on   Monday\n\n")
	got := Extract(data, PlainText)
	if !strings.HasPrefix(got, "Public hearing ") || !strings.HasSuffix(got, " on Monday") {
		t.Fatalf("unexpected text: %q", got)
	}
	if !strings.Contains(got, "�") {
		t.Fatalf("expected replacement character in %q", got)
	}
}

func TestExtractNeverPanics(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	inputs := [][]byte{nil, {}, []byte("%PDF-1.4 truncated"), []byte("<html><body"), {0x00, 0xff, 0x10}}
	for i := 0; i < 50; i++ {
		buf := make([]byte, rng.Intn(512))
		rng.Read(buf)
		inputs = append(inputs, buf)
	}

	for _, in := range inputs {
		for _, ct := range []ContentType{PDF, HTML, PlainText} {
			_ = Extract(in, ct)
		}
	}

	if got := Extract([]byte("not a pdf at all"), PDF); got != "" {
		t.Fatalf("expected empty text for malformed pdf, got %q", got)
	}
}

func TestExtractPDF(t *testing.T) {
	t.Parallel()

	got := Extract(buildPDF("City Council Agenda"), PDF)
	if !strings.Contains(got, "Agenda") {
		t.Fatalf("expected page text, got %q", got)
	}
}

func TestExtractorExtractDocumentUsesFinalURL(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(nil)
	doc := domain.FetchedDocument{
		URL:         "https://city.gov/download?id=1",
		FinalURL:    "https://cdn.city.gov/minutes.html",
		ContentType: "application/octet-stream",
		Body:        []byte("<p>Minutes</p><script>x()</script>"),
	}
	if got := ex.ExtractDocument(doc); got != "Minutes" {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestExtractorExtractDocumentFallsBackToRequestedSuffix(t *testing.T) {
	t.Parallel()

	ex := NewExtractor(nil)
	doc := domain.FetchedDocument{
		URL:         "https://city.gov/agendas/agenda-2024.pdf",
		FinalURL:    "https://city.gov/DocumentCenter/View/123",
		ContentType: "application/octet-stream",
		Body:        buildPDF("Council Agenda"),
	}
	got := ex.ExtractDocument(doc)
	if strings.HasPrefix(got, "%PDF") || !strings.Contains(got, "Agenda") {
		t.Fatalf("expected pdf text, got %q", got)
	}

	doc.ContentType = "text/plain"
	doc.Body = []byte("Plain notice text")
	if got := ex.ExtractDocument(doc); got != "Plain notice text" {
		t.Fatalf("header should still win, got %q", got)
	}
}

// buildPDF writes a minimal single-page PDF with a correct xref table.
func buildPDF(text string) []byte {
	stream := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}
