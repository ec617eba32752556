// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"pdf-qa/internal/models"
)

// BuildPDF renders a minimal PDF with one page per entry. Each line of a page
// is shown with its own text matrix, top to bottom. A nil page has no content
// stream.
func BuildPDF(pages ...[]string) []byte {
	contents := make([]*string, len(pages))
	for i, lines := range pages {
		if lines == nil {
			continue
		}
		var content strings.Builder
		content.WriteString("BT\n/F1 12 Tf\n")
		for j, line := range lines {
			fmt.Fprintf(&content, "1 0 0 1 72 %d Tm\n(%s) Tj\n", 720-20*j, escape(line))
		}
		content.WriteString("ET")
		body := content.String()
		contents[i] = &body
	}
	return build(contents)
}

// BuildRawPDF renders one page per content stream, taken verbatim. Font /F1
// is Helvetica.
func BuildRawPDF(streams ...string) []byte {
	contents := make([]*string, len(streams))
	for i := range streams {
		contents[i] = &streams[i]
	}
	return build(contents)
}

// KernedLine shows parts as one TJ array with kerning adjustments between
// them, the way typesetters emit words.
func KernedLine(parts ...string) string {
	var b strings.Builder
	b.WriteString("BT\n/F1 12 Tf\n72 720 Td\n[")
	for i, part := range parts {
		if i > 0 {
			fmt.Fprintf(&b, " %d ", -15+10*(i%3))
		}
		fmt.Fprintf(&b, "(%s)", escape(part))
	}
	b.WriteString("] TJ\nET")
	return b.String()
}

func build(contents []*string) []byte {
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	kids := make([]string, len(contents))
	for i := range contents {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	obj("<< /Type /Catalog /Pages 2 0 R >>")
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(contents)))
	obj("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	for i, content := range contents {
		contentRef := ""
		if content != nil {
			contentRef = fmt.Sprintf(" /Contents %d 0 R", 5+2*i)
		}
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >>%s >>", contentRef))

		body := ""
		if content != nil {
			body = *content
		}
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(body), body))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

// Encode returns data the way the page context transfers it.
func Encode(data []byte) models.EncodedBytes {
	return models.EncodedBytes(base64.StdEncoding.EncodeToString(data))
}

// NopBody wraps data as an HTTP response body.
func NopBody(data []byte) io.ReadCloser {
	return io.NopCloser(bytes.NewReader(data))
}
