package parser

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"pdf-qa/internal/apperr"
	"pdf-qa/internal/models"
)

const fragmentSeparator = " "

// ExtractPages decodes a captured PDF and returns one PageDocument per page,
// in page order and numbered from 1.
func ExtractPages(encoded models.EncodedBytes) ([]models.PageDocument, error) {
	data, err := base64.StdEncoding.DecodeString(string(encoded))
	if err != nil {
		return nil, apperr.New(apperr.KindExtract, "decode", fmt.Errorf("unsupported encoding: %v", err))
	}
	return ParsePDF(data)
}

// ParsePDF extracts page texts from raw PDF bytes.
func ParsePDF(data []byte) (pages []models.PageDocument, err error) {
	// the pdf reader resolves objects lazily and panics on malformed ones
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = apperr.Newf(apperr.KindExtract, "parse", "malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.New(apperr.KindExtract, "parse", err)
	}

	numPages := reader.NumPage()
	if numPages < 1 {
		return nil, apperr.New(apperr.KindExtract, "parse", errors.New("document has no pages"))
	}

	pages = make([]models.PageDocument, 0, numPages)
	for i := 1; i <= numPages; i++ {
		pages = append(pages, models.PageDocument{PageIndex: i, Text: pageText(reader.Page(i))})
	}

	log.Debug().Int("pages", len(pages)).Msg("Extracted PDF text")
	return pages, nil
}

// pageText joins the strings shown by each text operator with single spaces,
// in content stream order. The pieces of one TJ array form a single fragment.
func pageText(page pdf.Page) string {
	if page.V.IsNull() || page.V.Key("Contents").Kind() == pdf.Null {
		return ""
	}

	encoders := make(map[string]pdf.TextEncoding)
	for _, name := range page.Fonts() {
		encoders[name] = page.Font(name).Encoder()
	}

	var (
		enc       pdf.TextEncoding
		fragments []string
	)
	decode := func(raw string) string {
		if enc == nil {
			return raw
		}
		return enc.Decode(raw)
	}
	show := func(text string) {
		if text != "" {
			fragments = append(fragments, text)
		}
	}

	pdf.Interpret(page.V.Key("Contents"), func(stk *pdf.Stack, op string) {
		args := make([]pdf.Value, stk.Len())
		for i := len(args) - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}
		if len(args) == 0 {
			return
		}

		switch op {
		case "Tf":
			enc = encoders[args[0].Name()]
		case "Tj", "'", "\"":
			show(decode(args[len(args)-1].RawString()))
		case "TJ":
			var run strings.Builder
			arr := args[0]
			for i := 0; i < arr.Len(); i++ {
				if item := arr.Index(i); item.Kind() == pdf.String {
					run.WriteString(decode(item.RawString()))
				}
			}
			show(run.String())
		}
	})
	return strings.Join(fragments, fragmentSeparator)
}
