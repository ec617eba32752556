package models

// PageDocument is the text of one PDF page. PageIndex starts at 1.
type PageDocument struct {
	PageIndex int    `json:"page"`
	Text      string `json:"text"`
}

// EncodedBytes is a PDF payload encoded as standard base64 so it can cross a
// text-only message boundary.
type EncodedBytes string
