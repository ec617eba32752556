package models

import "time"

const (
	// APIKeySetting is the settings key holding the model provider credential.
	APIKeySetting = "openaiApiKey"

	PDFContentType = "application/pdf"

	StatusPDFDetected  = "PDF detected"
	StatusNoPDF        = "No PDF detected"
	StatusExtracting   = "Extracting PDF..."
	StatusPDFProcessed = "PDF processed successfully"
	StatusErrorPrefix  = "Error: "

	OptionsSaved = "Options saved."

	ErrMsgAPIKeyMissing = "API key not set. Please set it in the extension options."
	ErrMsgNotAPDF       = "Not a PDF page"

	PageMetadataKey = "page"
	PageIDFormat    = "page-%d"
)

// OptionsSavedTTL is how long the save acknowledgment stays visible.
var OptionsSavedTTL = 750 * time.Millisecond
