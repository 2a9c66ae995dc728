// internal/workers/verification/extract-paystub-data/models.go
package extractpaystubdata

// Input identifies the document to run OCR extraction on.
type Input struct {
	DocumentID string `json:"documentId"`
	StorageURL string `json:"storageUrl"`
}

// Output carries the raw extracted field mapping. Keys follow the OCR
// prompt's field names; values are untyped and may be absent or null.
type Output struct {
	Raw       map[string]interface{} `json:"raw"`
	FromCache bool                   `json:"fromCache"`
}
