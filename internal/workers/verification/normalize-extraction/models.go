// internal/workers/verification/normalize-extraction/models.go
package normalizeextraction

import "paystub-verify/internal/models"

// Input carries the raw field mapping returned by the OCR collaborator.
// Extra keys are tolerated and ignored; any subset of expected keys may be
// absent.
type Input struct {
	Raw map[string]interface{} `json:"raw"`
}

type Output struct {
	Record models.ExtractedRecord `json:"record"`
}
