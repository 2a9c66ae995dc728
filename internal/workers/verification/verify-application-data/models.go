// internal/workers/verification/verify-application-data/models.go
package verifyapplicationdata

import "paystub-verify/internal/models"

// Input carries the declared application data and the normalized extraction
// to compare against each other.
type Input struct {
	Application models.ApplicationRecord `json:"application"`
	Extracted   models.ExtractedRecord   `json:"extracted"`
}

// Output is the aggregated comparison result. FieldVerdicts is always four
// entries in field order: name, salary, employer, ssn.
type Output struct {
	FieldVerdicts []models.FieldVerdict `json:"fieldVerdicts"`
	OverallStatus models.OverallStatus  `json:"overallStatus"`
	ScorePercent  float64               `json:"scorePercent"`
	Summary       string                `json:"summary"`
}
