// internal/models/verification.go
package models

import "time"

// FieldName identifies a comparable field in a verification run.
type FieldName string

const (
	FieldNameName     FieldName = "name"
	FieldNameSalary   FieldName = "salary"
	FieldNameEmployer FieldName = "employer"
	FieldNameSSN      FieldName = "ssn"
)

// OverallStatus is the aggregate verification outcome.
type OverallStatus string

const (
	StatusVerified OverallStatus = "verified"
	StatusMismatch OverallStatus = "mismatch"
	StatusError    OverallStatus = "error"
)

// RunState tracks one verification run through the pipeline.
// PENDING -> EXTRACTING -> COMPARING -> {VERIFIED | MISMATCH} | ERROR.
// ERROR is reachable only from EXTRACTING; COMPARING always completes.
type RunState string

const (
	RunStatePending    RunState = "PENDING"
	RunStateExtracting RunState = "EXTRACTING"
	RunStateComparing  RunState = "COMPARING"
	RunStateVerified   RunState = "VERIFIED"
	RunStateMismatch   RunState = "MISMATCH"
	RunStateError      RunState = "ERROR"
)

// FieldVerdict is the per-field match decision. Reason is always populated,
// including for missing-data cases.
type FieldVerdict struct {
	Field          FieldName   `json:"field"`
	Matched        bool        `json:"matched"`
	Reason         string      `json:"reason"`
	ExtractedValue interface{} `json:"extractedValue,omitempty"`
}

// VerificationVerdict is produced exactly once per (application, document)
// pair per run and is immutable after creation.
type VerificationVerdict struct {
	ID            string         `json:"id"`
	ApplicationID string         `json:"applicationId"`
	DocumentID    string         `json:"documentId"`
	FieldVerdicts []FieldVerdict `json:"fieldVerdicts"`
	OverallStatus OverallStatus  `json:"overallStatus"`
	ScorePercent  float64        `json:"scorePercent"`
	Summary       string         `json:"summary"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// MatchedFields counts the matched field verdicts.
func (v *VerificationVerdict) MatchedFields() int {
	n := 0
	for _, fv := range v.FieldVerdicts {
		if fv.Matched {
			n++
		}
	}
	return n
}
