// internal/models/application.go
package models

import "time"

// ApplicationRecord is the user-declared identity and income data to verify.
// Treated as immutable once handed to the verification pipeline.
type ApplicationRecord struct {
	ID           string `json:"id"`
	FullName     string `json:"name"`
	AnnualSalary int    `json:"annualSalary"`
	EmployerName string `json:"employerName"`
	SSN          string `json:"ssn"`
}

// Document is an uploaded pay document awaiting verification. Storage and
// upload are handled by external collaborators; only the location matters
// here.
type Document struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"applicationId"`
	FileName      string    `json:"fileName"`
	StorageURL    string    `json:"storageUrl"`
	UploadedAt    time.Time `json:"uploadedAt"`
}
