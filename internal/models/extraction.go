// internal/models/extraction.go
package models

// ExtractedRecord holds the normalized fields read off a pay document by the
// OCR collaborator. Every field is optional: absent or unusable values are
// tagged unknown, never empty-string sentinels.
type ExtractedRecord struct {
	EmployeeName    StringField     `json:"employee_name"`
	CompanyName     StringField     `json:"company_name"`
	AnnualSalary    NumberField     `json:"annual_salary"`
	SSN             StringField     `json:"ssn"`
	PayPeriod       StringField     `json:"pay_period"`
	GrossPay        NumberField     `json:"gross_pay"`
	NetPay          NumberField     `json:"net_pay"`
	HourlyRate      NumberField     `json:"hourly_rate"`
	HoursWorked     NumberField     `json:"hours_worked"`
	YearToDateGross NumberField     `json:"year_to_date_gross"`
	YearToDateNet   NumberField     `json:"year_to_date_net"`
	PayDate         StringField     `json:"pay_date"`
	Deductions      StringListField `json:"deductions"`
}
