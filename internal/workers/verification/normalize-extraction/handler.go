// internal/workers/verification/normalize-extraction/handler.go
package normalizeextraction

import (
	"context"
	"strconv"
	"strings"
	"time"
	"unicode"

	"paystub-verify/internal/common/logger"
	"paystub-verify/internal/models"
)

const (
	TaskType = "normalize-extraction"
)

// nullSentinels are values the extraction model emits for fields it could
// not read. Compared case-insensitively after trimming.
var nullSentinels = map[string]struct{}{
	"":              {},
	"null":          {},
	"none":          {},
	"n/a":           {},
	"na":            {},
	"not available": {},
	"unknown":       {},
	"tbd":           {},
}

var currencyReplacer = strings.NewReplacer("$", "", ",", "", "€", "", "£", "", "¥", "", "₹", "")

var ssnSeparatorReplacer = strings.NewReplacer("-", "", " ", "", "_", "")

// payDateLayouts are tried in order; the first layout that parses wins.
var payDateLayouts = []string{
	"2006-01-02", // YYYY-MM-DD
	"01/02/2006", // MM/DD/YYYY
	"02/01/2006", // DD/MM/YYYY
	"2006/01/02", // YYYY/MM/DD
	"01-02-2006", // MM-DD-YYYY
	"02-01-2006", // DD-MM-YYYY
}

// periodMultipliers maps pay-period keywords to annualization factors.
// Keywords are substring-matched against the period text in this order.
var periodMultipliers = []struct {
	keyword    string
	multiplier float64
}{
	{"weekly", 52},
	{"biweekly", 26},
	{"semimonthly", 24},
	{"monthly", 12},
	{"daily", 260},
}

// Bounds for assuming a bare gross/net amount is a monthly figure.
const (
	monthlyAssumptionMin = 1000
	monthlyAssumptionMax = 500000
	ytdAnnualMultiplier  = 4
)

type Handler struct {
	logger logger.Logger
}

func NewHandler(log logger.Logger) *Handler {
	return &Handler{
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

// Execute cleans and type-coerces the raw extraction mapping. It never fails
// on malformed values: anything unusable becomes unknown.
func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	raw := input.Raw
	var rec models.ExtractedRecord

	rec.EmployeeName = cleanString(raw["employee_name"])
	if rec.EmployeeName.Known {
		rec.EmployeeName.Value = titleCase(rec.EmployeeName.Value)
	}

	rec.CompanyName = cleanString(raw["company_name"])
	if rec.CompanyName.Known {
		rec.CompanyName.Value = titleCase(rec.CompanyName.Value)
	}

	rec.AnnualSalary = parseNumber(raw["annual_salary"])
	rec.GrossPay = parseNumber(raw["gross_pay"])
	rec.NetPay = parseNumber(raw["net_pay"])
	rec.HourlyRate = parseNumber(raw["hourly_rate"])
	rec.HoursWorked = parseNumber(raw["hours_worked"])
	rec.YearToDateGross = parseNumber(raw["year_to_date_gross"])
	rec.YearToDateNet = parseNumber(raw["year_to_date_net"])

	rec.SSN = normalizeSSN(cleanString(raw["ssn"]))
	rec.PayPeriod = cleanString(raw["pay_period"])
	rec.PayDate = normalizePayDate(cleanString(raw["pay_date"]))
	rec.Deductions = normalizeDeductions(raw["deductions"])

	if !rec.AnnualSalary.Known {
		rec.AnnualSalary = deriveAnnualSalary(rec)
	}
	if !rec.HourlyRate.Known {
		rec.HourlyRate = deriveHourlyRate(rec)
	}

	h.logger.Debug("normalized extraction", map[string]interface{}{
		"annualSalaryKnown": rec.AnnualSalary.Known,
		"ssnKnown":          rec.SSN.Known,
	})

	return &Output{Record: rec}, nil
}

// cleanString trims a raw value and maps null sentinels to unknown.
func cleanString(v interface{}) models.StringField {
	s, ok := v.(string)
	if !ok {
		return models.StringField{}
	}
	s = strings.TrimSpace(s)
	if _, sentinel := nullSentinels[strings.ToLower(s)]; sentinel {
		return models.StringField{}
	}
	return models.String(s)
}

// titleCase capitalizes the first letter of each whitespace-separated word
// and lowercases the rest.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// parseNumber accepts JSON numbers and currency-formatted strings. A failed
// parse yields unknown, never an error.
func parseNumber(v interface{}) models.NumberField {
	switch n := v.(type) {
	case float64:
		return models.Number(n)
	case int:
		return models.Number(float64(n))
	case string:
		cleaned := strings.TrimSpace(currencyReplacer.Replace(n))
		if cleaned == "" {
			return models.NumberField{}
		}
		f, err := strconv.ParseFloat(cleaned, 64)
		if err != nil {
			return models.NumberField{}
		}
		return models.Number(f)
	default:
		return models.NumberField{}
	}
}

// normalizeSSN strips separators and keeps the last 4 characters. Shorter
// strings are kept as-is; an empty result is unknown.
func normalizeSSN(f models.StringField) models.StringField {
	if !f.Known {
		return f
	}
	ssn := ssnSeparatorReplacer.Replace(f.Value)
	switch {
	case len(ssn) >= 4:
		return models.String(ssn[len(ssn)-4:])
	case len(ssn) > 0:
		return models.String(ssn)
	default:
		return models.StringField{}
	}
}

// normalizePayDate canonicalizes to YYYY-MM-DD; no matching layout means
// unknown.
func normalizePayDate(f models.StringField) models.StringField {
	if !f.Known {
		return f
	}
	for _, layout := range payDateLayouts {
		if t, err := time.Parse(layout, f.Value); err == nil {
			return models.String(t.Format("2006-01-02"))
		}
	}
	return models.StringField{}
}

// normalizeDeductions splits a deductions string on commas and semicolons.
// The model occasionally returns a list already; both shapes are accepted.
func normalizeDeductions(v interface{}) models.StringListField {
	var parts []string
	switch d := v.(type) {
	case string:
		f := cleanString(d)
		if !f.Known {
			return models.StringListField{}
		}
		parts = strings.FieldsFunc(f.Value, func(r rune) bool {
			return r == ',' || r == ';'
		})
	case []interface{}:
		for _, item := range d {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	default:
		return models.StringListField{}
	}

	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return models.StringListField{}
	}
	return models.StringList(out)
}

// deriveAnnualSalary applies the derivation strategies in order; the first
// one that succeeds wins and later strategies are not consulted.
func deriveAnnualSalary(rec models.ExtractedRecord) models.NumberField {
	// Strategy 1: gross pay with a recognizable pay period.
	if rec.GrossPay.Known && rec.PayPeriod.Known {
		period := strings.ToLower(rec.PayPeriod.Value)
		for _, pm := range periodMultipliers {
			if strings.Contains(period, pm.keyword) {
				return models.Number(rec.GrossPay.Value * pm.multiplier)
			}
		}
	}

	// Strategy 2: bare gross pay in a plausible monthly range.
	if rec.GrossPay.Known {
		if rec.GrossPay.Value >= monthlyAssumptionMin && rec.GrossPay.Value <= monthlyAssumptionMax && !rec.PayPeriod.Known {
			return models.Number(rec.GrossPay.Value * 12)
		}
		return models.NumberField{}
	}

	// Strategy 3: net pay fallback, monthly assumption.
	if rec.NetPay.Known {
		if rec.NetPay.Value >= monthlyAssumptionMin && rec.NetPay.Value <= monthlyAssumptionMax {
			return models.Number(rec.NetPay.Value * 12)
		}
		return models.NumberField{}
	}

	// Strategy 4: year-to-date gross, assuming roughly a quarter elapsed.
	if rec.YearToDateGross.Known {
		return models.Number(rec.YearToDateGross.Value * ytdAnnualMultiplier)
	}

	return models.NumberField{}
}

func deriveHourlyRate(rec models.ExtractedRecord) models.NumberField {
	if rec.GrossPay.Known && rec.HoursWorked.Known && rec.HoursWorked.Value > 0 {
		return models.Number(rec.GrossPay.Value / rec.HoursWorked.Value)
	}
	return models.NumberField{}
}
