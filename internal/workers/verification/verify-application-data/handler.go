// internal/workers/verification/verify-application-data/handler.go
package verifyapplicationdata

import (
	"context"
	"fmt"
	"math"
	"strings"

	"paystub-verify/internal/common/logger"
	"paystub-verify/internal/models"
)

const (
	TaskType = "verify-application-data"
)

// Business-entity suffixes stripped from employer names before scoring.
var employerSuffixes = map[string]bool{
	"inc":         true,
	"llc":         true,
	"corp":        true,
	"ltd":         true,
	"company":     true,
	"co":          true,
	"enterprises": true,
	"group":       true,
}

type Handler struct {
	logger              logger.Logger
	similarityThreshold float64
}

func NewHandler(config *Config, log logger.Logger) *Handler {
	return &Handler{
		logger:              log.WithFields(map[string]interface{}{"taskType": TaskType}),
		similarityThreshold: config.SimilarityThreshold,
	}
}

// Execute compares the declared application data against the normalized
// extraction. Missing data on either side never fails the run; it produces a
// non-matching verdict with an explanatory reason.
func (h *Handler) Execute(_ context.Context, input *Input) (*Output, error) {
	verdicts := []models.FieldVerdict{
		h.verifyName(input),
		h.verifySalary(input),
		h.verifyEmployer(input),
		h.verifySSN(input),
	}

	matched := 0
	var mismatched []string
	for _, v := range verdicts {
		if v.Matched {
			matched++
		} else {
			mismatched = append(mismatched, string(v.Field))
		}
	}
	total := len(verdicts)
	score := float64(matched) / float64(total) * 100

	// Any mismatch fails the run outright.
	status := models.StatusMismatch
	var summary string
	if matched == total {
		status = models.StatusVerified
		summary = fmt.Sprintf("Verification passed - all fields match (%d/%d fields verified)", matched, total)
	} else {
		summary = fmt.Sprintf("Verification failed - %d field(s) mismatch: %s", len(mismatched), strings.Join(mismatched, ", "))
	}

	h.logger.Info("verification completed", map[string]interface{}{
		"applicationId": input.Application.ID,
		"status":        status,
		"score":         score,
		"matchedFields": matched,
	})

	return &Output{
		FieldVerdicts: verdicts,
		OverallStatus: status,
		ScorePercent:  score,
		Summary:       summary,
	}, nil
}

func (h *Handler) verifyName(input *Input) models.FieldVerdict {
	verdict := models.FieldVerdict{Field: models.FieldNameName}

	appName := normalizeText(input.Application.FullName)
	extName := ""
	if input.Extracted.EmployeeName.Known {
		extName = normalizeText(input.Extracted.EmployeeName.Value)
	}

	if appName == "" || extName == "" {
		verdict.Reason = "Could not verify name - missing data"
		return verdict
	}

	score := h.nameSimilarity(appName, extName)
	if score >= h.similarityThreshold {
		verdict.Matched = true
		verdict.Reason = fmt.Sprintf("Name matches (similarity: %.1f%%)", score*100)
	} else {
		verdict.Reason = fmt.Sprintf(
			"Name mismatch: application has '%s' but pay stub shows '%s' (similarity: %.1f%%) - requires %.0f%%+ similarity",
			input.Application.FullName, input.Extracted.EmployeeName.Value, score*100, h.similarityThreshold*100)
	}
	return verdict
}

func (h *Handler) verifySalary(input *Input) models.FieldVerdict {
	verdict := models.FieldVerdict{Field: models.FieldNameSalary}

	appSalary := float64(input.Application.AnnualSalary)
	extracted := input.Extracted.AnnualSalary

	if !extracted.Known {
		verdict.Reason = "Could not extract salary from pay stub"
		return verdict
	}
	verdict.ExtractedValue = extracted.Value

	if appSalary <= 0 {
		verdict.Reason = "Could not verify salary - application salary not provided"
		return verdict
	}

	diff := math.Abs(appSalary - extracted.Value)
	diffPercent := diff / appSalary * 100

	// Wider tolerance at the low end, where a single pay period of rounding
	// moves the annualized figure much more.
	var tolerancePercent float64
	switch {
	case appSalary < 30000:
		tolerancePercent = 15
	case appSalary < 100000:
		tolerancePercent = 12
	default:
		tolerancePercent = 10
	}

	if diffPercent <= tolerancePercent {
		verdict.Matched = true
		verdict.Reason = fmt.Sprintf(
			"Salary matches within %.0f%% tolerance (difference: $%s, %.1f%%)",
			tolerancePercent, formatAmount(diff), diffPercent)
	} else {
		verdict.Reason = fmt.Sprintf(
			"Salary mismatch: application shows $%s but pay stub indicates $%s (difference: $%s, %.1f%%) - exceeds %.0f%% tolerance",
			formatAmount(appSalary), formatAmount(extracted.Value), formatAmount(diff), diffPercent, tolerancePercent)
	}
	return verdict
}

func (h *Handler) verifyEmployer(input *Input) models.FieldVerdict {
	verdict := models.FieldVerdict{Field: models.FieldNameEmployer}

	if !input.Extracted.CompanyName.Known || normalizeText(input.Extracted.CompanyName.Value) == "" {
		verdict.Reason = "Could not extract employer name from pay stub"
		return verdict
	}
	verdict.ExtractedValue = input.Extracted.CompanyName.Value

	appEmployer := normalizeText(input.Application.EmployerName)
	if appEmployer == "" {
		verdict.Reason = "Could not verify employer - missing data"
		return verdict
	}

	score := h.employerSimilarity(appEmployer, normalizeText(input.Extracted.CompanyName.Value))
	if score >= h.similarityThreshold {
		verdict.Matched = true
		verdict.Reason = fmt.Sprintf("Employer matches (similarity: %.1f%%)", score*100)
	} else {
		verdict.Reason = fmt.Sprintf(
			"Employer mismatch: application has '%s' but pay stub shows '%s' (similarity: %.1f%%) - requires %.0f%%+ similarity",
			input.Application.EmployerName, input.Extracted.CompanyName.Value, score*100, h.similarityThreshold*100)
	}
	return verdict
}

func (h *Handler) verifySSN(input *Input) models.FieldVerdict {
	verdict := models.FieldVerdict{Field: models.FieldNameSSN}

	if !input.Extracted.SSN.Known || input.Extracted.SSN.Value == "" {
		verdict.Reason = "Could not extract SSN from pay stub"
		return verdict
	}
	verdict.ExtractedValue = input.Extracted.SSN.Value

	appSSN := strings.TrimSpace(input.Application.SSN)
	if appSSN == "" {
		verdict.Reason = "Could not verify SSN - missing data"
		return verdict
	}

	appLast4 := appSSN
	if len(appSSN) >= 4 {
		appLast4 = appSSN[len(appSSN)-4:]
	}

	if appLast4 == input.Extracted.SSN.Value {
		verdict.Matched = true
		verdict.Reason = "SSN last 4 digits match"
	} else {
		verdict.Reason = fmt.Sprintf(
			"SSN mismatch: application last 4 digits are %s but pay stub shows %s - exact match required",
			appLast4, input.Extracted.SSN.Value)
	}
	return verdict
}

// nameSimilarity scores two already-normalized strings in [0,1]. Symmetric:
// token-set Jaccard weighted 0.6 plus shorter-in-longer containment weighted
// 0.4, clamped to 1.0.
func (h *Handler) nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}

	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)

	setA := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		setA[t] = true
	}
	setB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		setB[t] = true
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for t := range setA {
		if setB[t] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	jaccard := 0.0
	if union > 0 {
		jaccard = float64(intersection) / float64(union)
	}

	shorter, longerSet := tokensA, setB
	if len(tokensB) < len(tokensA) {
		shorter, longerSet = tokensB, setA
	}

	containment := 0.0
	if len(shorter) > 0 {
		contained := 0
		for _, t := range shorter {
			if longerSet[t] {
				contained++
			}
		}
		containment = float64(contained) / float64(len(shorter))
	}

	return math.Min(jaccard*0.6+containment*0.4, 1.0)
}

// employerSimilarity strips trailing business-entity suffixes from both
// names, then scores them like names.
func (h *Handler) employerSimilarity(a, b string) float64 {
	return h.nameSimilarity(stripEmployerSuffixes(a), stripEmployerSuffixes(b))
}

func stripEmployerSuffixes(employer string) string {
	tokens := strings.Fields(employer)
	for len(tokens) > 1 {
		last := strings.Trim(tokens[len(tokens)-1], ".,")
		if !employerSuffixes[last] {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// formatAmount renders a dollar amount with thousands separators and no
// decimals.
func formatAmount(v float64) string {
	s := fmt.Sprintf("%.0f", math.Abs(v))
	negative := v < -0.5

	n := len(s)
	if n > 3 {
		var b strings.Builder
		first := n % 3
		if first > 0 {
			b.WriteString(s[:first])
		}
		for i := first; i < n; i += 3 {
			if b.Len() > 0 {
				b.WriteByte(',')
			}
			b.WriteString(s[i : i+3])
		}
		s = b.String()
	}
	if negative {
		s = "-" + s
	}
	return s
}
