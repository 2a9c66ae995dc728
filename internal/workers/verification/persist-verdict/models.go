// internal/workers/verification/persist-verdict/models.go
package persistverdict

// VerdictStats aggregates stored verdicts by outcome.
type VerdictStats struct {
	Total            int     `json:"total"`
	Verified         int     `json:"verified"`
	Mismatch         int     `json:"mismatch"`
	Error            int     `json:"error"`
	VerificationRate float64 `json:"verificationRate"`
}
