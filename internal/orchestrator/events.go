// internal/orchestrator/events.go
package orchestrator

// Progress steps emitted over one run, in this order. Any step may instead
// short-circuit to StepError, which terminates the stream.
const (
	StepStarting          = "starting"
	StepDownloading       = "downloading"
	StepExtracting        = "extracting"
	StepExtracted         = "extracted"
	StepVerifyingName     = "verifying_name"
	StepVerifyingSalary   = "verifying_salary"
	StepVerifyingEmployer = "verifying_employer"
	StepFinalizing        = "finalizing"
	StepComplete          = "complete"
	StepError             = "error"
)

// ProgressEvent is one record in the per-run progress stream.
type ProgressEvent struct {
	Step     string                 `json:"step"`
	Message  string                 `json:"message"`
	Progress int                    `json:"progress"`
	Error    bool                   `json:"error,omitempty"`
	Payload  map[string]interface{} `json:"payload,omitempty"`
}
