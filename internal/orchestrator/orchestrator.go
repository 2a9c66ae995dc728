// internal/orchestrator/orchestrator.go
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"paystub-verify/internal/common/errors"
	"paystub-verify/internal/common/logger"
	"paystub-verify/internal/common/metrics"
	"paystub-verify/internal/common/observability"
	"paystub-verify/internal/common/retry"
	"paystub-verify/internal/models"
	extractpaystubdata "paystub-verify/internal/workers/verification/extract-paystub-data"
	normalizeextraction "paystub-verify/internal/workers/verification/normalize-extraction"
	verifyapplicationdata "paystub-verify/internal/workers/verification/verify-application-data"
)

// Stage contracts. The orchestrator depends on the worker Execute shape, not
// the concrete handlers, so stages can be faked in tests.
type Extractor interface {
	Execute(ctx context.Context, input *extractpaystubdata.Input) (*extractpaystubdata.Output, error)
}

type Normalizer interface {
	Execute(ctx context.Context, input *normalizeextraction.Input) (*normalizeextraction.Output, error)
}

type Verifier interface {
	Execute(ctx context.Context, input *verifyapplicationdata.Input) (*verifyapplicationdata.Output, error)
}

type VerdictStore interface {
	Insert(ctx context.Context, verdict *models.VerificationVerdict) error
}

// Orchestrator drives one verification run: extract with retry, normalize,
// compare, persist, and stream progress events. It holds no per-run state;
// concurrent runs for distinct documents are safe.
type Orchestrator struct {
	extractor   Extractor
	normalizer  Normalizer
	verifier    Verifier
	store       VerdictStore
	retryPolicy retry.Policy
	obs         *observability.Observability
	logger      logger.Logger
}

func New(extractor Extractor, normalizer Normalizer, verifier Verifier, store VerdictStore,
	retryPolicy retry.Policy, obs *observability.Observability, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		extractor:   extractor,
		normalizer:  normalizer,
		verifier:    verifier,
		store:       store,
		retryPolicy: retryPolicy,
		obs:         obs,
		logger:      log.WithFields(map[string]interface{}{"component": "orchestrator"}),
	}
}

// Run verifies one (application, document) pair. Progress events are sent to
// events in strict step order when the channel is non-nil; cancellation of
// ctx stops emission and abandons in-flight retries.
//
// Run always returns a complete verdict: extraction failure produces an
// error-status verdict rather than a bare error. A non-nil error is returned
// only when the computed verdict could not be persisted.
func (o *Orchestrator) Run(ctx context.Context, app models.ApplicationRecord, doc models.Document,
	events chan<- ProgressEvent) (*models.VerificationVerdict, error) {

	start := time.Now()
	state := models.RunStatePending

	log := o.logger.WithFields(map[string]interface{}{
		"applicationId": app.ID,
		"documentId":    doc.ID,
	})
	log.Info("verification run started", map[string]interface{}{"state": state})

	if !o.emit(ctx, events, ProgressEvent{Step: StepStarting, Message: "Starting verification process...", Progress: 0}) {
		return nil, ctx.Err()
	}
	if !o.emit(ctx, events, ProgressEvent{Step: StepDownloading, Message: "Downloading document from storage...", Progress: 20}) {
		return nil, ctx.Err()
	}

	state = models.RunStateExtracting
	if !o.emit(ctx, events, ProgressEvent{Step: StepExtracting, Message: "Extracting data from document...", Progress: 40}) {
		return nil, ctx.Err()
	}

	var extracted *extractpaystubdata.Output
	err := o.retryPolicy.Do(ctx, log, "ocr extraction", func(ctx context.Context) error {
		var attemptErr error
		extracted, attemptErr = o.extractor.Execute(ctx, &extractpaystubdata.Input{
			DocumentID: doc.ID,
			StorageURL: doc.StorageURL,
		})
		if attemptErr != nil {
			metrics.ExtractionAttempts.WithLabelValues("failure").Inc()
			return attemptErr
		}
		metrics.ExtractionAttempts.WithLabelValues("success").Inc()
		return nil
	})
	if err != nil {
		return o.failRun(ctx, events, app, doc, state, start, err)
	}

	normalized, err := o.normalizer.Execute(ctx, &normalizeextraction.Input{Raw: extracted.Raw})
	if err != nil {
		// The normalizer degrades malformed input to unknowns instead of
		// failing; an error here means a broken wiring, not bad data.
		return o.failRun(ctx, events, app, doc, state, start, err)
	}

	if !o.emit(ctx, events, ProgressEvent{
		Step:     StepExtracted,
		Message:  "Data extracted successfully",
		Progress: 60,
		Payload:  map[string]interface{}{"extractedData": normalized.Record},
	}) {
		return nil, ctx.Err()
	}

	state = models.RunStateComparing
	if !o.emit(ctx, events, ProgressEvent{Step: StepVerifyingName, Message: "Verifying name match...", Progress: 70}) {
		return nil, ctx.Err()
	}
	if !o.emit(ctx, events, ProgressEvent{Step: StepVerifyingSalary, Message: "Verifying salary match...", Progress: 80}) {
		return nil, ctx.Err()
	}
	if !o.emit(ctx, events, ProgressEvent{Step: StepVerifyingEmployer, Message: "Verifying employer match...", Progress: 90}) {
		return nil, ctx.Err()
	}

	result, err := o.verifier.Execute(ctx, &verifyapplicationdata.Input{
		Application: app,
		Extracted:   normalized.Record,
	})
	if err != nil {
		return o.failRun(ctx, events, app, doc, state, start, err)
	}

	if !o.emit(ctx, events, ProgressEvent{Step: StepFinalizing, Message: "Finalizing verification results...", Progress: 95}) {
		return nil, ctx.Err()
	}

	verdict := &models.VerificationVerdict{
		ApplicationID: app.ID,
		DocumentID:    doc.ID,
		FieldVerdicts: result.FieldVerdicts,
		OverallStatus: result.OverallStatus,
		ScorePercent:  result.ScorePercent,
		Summary:       result.Summary,
	}

	if result.OverallStatus == models.StatusVerified {
		state = models.RunStateVerified
	} else {
		state = models.RunStateMismatch
	}
	o.recordRun(ctx, verdict, start)

	if err := o.store.Insert(ctx, verdict); err != nil {
		// The verdict itself is sound; surface the storage failure
		// distinctly so the caller can retry persistence.
		o.emit(ctx, events, ProgressEvent{
			Step:    StepError,
			Message: fmt.Sprintf("Failed to store verification results: %v", err),
			Error:   true,
		})
		return verdict, err
	}

	log.Info("verification run completed", map[string]interface{}{
		"state":     state,
		"status":    verdict.OverallStatus,
		"score":     verdict.ScorePercent,
		"verdictId": verdict.ID,
		"duration":  time.Since(start).String(),
	})

	o.emit(ctx, events, ProgressEvent{
		Step:     StepComplete,
		Message:  "Verification completed",
		Progress: 100,
		Payload: map[string]interface{}{
			"verificationId": verdict.ID,
			"verdict":        verdict,
		},
	})
	return verdict, nil
}

// failRun converts a stage failure into an error-status verdict, persists it
// best-effort, and terminates the event stream with an error event.
func (o *Orchestrator) failRun(ctx context.Context, events chan<- ProgressEvent,
	app models.ApplicationRecord, doc models.Document, state models.RunState,
	start time.Time, cause error) (*models.VerificationVerdict, error) {

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	state = models.RunStateError
	verdict := &models.VerificationVerdict{
		ApplicationID: app.ID,
		DocumentID:    doc.ID,
		OverallStatus: models.StatusError,
		ScorePercent:  0,
		Summary:       fmt.Sprintf("Verification failed: %v", cause),
	}

	o.logger.Error("verification run failed", map[string]interface{}{
		"applicationId": app.ID,
		"documentId":    doc.ID,
		"state":         state,
		"error":         cause,
		"category":      categoryOf(cause),
	})
	o.recordRun(ctx, verdict, start)

	if err := o.store.Insert(ctx, verdict); err != nil {
		o.logger.Error("failed to persist error verdict", map[string]interface{}{
			"applicationId": app.ID,
			"documentId":    doc.ID,
			"error":         err,
		})
	}

	o.emit(ctx, events, ProgressEvent{
		Step:    StepError,
		Message: fmt.Sprintf("Verification process failed: %v", cause),
		Error:   true,
	})
	return verdict, nil
}

func (o *Orchestrator) recordRun(ctx context.Context, verdict *models.VerificationVerdict, start time.Time) {
	status := string(verdict.OverallStatus)
	elapsed := time.Since(start)

	metrics.VerificationRuns.WithLabelValues(status).Inc()
	metrics.VerificationRunDuration.WithLabelValues(status).Observe(elapsed.Seconds())
	for _, fv := range verdict.FieldVerdicts {
		metrics.FieldVerdicts.WithLabelValues(string(fv.Field), fmt.Sprintf("%t", fv.Matched)).Inc()
	}

	if o.obs != nil {
		o.obs.RecordRunProcessed(ctx, status)
		o.obs.RecordRunDuration(ctx, elapsed, status)
	}
}

// emit delivers an event unless the run context is cancelled. A false return
// means the caller is gone and the run should stop.
func (o *Orchestrator) emit(ctx context.Context, events chan<- ProgressEvent, event ProgressEvent) bool {
	if events == nil {
		return ctx.Err() == nil
	}
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func categoryOf(err error) string {
	if stdErr, ok := err.(*errors.StandardError); ok {
		return errors.GetErrorCategory(stdErr.Code)
	}
	return "unknown"
}
