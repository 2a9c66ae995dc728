// internal/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "paystub-verify/internal/common/errors"
	"paystub-verify/internal/common/logger"
	"paystub-verify/internal/common/retry"
	"paystub-verify/internal/models"
	extractpaystubdata "paystub-verify/internal/workers/verification/extract-paystub-data"
	normalizeextraction "paystub-verify/internal/workers/verification/normalize-extraction"
	verifyapplicationdata "paystub-verify/internal/workers/verification/verify-application-data"
)

// ==========================
// Test Helper Functions
// ==========================

type fakeExtractor struct {
	raw                   map[string]interface{}
	failuresBeforeSuccess int
	permanentErr          error
	calls                 int
}

func (f *fakeExtractor) Execute(_ context.Context, _ *extractpaystubdata.Input) (*extractpaystubdata.Output, error) {
	f.calls++
	if f.permanentErr != nil {
		return nil, f.permanentErr
	}
	if f.calls <= f.failuresBeforeSuccess {
		return nil, fmt.Errorf("transient model failure")
	}
	return &extractpaystubdata.Output{Raw: f.raw}, nil
}

type fakeStore struct {
	inserted []*models.VerificationVerdict
	err      error
}

func (f *fakeStore) Insert(_ context.Context, verdict *models.VerificationVerdict) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, verdict)
	return nil
}

func newOrchestrator(t *testing.T, extractor Extractor, store VerdictStore) *Orchestrator {
	t.Helper()
	log := logger.NewTestLogger(t)
	return New(
		extractor,
		normalizeextraction.NewHandler(log),
		verifyapplicationdata.NewHandler(verifyapplicationdata.LoadConfig(), log),
		store,
		retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond},
		nil,
		log,
	)
}

func testApplication() models.ApplicationRecord {
	return models.ApplicationRecord{
		ID:           "app-1",
		FullName:     "Maria Garcia",
		AnnualSalary: 60000,
		EmployerName: "Acme Corp",
		SSN:          "999887777",
	}
}

func testDocument() models.Document {
	return models.Document{
		ID:            "doc-1",
		ApplicationID: "app-1",
		StorageURL:    "https://storage.example.com/doc-1.pdf",
	}
}

func matchingExtraction() map[string]interface{} {
	return map[string]interface{}{
		"employee_name": "maria garcia",
		"company_name":  "Acme",
		"annual_salary": float64(60500),
		"ssn":           "7777",
	}
}

func collectSteps(events chan ProgressEvent) []string {
	close(events)
	var steps []string
	for e := range events {
		steps = append(steps, e.Step)
	}
	return steps
}

// ==========================
// Happy Path
// ==========================

func TestRun_VerifiedFlow(t *testing.T) {
	store := &fakeStore{}
	o := newOrchestrator(t, &fakeExtractor{raw: matchingExtraction()}, store)
	events := make(chan ProgressEvent, 32)

	verdict, err := o.Run(context.Background(), testApplication(), testDocument(), events)
	require.NoError(t, err)

	assert.Equal(t, models.StatusVerified, verdict.OverallStatus)
	assert.Equal(t, 100.0, verdict.ScorePercent)
	assert.Equal(t, "app-1", verdict.ApplicationID)
	assert.Equal(t, "doc-1", verdict.DocumentID)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, verdict, store.inserted[0])

	assert.Equal(t, []string{
		StepStarting, StepDownloading, StepExtracting, StepExtracted,
		StepVerifyingName, StepVerifyingSalary, StepVerifyingEmployer,
		StepFinalizing, StepComplete,
	}, collectSteps(events))
}

func TestRun_EventProgressValues(t *testing.T) {
	o := newOrchestrator(t, &fakeExtractor{raw: matchingExtraction()}, &fakeStore{})
	events := make(chan ProgressEvent, 32)

	_, err := o.Run(context.Background(), testApplication(), testDocument(), events)
	require.NoError(t, err)
	close(events)

	want := map[string]int{
		StepStarting:          0,
		StepDownloading:       20,
		StepExtracting:        40,
		StepExtracted:         60,
		StepVerifyingName:     70,
		StepVerifyingSalary:   80,
		StepVerifyingEmployer: 90,
		StepFinalizing:        95,
		StepComplete:          100,
	}
	for e := range events {
		assert.Equal(t, want[e.Step], e.Progress, e.Step)
		assert.False(t, e.Error, e.Step)
	}
}

func TestRun_MismatchWhenAnyFieldDiffers(t *testing.T) {
	raw := matchingExtraction()
	raw["ssn"] = "1111"

	store := &fakeStore{}
	o := newOrchestrator(t, &fakeExtractor{raw: raw}, store)

	verdict, err := o.Run(context.Background(), testApplication(), testDocument(), nil)
	require.NoError(t, err)

	assert.Equal(t, models.StatusMismatch, verdict.OverallStatus)
	assert.Equal(t, 75.0, verdict.ScorePercent)
	require.Len(t, store.inserted, 1)
}

func TestRun_WorksWithoutEventChannel(t *testing.T) {
	o := newOrchestrator(t, &fakeExtractor{raw: matchingExtraction()}, &fakeStore{})

	verdict, err := o.Run(context.Background(), testApplication(), testDocument(), nil)
	require.NoError(t, err)
	assert.Equal(t, models.StatusVerified, verdict.OverallStatus)
}

// ==========================
// Extraction Retry
// ==========================

func TestRun_RetriesExtractionThenSucceeds(t *testing.T) {
	extractor := &fakeExtractor{raw: matchingExtraction(), failuresBeforeSuccess: 2}
	o := newOrchestrator(t, extractor, &fakeStore{})

	verdict, err := o.Run(context.Background(), testApplication(), testDocument(), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, extractor.calls)
	assert.Equal(t, models.StatusVerified, verdict.OverallStatus)
}

func TestRun_ExtractionFailureProducesErrorVerdict(t *testing.T) {
	extractor := &fakeExtractor{
		permanentErr: cerrors.NewExtractionFailedError(fmt.Errorf("model unreachable")),
	}
	store := &fakeStore{}
	o := newOrchestrator(t, extractor, store)
	events := make(chan ProgressEvent, 32)

	verdict, err := o.Run(context.Background(), testApplication(), testDocument(), events)
	require.NoError(t, err, "extraction failure is reported in the verdict, not as an error")

	assert.Equal(t, 3, extractor.calls, "retry budget should be exhausted")
	assert.Equal(t, models.StatusError, verdict.OverallStatus)
	assert.Zero(t, verdict.ScorePercent)
	assert.Empty(t, verdict.FieldVerdicts)
	assert.Contains(t, verdict.Summary, "Verification failed")

	// Error verdicts are persisted too, so stats can count them.
	require.Len(t, store.inserted, 1)
	assert.Equal(t, models.StatusError, store.inserted[0].OverallStatus)

	steps := collectSteps(events)
	require.NotEmpty(t, steps)
	assert.Equal(t, StepError, steps[len(steps)-1])
	assert.NotContains(t, steps, StepComplete)
}

// ==========================
// Persistence Failure
// ==========================

func TestRun_PersistenceFailureReturnsVerdictAndError(t *testing.T) {
	persistErr := cerrors.NewVerdictPersistFailedError(fmt.Errorf("connection reset"))
	o := newOrchestrator(t, &fakeExtractor{raw: matchingExtraction()}, &fakeStore{err: persistErr})
	events := make(chan ProgressEvent, 32)

	verdict, err := o.Run(context.Background(), testApplication(), testDocument(), events)
	require.Error(t, err)

	var stdErr *cerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, cerrors.ErrCodeVerdictPersistFailed, stdErr.Code)

	// The computed verdict is still returned so the caller can retry storage.
	require.NotNil(t, verdict)
	assert.Equal(t, models.StatusVerified, verdict.OverallStatus)

	steps := collectSteps(events)
	assert.Equal(t, StepError, steps[len(steps)-1])
	assert.NotContains(t, steps, StepComplete)
}

// ==========================
// Cancellation
// ==========================

func TestRun_CancelledContextStopsRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := &fakeStore{}
	o := newOrchestrator(t, &fakeExtractor{raw: matchingExtraction()}, store)

	verdict, err := o.Run(ctx, testApplication(), testDocument(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, verdict)
	assert.Empty(t, store.inserted)
}

func TestRun_CancelDuringEmissionStopsStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	store := &fakeStore{}
	o := newOrchestrator(t, &fakeExtractor{raw: matchingExtraction()}, store)

	// Unbuffered channel with no reader: the first emit blocks until cancel.
	events := make(chan ProgressEvent)
	done := make(chan struct{})
	var runErr error
	go func() {
		defer close(done)
		_, runErr = o.Run(ctx, testApplication(), testDocument(), events)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}

	assert.ErrorIs(t, runErr, context.Canceled)
	assert.Empty(t, store.inserted, "no verdict may be written for an abandoned run")
}

// ==========================
// Determinism
// ==========================

func TestRun_IdenticalInputsYieldIdenticalVerdicts(t *testing.T) {
	o := newOrchestrator(t, &fakeExtractor{raw: matchingExtraction()}, &fakeStore{})

	first, err := o.Run(context.Background(), testApplication(), testDocument(), nil)
	require.NoError(t, err)
	second, err := o.Run(context.Background(), testApplication(), testDocument(), nil)
	require.NoError(t, err)

	first.ID, second.ID = "", ""
	first.CreatedAt, second.CreatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
}
