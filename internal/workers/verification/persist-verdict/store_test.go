// internal/workers/verification/persist-verdict/store_test.go
package persistverdict

import (
	"context"
	"database/sql"
	"encoding/json"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "paystub-verify/internal/common/errors"
	"paystub-verify/internal/common/logger"
	"paystub-verify/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func setupStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db, logger.NewTestLogger(t)), mock
}

func sampleVerdict() *models.VerificationVerdict {
	return &models.VerificationVerdict{
		ApplicationID: "app-1",
		DocumentID:    "doc-1",
		FieldVerdicts: []models.FieldVerdict{
			{Field: models.FieldNameName, Matched: true, Reason: "Name matches (similarity: 100.0%)"},
			{Field: models.FieldNameSalary, Matched: true, Reason: "Salary matches within 12% tolerance (difference: $500, 0.8%)"},
			{Field: models.FieldNameEmployer, Matched: true, Reason: "Employer matches (similarity: 100.0%)"},
			{Field: models.FieldNameSSN, Matched: true, Reason: "SSN last 4 digits match"},
		},
		OverallStatus: models.StatusVerified,
		ScorePercent:  100,
		Summary:       "Verification passed - all fields match (4/4 fields verified)",
	}
}

func verdictRowColumns() []string {
	return []string{"id", "application_id", "document_id", "field_verdicts", "overall_status", "score_percent", "summary", "created_at"}
}

// ==========================
// Insert
// ==========================

func TestInsert_AssignsIDAndTimestamp(t *testing.T) {
	store, mock := setupStore(t)
	verdict := sampleVerdict()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO verification_verdicts")).
		WithArgs(sqlmock.AnyArg(), "app-1", "doc-1", sqlmock.AnyArg(), "verified", 100.0, verdict.Summary, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Insert(context.Background(), verdict))

	assert.True(t, strings.HasPrefix(verdict.ID, "ver_"), "generated ID should carry ver_ prefix, got %s", verdict.ID)
	assert.False(t, verdict.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_PreservesProvidedID(t *testing.T) {
	store, mock := setupStore(t)
	verdict := sampleVerdict()
	verdict.ID = "ver_fixed"
	verdict.CreatedAt = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO verification_verdicts")).
		WithArgs("ver_fixed", "app-1", "doc-1", sqlmock.AnyArg(), "verified", 100.0, verdict.Summary, verdict.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Insert(context.Background(), verdict))
	assert.Equal(t, "ver_fixed", verdict.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_DatabaseError(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO verification_verdicts")).
		WillReturnError(sql.ErrConnDone)

	err := store.Insert(context.Background(), sampleVerdict())
	require.Error(t, err)

	var stdErr *cerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, cerrors.ErrCodeVerdictPersistFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

// ==========================
// Reads
// ==========================

func TestListByApplication(t *testing.T) {
	store, mock := setupStore(t)

	fieldVerdicts, _ := json.Marshal(sampleVerdict().FieldVerdicts)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM verification_verdicts")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows(verdictRowColumns()).
			AddRow("ver_2", "app-1", "doc-2", fieldVerdicts, "mismatch", 75.0, "Verification failed - 1 field(s) mismatch: ssn", now).
			AddRow("ver_1", "app-1", "doc-1", fieldVerdicts, "verified", 100.0, "Verification passed - all fields match (4/4 fields verified)", now.Add(-time.Hour)))

	verdicts, err := store.ListByApplication(context.Background(), "app-1")
	require.NoError(t, err)

	require.Len(t, verdicts, 2)
	assert.Equal(t, "ver_2", verdicts[0].ID)
	assert.Equal(t, models.StatusMismatch, verdicts[0].OverallStatus)
	assert.Len(t, verdicts[0].FieldVerdicts, 4)
	assert.Equal(t, models.StatusVerified, verdicts[1].OverallStatus)
}

func TestLatest_NoRuns(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM verification_verdicts")).
		WithArgs("app-unseen").
		WillReturnRows(sqlmock.NewRows(verdictRowColumns()))

	verdict, err := store.Latest(context.Background(), "app-unseen")
	require.NoError(t, err)
	assert.Nil(t, verdict)
}

func TestStats(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY overall_status")).
		WillReturnRows(sqlmock.NewRows([]string{"overall_status", "count"}).
			AddRow("verified", 6).
			AddRow("mismatch", 3).
			AddRow("error", 1))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, stats.Total)
	assert.Equal(t, 6, stats.Verified)
	assert.Equal(t, 3, stats.Mismatch)
	assert.Equal(t, 1, stats.Error)
	assert.Equal(t, 60.0, stats.VerificationRate)
}

func TestStats_Empty(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY overall_status")).
		WillReturnRows(sqlmock.NewRows([]string{"overall_status", "count"}))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.VerificationRate)
}

func TestGetApplication_NotFound(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM applications")).
		WithArgs("app-missing").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "annual_salary", "employer_name", "ssn"}))

	_, err := store.GetApplication(context.Background(), "app-missing")
	require.Error(t, err)

	var stdErr *cerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, cerrors.ErrCodeApplicationNotFound, stdErr.Code)
}

func TestGetLatestDocument(t *testing.T) {
	store, mock := setupStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM documents")).
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_id", "file_name", "storage_url", "uploaded_at"}).
			AddRow("doc-9", "app-1", "stub.pdf", "https://storage.example.com/stub.pdf", now))

	doc, err := store.GetLatestDocument(context.Background(), "app-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-9", doc.ID)
	assert.Equal(t, "https://storage.example.com/stub.pdf", doc.StorageURL)
}

func TestListPendingDocuments(t *testing.T) {
	store, mock := setupStore(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN verification_verdicts")).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "application_id", "file_name", "storage_url", "uploaded_at"}).
			AddRow("doc-1", "app-1", "a.pdf", "https://storage.example.com/a.pdf", now.Add(-2*time.Hour)).
			AddRow("doc-2", "app-2", "b.png", "https://storage.example.com/b.png", now))

	docs, err := store.ListPendingDocuments(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc-1", docs[0].ID)
	assert.Equal(t, "app-2", docs[1].ApplicationID)
}
