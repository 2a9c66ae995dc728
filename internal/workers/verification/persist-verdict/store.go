// internal/workers/verification/persist-verdict/store.go
package persistverdict

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"paystub-verify/internal/common/errors"
	"paystub-verify/internal/common/logger"
	"paystub-verify/internal/models"
)

// Store persists verification verdicts and reads the application/document
// records the pipeline runs against.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "verdict-store"}),
	}
}

// Insert stores a verdict. The verdict is immutable once written; callers
// never update rows, a re-run inserts a new verdict.
func (s *Store) Insert(ctx context.Context, verdict *models.VerificationVerdict) error {
	if verdict.ID == "" {
		verdict.ID = "ver_" + uuid.NewString()
	}
	if verdict.CreatedAt.IsZero() {
		verdict.CreatedAt = time.Now().UTC()
	}

	fieldVerdicts, err := json.Marshal(verdict.FieldVerdicts)
	if err != nil {
		return errors.NewVerdictPersistFailedError(err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verification_verdicts
			(id, application_id, document_id, field_verdicts, overall_status, score_percent, summary, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		verdict.ID, verdict.ApplicationID, verdict.DocumentID, fieldVerdicts,
		string(verdict.OverallStatus), verdict.ScorePercent, verdict.Summary, verdict.CreatedAt)
	if err != nil {
		return errors.NewVerdictPersistFailedError(err)
	}

	s.logger.Info("verdict persisted", map[string]interface{}{
		"verdictId":     verdict.ID,
		"applicationId": verdict.ApplicationID,
		"status":        verdict.OverallStatus,
	})
	return nil
}

// ListByApplication returns all verdicts for an application, newest first.
func (s *Store) ListByApplication(ctx context.Context, applicationID string) ([]models.VerificationVerdict, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, application_id, document_id, field_verdicts, overall_status, score_percent, summary, created_at
		FROM verification_verdicts
		WHERE application_id = $1
		ORDER BY created_at DESC`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list verdicts: %w", err)
	}
	defer rows.Close()

	var verdicts []models.VerificationVerdict
	for rows.Next() {
		verdict, err := scanVerdict(rows)
		if err != nil {
			return nil, err
		}
		verdicts = append(verdicts, *verdict)
	}
	return verdicts, rows.Err()
}

// Latest returns the most recent verdict for an application, or nil when no
// run has completed yet.
func (s *Store) Latest(ctx context.Context, applicationID string) (*models.VerificationVerdict, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, application_id, document_id, field_verdicts, overall_status, score_percent, summary, created_at
		FROM verification_verdicts
		WHERE application_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, applicationID)

	verdict, err := scanVerdict(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return verdict, nil
}

// Stats counts stored verdicts by overall status.
func (s *Store) Stats(ctx context.Context) (*VerdictStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT overall_status, COUNT(*)
		FROM verification_verdicts
		GROUP BY overall_status`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := &VerdictStats{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats.Total += count
		switch models.OverallStatus(status) {
		case models.StatusVerified:
			stats.Verified = count
		case models.StatusMismatch:
			stats.Mismatch = count
		case models.StatusError:
			stats.Error = count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if stats.Total > 0 {
		stats.VerificationRate = math.Round(float64(stats.Verified)/float64(stats.Total)*1000) / 10
	}
	return stats, nil
}

// GetApplication loads the declared application data.
func (s *Store) GetApplication(ctx context.Context, applicationID string) (*models.ApplicationRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, annual_salary, employer_name, ssn
		FROM applications
		WHERE id = $1`, applicationID)

	var app models.ApplicationRecord
	err := row.Scan(&app.ID, &app.FullName, &app.AnnualSalary, &app.EmployerName, &app.SSN)
	if err == sql.ErrNoRows {
		return nil, errors.NewApplicationNotFoundError(applicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return &app, nil
}

// GetLatestDocument returns the most recently uploaded document for an
// application.
func (s *Store) GetLatestDocument(ctx context.Context, applicationID string) (*models.Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, application_id, file_name, storage_url, uploaded_at
		FROM documents
		WHERE application_id = $1
		ORDER BY uploaded_at DESC
		LIMIT 1`, applicationID)

	var doc models.Document
	err := row.Scan(&doc.ID, &doc.ApplicationID, &doc.FileName, &doc.StorageURL, &doc.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewDocumentNotFoundError(applicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest document: %w", err)
	}
	return &doc, nil
}

// ListPendingDocuments returns uploaded documents that have no verdict yet,
// oldest first.
func (s *Store) ListPendingDocuments(ctx context.Context, limit int) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.application_id, d.file_name, d.storage_url, d.uploaded_at
		FROM documents d
		LEFT JOIN verification_verdicts v ON v.document_id = d.id
		WHERE v.id IS NULL
		ORDER BY d.uploaded_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.ApplicationID, &doc.FileName, &doc.StorageURL, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVerdict(row rowScanner) (*models.VerificationVerdict, error) {
	var verdict models.VerificationVerdict
	var fieldVerdicts []byte
	var status string

	err := row.Scan(&verdict.ID, &verdict.ApplicationID, &verdict.DocumentID,
		&fieldVerdicts, &status, &verdict.ScorePercent, &verdict.Summary, &verdict.CreatedAt)
	if err != nil {
		return nil, err
	}

	verdict.OverallStatus = models.OverallStatus(status)
	if err := json.Unmarshal(fieldVerdicts, &verdict.FieldVerdicts); err != nil {
		return nil, fmt.Errorf("decode field verdicts: %w", err)
	}
	return &verdict, nil
}
