package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
	"github.com/jdziat/questionnaire-autoanswer/pkg/security"
)

// GormStorage implements core.Storage and core.JobJournal using GORM.
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage creates a new GORM-backed storage.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&core.AnswerRecord{}, &core.JobRecord{})
}

// UpsertAnswer inserts or replaces the stored answer for a record.
// Invalid input is wrapped with core.NoRetry since repeating it cannot help.
func (s *GormStorage) UpsertAnswer(ctx context.Context, w core.AnswerWrite) error {
	if err := security.ValidateRecordID(w.RecordID); err != nil {
		return core.NoRetry(err)
	}
	if w.Answer != nil {
		if err := security.ValidateAnswer(*w.Answer); err != nil {
			return core.NoRetry(err)
		}
	}
	sources, err := json.Marshal(w.Sources)
	if err != nil {
		return core.NoRetry(fmt.Errorf("encode sources: %w", err))
	}
	status := w.Status
	if status == "" {
		status = core.RecordUntouched
	}

	row := &core.AnswerRecord{
		RecordID:        w.RecordID,
		QuestionnaireID: w.QuestionnaireID,
		OriginalIndex:   w.OriginalIndex,
		Answer:          w.Answer,
		Sources:         sources,
		Status:          status,
		JobID:           w.JobID,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "record_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"questionnaire_id", "original_index", "answer", "sources", "status", "job_id", "updated_at",
			}),
		}).
		Create(row).Error
}

// GetAnswer retrieves the stored answer for a record. It returns nil when the
// record has never been written.
func (s *GormStorage) GetAnswer(ctx context.Context, recordID string) (*core.AnswerRecord, error) {
	var row core.AnswerRecord
	err := s.db.WithContext(ctx).First(&row, "record_id = ?", recordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// GetAnswers retrieves every stored answer of a questionnaire in question
// order.
func (s *GormStorage) GetAnswers(ctx context.Context, questionnaireID string) ([]core.AnswerRecord, error) {
	var rows []core.AnswerRecord
	err := s.db.WithContext(ctx).
		Where("questionnaire_id = ?", questionnaireID).
		Order("original_index ASC").
		Find(&rows).Error
	return rows, err
}

// SeedInputs overlays stored answers onto a question set by record ID so a
// session resumes where the last one stopped. Inputs without a stored row are
// returned unchanged.
func (s *GormStorage) SeedInputs(ctx context.Context, questionnaireID string, inputs []core.QuestionInput) ([]core.QuestionInput, error) {
	rows, err := s.GetAnswers(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]core.AnswerRecord, len(rows))
	for _, row := range rows {
		byID[row.RecordID] = row
	}

	out := make([]core.QuestionInput, len(inputs))
	for i, in := range inputs {
		out[i] = in
		row, ok := byID[in.RecordID]
		if !ok || in.RecordID == "" {
			continue
		}
		sources, err := DecodeSources(row.Sources)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", row.RecordID, err)
		}
		out[i].Answer = core.CopyAnswer(row.Answer)
		out[i].Sources = sources
		out[i].Status = row.Status
	}
	return out, nil
}

// DecodeSources decodes the JSON sources column.
func DecodeSources(data []byte) ([]core.SourceRef, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var sources []core.SourceRef
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("decode sources: %w", err)
	}
	return sources, nil
}

// SaveJob inserts or updates a job journal row.
// The failure reason is sanitized before storage.
func (s *GormStorage) SaveJob(ctx context.Context, rec *core.JobRecord) error {
	if rec.ID == "" {
		return core.NoRetry(core.ErrInvalidRecordID)
	}
	rec.Reason = security.SanitizeErrorMessage(rec.Reason)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"lifecycle", "reason", "accepted_at", "finished_at", "updated_at",
			}),
		}).
		Create(rec).Error
}

// GetJob retrieves a job journal row by ID.
func (s *GormStorage) GetJob(ctx context.Context, jobID string) (*core.JobRecord, error) {
	var rec core.JobRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetJobsByLifecycle retrieves journal rows in the given lifecycle.
func (s *GormStorage) GetJobsByLifecycle(ctx context.Context, lifecycle core.Lifecycle, limit int) ([]*core.JobRecord, error) {
	var rows []*core.JobRecord
	err := s.db.WithContext(ctx).
		Where("lifecycle = ?", lifecycle).
		Order("triggered_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// DecodeTargets decodes the JSON targets column of a journal row.
func DecodeTargets(rec *core.JobRecord) ([]int, error) {
	if len(rec.Targets) == 0 {
		return nil, nil
	}
	var targets []int
	if err := json.Unmarshal(rec.Targets, &targets); err != nil {
		return nil, fmt.Errorf("decode targets: %w", err)
	}
	return targets, nil
}
