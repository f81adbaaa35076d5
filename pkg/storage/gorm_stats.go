package storage

import (
	"context"
	"time"

	"github.com/jdziat/questionnaire-autoanswer/pkg/core"
)

// JobFilter narrows a journal search.
type JobFilter struct {
	QuestionnaireID string
	Kind            core.JobKind
	Lifecycle       core.Lifecycle
	Since           time.Time
	Until           time.Time
	Limit           int
	Offset          int
}

// JobStats holds journal counts for one questionnaire.
type JobStats struct {
	Total     int64
	Active    int64
	Completed int64
	Failed    int64
	Canceled  int64
}

// AnswerStats holds stored answer counts by provenance.
type AnswerStats struct {
	Untouched int64
	Generated int64
	Manual    int64
}

// GetJobStats returns job counts grouped by lifecycle.
func (s *GormStorage) GetJobStats(ctx context.Context, questionnaireID string) (*JobStats, error) {
	type row struct {
		Lifecycle string
		Count     int64
	}
	var rows []row
	q := s.db.WithContext(ctx).
		Model(&core.JobRecord{}).
		Select("lifecycle, count(*) as count")
	if questionnaireID != "" {
		q = q.Where("questionnaire_id = ?", questionnaireID)
	}
	if err := q.Group("lifecycle").Find(&rows).Error; err != nil {
		return nil, err
	}

	stats := &JobStats{}
	for _, r := range rows {
		stats.Total += r.Count
		switch core.Lifecycle(r.Lifecycle) {
		case core.LifecycleCompleted:
			stats.Completed += r.Count
		case core.LifecycleFailed:
			stats.Failed += r.Count
		case core.LifecycleCanceled:
			stats.Canceled += r.Count
		default:
			stats.Active += r.Count
		}
	}
	return stats, nil
}

// GetAnswerStats returns stored answer counts grouped by status.
func (s *GormStorage) GetAnswerStats(ctx context.Context, questionnaireID string) (*AnswerStats, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&core.AnswerRecord{}).
		Select("status, count(*) as count").
		Where("questionnaire_id = ?", questionnaireID).
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := &AnswerStats{}
	for _, r := range rows {
		switch core.RecordStatus(r.Status) {
		case core.RecordGenerated:
			stats.Generated += r.Count
		case core.RecordManual:
			stats.Manual += r.Count
		default:
			stats.Untouched += r.Count
		}
	}
	return stats, nil
}

// SearchJobs returns journal rows matching the filter with pagination and
// total count, newest first.
func (s *GormStorage) SearchJobs(ctx context.Context, filter JobFilter) ([]*core.JobRecord, int64, error) {
	q := s.db.WithContext(ctx).Model(&core.JobRecord{})

	if filter.QuestionnaireID != "" {
		q = q.Where("questionnaire_id = ?", filter.QuestionnaireID)
	}
	if filter.Kind != "" {
		q = q.Where("kind = ?", filter.Kind)
	}
	if filter.Lifecycle != "" {
		q = q.Where("lifecycle = ?", filter.Lifecycle)
	}
	if !filter.Since.IsZero() {
		q = q.Where("triggered_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		q = q.Where("triggered_at <= ?", filter.Until)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var rows []*core.JobRecord
	err := q.Order("triggered_at DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// PurgeJobs deletes a questionnaire's journal rows in the given lifecycle.
func (s *GormStorage) PurgeJobs(ctx context.Context, questionnaireID string, lifecycle core.Lifecycle) (int64, error) {
	q := s.db.WithContext(ctx).Where("lifecycle = ?", lifecycle)
	if questionnaireID != "" {
		q = q.Where("questionnaire_id = ?", questionnaireID)
	}
	result := q.Delete(&core.JobRecord{})
	return result.RowsAffected, result.Error
}
