// File: internal/repository/attempt/gorm_attempt_repository.go
package attempt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/iyunix/go-rigadvisor/internal/domain"
)

// maxRecent caps how many rows Recent returns.
const maxRecent = 500

type gormAttemptRepository struct {
	db *gorm.DB
}

func NewGormAttemptRepository(db *gorm.DB) AttemptRepository {
	return &gormAttemptRepository{db: db}
}

func (r *gormAttemptRepository) Create(ctx context.Context, record *domain.AttemptRecord) error {
	if record.RequestID == "" {
		return errors.New("attempt record needs a request ID")
	}
	if record.Attempt < 1 {
		return fmt.Errorf("invalid attempt index %d", record.Attempt)
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("database error creating attempt record: %w", err)
	}
	return nil
}

// FindByRequestID returns the attempts of one call in attempt order.
func (r *gormAttemptRepository) FindByRequestID(ctx context.Context, requestID string) ([]domain.AttemptRecord, error) {
	var records []domain.AttemptRecord
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("attempt ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("database error finding attempts: %w", err)
	}
	return records, nil
}

// Recent returns the newest records first.
func (r *gormAttemptRepository) Recent(ctx context.Context, limit int) ([]domain.AttemptRecord, error) {
	if limit <= 0 || limit > maxRecent {
		limit = maxRecent
	}
	var records []domain.AttemptRecord
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("database error listing attempts: %w", err)
	}
	return records, nil
}

func (r *gormAttemptRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&domain.AttemptRecord{})
	if result.Error != nil {
		return 0, fmt.Errorf("database error pruning attempts: %w", result.Error)
	}
	return result.RowsAffected, nil
}
