package attempt

import (
	"context"
	"time"

	"github.com/iyunix/go-rigadvisor/internal/domain"
)

// AttemptRepository stores transport attempts for diagnostics.
type AttemptRepository interface {
	Create(ctx context.Context, record *domain.AttemptRecord) error
	FindByRequestID(ctx context.Context, requestID string) ([]domain.AttemptRecord, error)
	Recent(ctx context.Context, limit int) ([]domain.AttemptRecord, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
