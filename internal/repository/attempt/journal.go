// File: internal/repository/attempt/journal.go
package attempt

import (
	"context"
	"time"

	"github.com/iyunix/go-rigadvisor/internal/domain"
	"github.com/iyunix/go-rigadvisor/internal/services/transport"
)

type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// writeTimeout bounds a single journal insert.
const writeTimeout = 2 * time.Second

// Journal is a transport.Observer that writes every attempt to the repository.
// Write failures are logged and never reach the retry loop.
type Journal struct {
	repo   AttemptRepository
	logger Logger
}

func NewJournal(repo AttemptRepository, logger Logger) *Journal {
	return &Journal{repo: repo, logger: logger}
}

func (j *Journal) ObserveAttempt(a transport.Attempt) {
	if a.RequestID == "" {
		j.logger.Debug("skipping attempt without request id", "attempt", a.Index)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := j.repo.Create(ctx, RecordFromAttempt(a)); err != nil {
		j.logger.Error("failed to journal attempt", "request_id", a.RequestID, "attempt", a.Index, "error", err)
	}
}

// RecordFromAttempt flattens an attempt into its stored form.
func RecordFromAttempt(a transport.Attempt) *domain.AttemptRecord {
	rec := &domain.AttemptRecord{
		RequestID:  a.RequestID,
		Attempt:    a.Index,
		Outcome:    string(a.Outcome),
		ErrorType:  string(a.ErrorType),
		StatusCode: a.StatusCode,
		ElapsedMs:  a.Elapsed.Milliseconds(),
		BackoffMs:  a.Backoff.Milliseconds(),
		StartedAt:  a.StartedAt,
	}
	if a.Err != nil {
		msg := a.Err.Error()
		if len(msg) > 512 {
			msg = msg[:512]
		}
		rec.Error = msg
	}
	return rec
}
