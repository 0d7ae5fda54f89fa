// File: internal/domain/attempt.go
package domain

import "time"

// AttemptRecord is one journaled transport attempt.
type AttemptRecord struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	RequestID  string    `gorm:"index;size:64" json:"request_id"`
	Attempt    int       `gorm:"not null" json:"attempt"`
	Outcome    string    `gorm:"size:16;not null" json:"outcome"`
	ErrorType  string    `gorm:"size:32" json:"error_type,omitempty"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `gorm:"size:512" json:"error,omitempty"`
	ElapsedMs  int64     `json:"elapsed_ms"`
	BackoffMs  int64     `json:"backoff_ms"`
	StartedAt  time.Time `json:"started_at"`
	CreatedAt  time.Time `json:"created_at"`
}
