// File: internal/repository/attempt/retention.go
package attempt

import (
	"context"
	"sync"
	"time"
)

// Pruner drops journal rows older than the retention window on a fixed period.
type Pruner struct {
	repo      AttemptRepository
	logger    Logger
	retention time.Duration
	period    time.Duration
	now       func() time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewPruner starts the sweep loop. A zero period disables the loop; Prune can still be called directly.
func NewPruner(repo AttemptRepository, logger Logger, retention, period time.Duration) *Pruner {
	p := &Pruner{
		repo:      repo,
		logger:    logger,
		retention: retention,
		period:    period,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		done:      make(chan struct{}),
	}
	if period > 0 {
		go p.loop()
	} else {
		close(p.done)
	}
	return p
}

// Prune deletes every record created before now minus the retention window.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	return p.repo.DeleteBefore(ctx, p.now().Add(-p.retention))
}

func (p *Pruner) loop() {
	defer close(p.done)
	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			removed, err := p.Prune(ctx)
			cancel()
			if err != nil {
				p.logger.Error("failed to prune attempt journal", "error", err)
				continue
			}
			if removed > 0 {
				p.logger.Debug("pruned attempt journal", "removed", removed, "retention", p.retention.String())
			}
		case <-p.stopCh:
			return
		}
	}
}

// Close stops the sweep loop and waits for an in-flight sweep to finish.
func (p *Pruner) Close() {
	p.stopOnce.Do(func() { close(p.stopCh) })
	<-p.done
}
