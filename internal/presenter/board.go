// File: internal/presenter/board.go
package presenter

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iyunix/go-rigadvisor/internal/domain"
)

var (
	ErrAlreadyPending = errors.New("a suggestion for this plan is already pending")
	ErrUnknownPlan    = errors.New("unknown plan")
)

// State is where a plan's analysis box currently is.
type State string

const (
	StateIdle      State = "idle"
	StatePending   State = "pending"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// View is everything a page needs to draw one plan's analysis box.
type View struct {
	PlanID      string    `json:"plan"`
	State       State     `json:"state"`
	Text        string    `json:"text,omitempty"`
	ShowTrigger bool      `json:"show_trigger"`
	ShowLoader  bool      `json:"show_loader"`
	ShowResult  bool      `json:"show_result"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func idleView(planID string) View {
	return View{PlanID: planID, State: StateIdle, ShowTrigger: true}
}

func pendingView(planID string) View {
	return View{PlanID: planID, State: StatePending, ShowLoader: true}
}

func succeededView(planID, text string) View {
	return View{PlanID: planID, State: StateSucceeded, Text: text, ShowResult: true}
}

func failedView(planID, message string) View {
	return View{PlanID: planID, State: StateFailed, Text: message, ShowResult: true, ShowTrigger: true}
}

// Suggester is satisfied by suggestion.Service.
type Suggester interface {
	GetSuggestion(ctx context.Context, planID string) (string, error)
}

type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	Debug(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
}

// subscriberBuffer is how many views a slow subscriber may lag before views are dropped for it.
const subscriberBuffer = 8

// Board keeps one View per plan and drives the suggestion call behind each trigger.
// At most one call per plan is in flight at a time.
type Board struct {
	suggester Suggester
	logger    Logger
	fallback  string
	now       func() time.Time

	mu      sync.Mutex
	views   map[string]View
	subs    map[string]map[int]chan View
	nextSub int
}

type Option func(*Board)

// WithFallbackMessage replaces the text shown when a suggestion fails.
func WithFallbackMessage(msg string) Option {
	return func(b *Board) {
		b.fallback = msg
	}
}

func NewBoard(suggester Suggester, planIDs []string, logger Logger, opts ...Option) *Board {
	b := &Board{
		suggester: suggester,
		logger:    logger,
		fallback:  domain.FallbackMessage,
		now:       time.Now,
		views:     make(map[string]View, len(planIDs)),
		subs:      make(map[string]map[int]chan View),
	}
	for _, opt := range opts {
		opt(b)
	}
	for _, id := range planIDs {
		v := idleView(id)
		v.UpdatedAt = b.now()
		b.views[id] = v
	}
	return b
}

// View returns the current view for planID.
func (b *Board) View(planID string) (View, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.views[planID]
	return v, ok
}

// Trigger moves planID to Pending, waits for the suggestion and settles the view.
// It returns the settled view; on failure the suggestion error is returned alongside it.
// A plan that is already Pending is left untouched and ErrAlreadyPending is returned.
func (b *Board) Trigger(ctx context.Context, planID string) (View, error) {
	b.mu.Lock()
	current, ok := b.views[planID]
	if !ok {
		b.mu.Unlock()
		return View{}, ErrUnknownPlan
	}
	if current.State == StatePending {
		b.mu.Unlock()
		return current, ErrAlreadyPending
	}
	b.setLocked(pendingView(planID))
	b.mu.Unlock()

	text, err := b.suggester.GetSuggestion(ctx, planID)

	var settled View
	if err != nil {
		b.logger.Warn("showing fallback message", "plan", planID, "error", err)
		settled = failedView(planID, b.fallback)
	} else {
		settled = succeededView(planID, text)
	}

	b.mu.Lock()
	settled = b.setLocked(settled)
	b.mu.Unlock()
	return settled, err
}

// Subscribe delivers every later view change for planID until cancel is called.
func (b *Board) Subscribe(planID string) (<-chan View, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.views[planID]; !ok {
		return nil, nil, ErrUnknownPlan
	}

	id := b.nextSub
	b.nextSub++
	ch := make(chan View, subscriberBuffer)
	if b.subs[planID] == nil {
		b.subs[planID] = make(map[int]chan View)
	}
	b.subs[planID][id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[planID], id)
			close(ch)
		})
	}
	return ch, cancel, nil
}

func (b *Board) setLocked(v View) View {
	v.UpdatedAt = b.now()
	b.views[v.PlanID] = v
	for _, ch := range b.subs[v.PlanID] {
		select {
		case ch <- v:
		default:
			b.logger.Debug("dropping view for slow subscriber", "plan", v.PlanID, "state", string(v.State))
		}
	}
	return v
}
