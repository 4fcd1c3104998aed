// Package capture decides which scored activity becomes a durable record,
// holding ambiguous candidates for human confirmation.
package capture

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/record"
)

const (
	DefaultHighThreshold       = 80
	DefaultLowThreshold        = 50
	DefaultAutoConfirmMinScore = 60
	DefaultTimeout             = 30 * time.Second
)

// Config configures an Engine. Zero thresholds take the defaults.
type Config struct {
	HighThreshold       int
	LowThreshold        int
	AutoConfirmMinScore int

	// AutoConfirmTypes are recorded without confirmation once they reach
	// AutoConfirmMinScore.
	AutoConfirmTypes []record.ActivityType

	// NeverConfirmTypes are always discarded.
	NeverConfirmTypes []record.ActivityType

	// Timeout is how long a pending confirmation lives.
	Timeout time.Duration

	// OnTimeout is called, outside the engine lock, for every pending
	// confirmation that expires unresolved.
	OnTimeout func(Pending)

	Logger *slog.Logger
}

type entry struct {
	Pending
	timer    *time.Timer
	resolved bool
}

// Engine holds capture policy and the set of pending confirmations.
type Engine struct {
	high, low, autoMin int
	autoTypes          []record.ActivityType
	neverTypes         []record.ActivityType
	timeout            time.Duration
	onTimeout          func(Pending)
	logger             *slog.Logger

	mu      sync.Mutex
	pending map[string]*entry
}

// NewEngine creates an Engine.
func NewEngine(c Config) (*Engine, error) {
	e := &Engine{
		high:       c.HighThreshold,
		low:        c.LowThreshold,
		autoMin:    c.AutoConfirmMinScore,
		autoTypes:  slices.Clone(c.AutoConfirmTypes),
		neverTypes: slices.Clone(c.NeverConfirmTypes),
		timeout:    c.Timeout,
		onTimeout:  c.OnTimeout,
		logger:     logger.OrNop(c.Logger),
		pending:    make(map[string]*entry),
	}
	if e.high == 0 {
		e.high = DefaultHighThreshold
	}
	if e.low == 0 {
		e.low = DefaultLowThreshold
	}
	if e.autoMin == 0 {
		e.autoMin = DefaultAutoConfirmMinScore
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.low > e.high {
		return nil, fmt.Errorf("low threshold %d is above high threshold %d", e.low, e.high)
	}
	return e, nil
}

// Decide scores one candidate. Ambiguous candidates are parked as pending
// confirmations with an armed expiry timer.
func (e *Engine) Decide(c Candidate) (Result, error) {
	if c.Content == "" {
		return Result{}, ErrEmptyContent
	}
	decision, reason := e.rule(c.Type(), float64(c.Value.TotalScore))
	return e.apply(c, decision, reason), nil
}

// rule applies the capture rules in order to a type and a score.
func (e *Engine) rule(t record.ActivityType, score float64) (Decision, string) {
	switch {
	case slices.Contains(e.autoTypes, t) && score >= float64(e.autoMin):
		return DecisionAutoRecord, fmt.Sprintf("%s is always recorded at score %.0f >= %d", t, score, e.autoMin)
	case slices.Contains(e.neverTypes, t):
		return DecisionDiscard, fmt.Sprintf("%s is never recorded", t)
	case score >= float64(e.high):
		return DecisionAutoRecord, fmt.Sprintf("score %.0f >= high threshold %d", score, e.high)
	case score < float64(e.low):
		return DecisionDiscard, fmt.Sprintf("score %.0f < low threshold %d", score, e.low)
	}
	return DecisionPending, fmt.Sprintf("score %.0f between %d and %d needs confirmation", score, e.low, e.high)
}

func (e *Engine) apply(c Candidate, decision Decision, reason string) Result {
	res := Result{
		Decision:   decision,
		Confidence: float64(c.Classification.Confidence) / 100,
		Reason:     reason,
		Candidate:  c,
	}
	if decision == DecisionPending {
		res.PendingID = e.park(c, res.Confidence)
	}

	e.logger.Debug("capture decided",
		"decision", decision,
		"type", c.Type().String(),
		"score", c.Value.TotalScore,
		"pending_id", res.PendingID,
	)
	return res
}

func (e *Engine) park(c Candidate, confidence float64) string {
	now := time.Now()
	ent := &entry{Pending: Pending{
		ID:         uuid.NewString(),
		Candidate:  c,
		Confidence: confidence,
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.timeout),
	}}

	e.mu.Lock()
	e.pending[ent.ID] = ent
	ent.timer = time.AfterFunc(e.timeout, func() { e.expire(ent.ID) })
	e.mu.Unlock()

	return ent.ID
}

func (e *Engine) expire(id string) {
	e.mu.Lock()
	ent, ok := e.pending[id]
	if !ok || ent.resolved {
		e.mu.Unlock()
		return
	}
	ent.resolved = true
	delete(e.pending, id)
	snapshot := ent.Pending
	e.mu.Unlock()

	e.logger.Debug("pending confirmation timed out", "pending_id", id)
	if e.onTimeout != nil {
		e.onTimeout(snapshot)
	}
}

// Resolve answers a pending confirmation. yes records with confidence 1,
// no discards, maybe keeps it pending with halved confidence and without
// re-arming its timer. Unknown, expired or already resolved ids yield a
// zero-confidence discard.
func (e *Engine) Resolve(id string, choice Choice) Resolution {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.pending[id]
	if !ok || ent.resolved {
		return Resolution{ID: id, State: StateDiscarded}
	}

	switch choice {
	case ChoiceYes:
		e.finish(ent)
		c := ent.Candidate
		return Resolution{ID: id, State: StateRecorded, Confidence: 1.0, Found: true, Candidate: &c}
	case ChoiceNo:
		e.finish(ent)
		c := ent.Candidate
		return Resolution{ID: id, State: StateDiscarded, Found: true, Candidate: &c}
	case ChoiceMaybe:
		ent.Confidence /= 2
		return Resolution{ID: id, State: StatePending, Confidence: ent.Confidence, Found: true}
	}
	return Resolution{ID: id, State: StatePending, Confidence: ent.Confidence, Found: true}
}

// finish marks ent resolved and removes it. Callers hold e.mu.
func (e *Engine) finish(ent *entry) {
	ent.resolved = true
	ent.timer.Stop()
	delete(e.pending, ent.ID)
}

// Get returns a pending confirmation by id.
func (e *Engine) Get(id string) (Pending, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	ent, ok := e.pending[id]
	if !ok {
		return Pending{}, false
	}
	return ent.Pending, true
}

// ListPending returns the outstanding confirmations, oldest first.
func (e *Engine) ListPending() []Pending {
	e.mu.Lock()
	out := make([]Pending, 0, len(e.pending))
	for _, ent := range e.pending {
		out = append(out, ent.Pending)
	}
	e.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Close stops every timer and drops outstanding confirmations.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, ent := range e.pending {
		e.finish(ent)
	}
}
