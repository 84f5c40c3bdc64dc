package pivot

import (
	"context"
	"time"

	"github.com/asaidimu/go-pivot/core/schema"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// State is a checkpoint of one Execute call.
type State string

const (
	StateIdle             State = "idle"
	StateValidating       State = "validating"
	StateValidationFailed State = "validation_failed"
	StateFiltering        State = "filtering"
	StateReshaping        State = "reshaping:single"
	StateReshapingTierA   State = "reshaping:tier_a"
	StateReshapingTierB   State = "reshaping:tier_b"
	StateFlattening       State = "flattening"
	StateAddingMargins    State = "adding_margins"
	StateDone             State = "done"
)

// ExecutionEvent is emitted each time an execution enters a state.
type ExecutionEvent struct {
	State       State          `json:"state"`
	ExecutionID string         `json:"executionId"`
	Timestamp   int64          `json:"timestamp"`          // Unix milliseconds.
	Duration    *int64         `json:"duration,omitempty"` // Milliseconds since the execution started.
	Rows        int            `json:"rows"`               // Rows in play when the state was entered.
	Path        Path           `json:"path,omitempty"`
	Issues      []schema.Issue `json:"issues,omitempty"`
	Error       *string        `json:"error,omitempty"`
}

// EventCallback receives execution events.
type EventCallback func(ctx context.Context, event ExecutionEvent) error

// SubscriptionInfo describes a registered callback.
type SubscriptionInfo struct {
	ID          string `json:"id"`
	State       State  `json:"state"`
	Label       string `json:"label,omitempty"`
	unsubscribe func()
}

// Subscribe registers callback for every event of the given state and
// returns an ID for Unsubscribe. On an engine created with DisableEvents the
// callback is never called.
func (e *PivotEngine) Subscribe(state State, label string, callback EventCallback) string {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	unsubscribe := func() {}
	if e.bus != nil {
		unsubscribe = e.bus.Subscribe(string(state), callback)
	}
	id := uuid.New().String()
	e.subscriptions[id] = &SubscriptionInfo{ID: id, State: state, Label: label, unsubscribe: unsubscribe}
	e.logger.Debug("Subscription registered", zap.String("id", id), zap.String("state", string(state)))
	return id
}

// Unsubscribe removes a subscription. It reports whether the ID was known.
func (e *PivotEngine) Unsubscribe(id string) bool {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	info, ok := e.subscriptions[id]
	if !ok {
		return false
	}
	info.unsubscribe()
	delete(e.subscriptions, id)
	return true
}

// Subscriptions lists the active subscriptions.
func (e *PivotEngine) Subscriptions() []SubscriptionInfo {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	out := make([]SubscriptionInfo, 0, len(e.subscriptions))
	for _, info := range e.subscriptions {
		out = append(out, *info)
	}
	return out
}

// execution tracks the states visited by one Execute call.
type execution struct {
	engine *PivotEngine
	id     string
	start  time.Time
	states []State
	path   Path
}

func (e *PivotEngine) newExecution() *execution {
	x := &execution{engine: e, id: uuid.New().String(), start: time.Now()}
	x.enter(StateIdle, 0, nil, nil)
	return x
}

// enter records state and emits its event.
func (x *execution) enter(state State, rows int, issues []schema.Issue, err error) {
	x.states = append(x.states, state)
	x.engine.logger.Debug("Pivot state",
		zap.String("execution", x.id),
		zap.String("state", string(state)),
		zap.Int("rows", rows),
	)
	if x.engine.bus == nil {
		return
	}
	d := time.Since(x.start).Milliseconds()
	event := ExecutionEvent{
		State:       state,
		ExecutionID: x.id,
		Timestamp:   time.Now().UnixMilli(),
		Duration:    &d,
		Rows:        rows,
		Path:        x.path,
		Issues:      issues,
	}
	if err != nil {
		msg := err.Error()
		event.Error = &msg
	}
	x.engine.bus.Emit(string(state), event)
}
