package claim

import (
	"context"
	"time"

	"github.com/dmitrijs2005/promoclaim/internal/logging"
)

type EventKind string

const (
	EventAccountStarted   EventKind = "account_started"
	EventLoginSucceeded   EventKind = "login_succeeded"
	EventLoginFailed      EventKind = "login_failed"
	EventItemClaimed      EventKind = "item_claimed"
	EventItemSkipped      EventKind = "item_skipped"
	EventItemFailed       EventKind = "item_failed"
	EventAccountFinished  EventKind = "account_finished"
	EventDuplicateDropped EventKind = "duplicate_dropped"
	EventSessionExpiring  EventKind = "session_expiring"
)

type Event struct {
	Kind     EventKind
	Account  string
	Identity string
	Item     string
	Detail   string
	At       time.Time
}

// EventSink receives progress events. Emit is called from worker
// goroutines and must be safe for concurrent use.
type EventSink interface {
	Emit(ctx context.Context, ev Event)
}

type EventFunc func(ctx context.Context, ev Event)

func (f EventFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// LogSink writes events as structured log records.
type LogSink struct {
	Log logging.Logger
}

func (s LogSink) Emit(ctx context.Context, ev Event) {
	args := []any{"event", string(ev.Kind), "account", ev.Account}
	if ev.Identity != "" && ev.Identity != ev.Account {
		args = append(args, "identity", ev.Identity)
	}
	if ev.Item != "" {
		args = append(args, "item", ev.Item)
	}
	if ev.Detail != "" {
		args = append(args, "detail", ev.Detail)
	}

	switch ev.Kind {
	case EventLoginFailed, EventItemFailed, EventSessionExpiring, EventDuplicateDropped:
		s.Log.Warn(ctx, "claim event", args...)
	default:
		s.Log.Info(ctx, "claim event", args...)
	}
}

type nopSink struct{}

func (nopSink) Emit(context.Context, Event) {}
