// Package timer implements the timer sink: inserting a row schedules a
// single INSERT into another table after a delay.
//
//	INSERT INTO timer VALUES (250, 'ticks', 'hello');
//
// runs, about 250ms later and on a background goroutine,
//
//	INSERT INTO ticks VALUES ('hello');
package timer

import (
	"fmt"
	"time"

	"github.com/cyberinferno/go-sqlio/logger"
	"github.com/cyberinferno/go-sqlio/sink"
)

// Table is the name of the timer sink.
const Table = "timer"

// Definition returns the sink definition for the timer table.
func Definition() sink.Definition {
	return sink.Definition{
		Name:    Table,
		Columns: "n_millis INTEGER, insert_table VARCHAR, value ANY",
		New: func(ctx sink.Context) sink.Sink {
			if ctx.Logger == nil {
				ctx.Logger = logger.Nop()
			}
			return &Timer{ctx: ctx, after: time.AfterFunc}
		},
	}
}

// Timer schedules deferred inserts. Scheduled timers cannot be cancelled
// and do not survive the session.
type Timer struct {
	ctx   sink.Context
	after func(time.Duration, func()) *time.Timer
}

// Request is a parsed timer row.
type Request struct {
	Delay time.Duration
	Table string
	Value any
}

// ParseRequest validates a row inserted into the timer table.
//
// Returns:
//   - The parsed request
//   - An error wrapping sink.ErrInvalidArgument for a missing, non-integer or
//     negative delay, or a non-text table name
func ParseRequest(row sink.Row) (Request, error) {
	millis, err := row.Int64(0)
	if err != nil {
		return Request{}, fmt.Errorf("n_millis: %w", err)
	}
	if millis < 0 {
		return Request{}, fmt.Errorf("%w: n_millis must not be negative, got %d", sink.ErrInvalidArgument, millis)
	}

	table, err := row.String(1)
	if err != nil {
		return Request{}, fmt.Errorf("insert_table: %w", err)
	}
	if table == "" {
		return Request{}, fmt.Errorf("%w: insert_table must not be empty", sink.ErrInvalidArgument)
	}

	value, err := row.Value(2)
	if err != nil {
		return Request{}, fmt.Errorf("value: %w", err)
	}

	return Request{
		Delay: time.Duration(millis) * time.Millisecond,
		Table: table,
		Value: value,
	}, nil
}

// OnInsert schedules the deferred insert and returns immediately. Failures
// of the deferred insert are logged and dropped.
func (t *Timer) OnInsert(row sink.Row) error {
	req, err := ParseRequest(row)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("INSERT INTO %s VALUES (?)", req.Table)
	h := t.ctx.Handle
	log := t.ctx.Logger.With(
		logger.Field{Key: "insert_table", Value: req.Table},
		logger.Field{Key: "delay", Value: req.Delay.String()},
	)

	t.after(req.Delay, func() {
		if _, err := h.Exec(h.Context(), query, req.Value); err != nil {
			log.Error("timer insert failed", logger.Err(err))
			return
		}
		log.Debug("timer fired")
	})

	return nil
}
