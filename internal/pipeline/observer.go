package pipeline

import (
	"context"
	"log/slog"
)

// Outcome is the result of processing one record.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Progress is reported after each completed record.
type Progress struct {
	Stage      StageName
	Completed  int
	Total      int
	Outcome    Outcome
	Identifier string
}

// Fraction returns the completed share of the stage, between 0 and 1.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 1
	}
	return float64(p.Completed) / float64(p.Total)
}

// Observer receives progress. Observe is called on the pipeline's goroutine
// and must return promptly.
type Observer interface {
	Observe(Progress)
}

// PhaseObserver is optionally implemented by observers that need to know
// when a stage starts and ends.
type PhaseObserver interface {
	Observer
	PhaseStarted(stage StageName, total int)
	PhaseFinished(stage StageName, total int)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Progress)

func (f ObserverFunc) Observe(p Progress) { f(p) }

// MultiObserver fans progress out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) Observe(p Progress) {
	for _, o := range m {
		if o != nil {
			o.Observe(p)
		}
	}
}

func (m MultiObserver) PhaseStarted(stage StageName, total int) {
	for _, o := range m {
		if po, ok := o.(PhaseObserver); ok {
			po.PhaseStarted(stage, total)
		}
	}
}

func (m MultiObserver) PhaseFinished(stage StageName, total int) {
	for _, o := range m {
		if po, ok := o.(PhaseObserver); ok {
			po.PhaseFinished(stage, total)
		}
	}
}

// LogObserver logs progress, every record at debug level and every
// Interval-th record at info level.
type LogObserver struct {
	Logger   *slog.Logger
	Interval int
}

func (l LogObserver) Observe(p Progress) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := l.Interval
	if interval <= 0 {
		interval = 10
	}

	level := slog.LevelDebug
	if p.Completed%interval == 0 || p.Completed == p.Total {
		level = slog.LevelInfo
	}
	logger.Log(context.Background(), level, "progress",
		"stage", string(p.Stage),
		"completed", p.Completed,
		"total", p.Total,
		"outcome", string(p.Outcome),
		"identifier", p.Identifier,
	)
}
