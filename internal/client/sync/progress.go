package sync

import "log/slog"

// Phase identifies where a run currently is.
type Phase string

const (
	PhasePreparing Phase = "preparing"
	PhaseIndexing  Phase = "indexing"
	PhasePlanning  Phase = "planning"
	PhaseResolving Phase = "resolving"
	PhaseExecuting Phase = "executing"
	PhaseDone      Phase = "done"
)

// Progress is a fire-and-forget notification. Completed/Total are only
// meaningful during PhaseExecuting.
type Progress struct {
	Phase     Phase
	Message   string
	Path      string
	Completed int
	Total     int
}

// ProgressSink receives progress notifications. Implementations must not
// block; the core never awaits them.
type ProgressSink interface {
	OnProgress(p Progress)
}

// SlogSink logs progress at debug level.
type SlogSink struct{}

func (SlogSink) OnProgress(p Progress) {
	slog.Debug("progress", "phase", p.Phase, "message", p.Message, "path", p.Path, "completed", p.Completed, "total", p.Total)
}

// NopSink discards progress notifications.
type NopSink struct{}

func (NopSink) OnProgress(Progress) {}
