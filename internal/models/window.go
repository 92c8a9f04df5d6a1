package models

import "fmt"

// WindowKind names the direction a fetch window covers.
type WindowKind string

const (
	// WindowFull downloads everything available when no dataset exists yet.
	WindowFull WindowKind = "full"
	// WindowFuture walks back from now until the stored maximum is reached.
	WindowFuture WindowKind = "future"
	// WindowHistory walks back from the stored minimum toward genesis.
	WindowHistory WindowKind = "history"
)

// FetchWindow is an ephemeral request plan for the paginated fetcher.
type FetchWindow struct {
	Kind WindowKind

	// Cursor is the exclusive upper bound of the next page; nil means now.
	Cursor *int64

	// StopAt excludes candles at or before this timestamp and marks overlap.
	StopAt *int64

	// LimitStop ends the window at the first page that reaches StopAt.
	LimitStop bool
}

// String returns a compact description used in logs.
func (w FetchWindow) String() string {
	cursor, stop := "now", "none"
	if w.Cursor != nil {
		cursor = fmt.Sprintf("%d", *w.Cursor)
	}
	if w.StopAt != nil {
		stop = fmt.Sprintf("%d", *w.StopAt)
	}
	return fmt.Sprintf("%s(cursor=%s, stop=%s, limit_stop=%t)", w.Kind, cursor, stop, w.LimitStop)
}
